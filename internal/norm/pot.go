package norm

import (
	"sort"

	"github.com/tgpoker/tablesync/internal/state"
)

// MapPots unifies the two pot encodings: a pots[] array (side-pot capable)
// or a legacy scalar "pot" total. Neither being present is legitimate (e.g.
// pre-deal) and yields an empty list. Output indices are always unique and
// contiguous from 0, whatever the wire claimed.
func MapPots(raw map[string]any) []state.Pot {
	if entries, ok := asSlice(raw["pots"]); ok {
		return mapPotEntries(entries)
	}
	if total, ok := int64Field(raw, "pot"); ok {
		return []state.Pot{{PotIndex: 0, Amount: total, EligibleUserIDs: []string{}}}
	}
	return []state.Pot{}
}

func mapPotEntries(entries []any) []state.Pot {
	out := make([]state.Pot, 0, len(entries))
	for i, entry := range entries {
		m, ok := asMap(entry)
		if !ok {
			continue
		}
		p := state.Pot{PotIndex: i, EligibleUserIDs: []string{}}
		if idx, ok := int64Field(m, "pot_index", "index"); ok && idx >= 0 {
			p.PotIndex = int(idx)
		}
		p.Amount, _ = int64Field(m, "amount", "pot")
		if ids, ok := field(m, "eligible_user_ids", "player_ids"); ok {
			p.EligibleUserIDs = stringList(ids)
		}
		out = append(out, p)
	}
	// Re-index after a stable sort by the declared index so the contiguity
	// invariant holds even for gappy or duplicated wire indices.
	sort.SliceStable(out, func(i, j int) bool { return out[i].PotIndex < out[j].PotIndex })
	for i := range out {
		out[i].PotIndex = i
	}
	return out
}

func stringList(v any) []string {
	raw, ok := asSlice(v)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		if s, ok := asString(entry); ok {
			out = append(out, s)
		}
	}
	return out
}
