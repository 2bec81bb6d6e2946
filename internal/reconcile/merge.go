package reconcile

import (
	"fmt"

	"github.com/tgpoker/tablesync/internal/norm"
	"github.com/tgpoker/tablesync/pkg/wire"
)

// mergeDelta folds one delta payload into the raw baseline, which is then
// re-normalized wholesale. Normalization being cheap and idempotent, this
// keeps all merge knowledge here and all shape knowledge in norm.
func mergeDelta(raw map[string]any, env wire.Envelope) {
	payload := env.DecodePayload()

	switch env.Type {
	case wire.TypeSeatUpdate, wire.TypePlayerUpdate:
		// Payload is a single player record, or {player: {...}}.
		p := payload
		if inner, ok := payload["player"].(map[string]any); ok {
			p = inner
		}
		mergePlayer(raw, p)

	case wire.TypePotUpdate:
		replaceAliases(raw, payload, "pots", "pot")

	case wire.TypeActionUpdate:
		replaceAliases(raw, payload, "allowed_actions")
		replaceAliases(raw, payload, "current_actor", "current_actor_user_id")
		replaceAliases(raw, payload, "action_deadline", "deadline")

	case wire.TypeTimerUpdate:
		replaceAliases(raw, payload, "action_deadline", "deadline")
		replaceAliases(raw, payload, "turn_timeout", "turn_timeout_sec")

	case wire.TypeTableUpdate:
		for k, v := range payload {
			raw[k] = v
		}
	}

	stampVersions(raw, env)
}

// mergePlayer folds a player record into the players[] entry sharing its
// seat index, appending when no entry matches. An update with no resolvable
// seat index is dropped rather than guessed at.
func mergePlayer(raw, player map[string]any) {
	idx, ok := norm.ResolveSeatIndex(player)
	if !ok {
		return
	}
	players, _ := raw["players"].([]any)
	for i, entry := range players {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if n, ok := norm.ResolveSeatIndex(m); ok && n == idx {
			players[i] = mergePlayerFields(m, player)
			raw["players"] = players
			return
		}
	}
	raw["players"] = append(players, player)
}

// mergePlayerFields overlays the update onto the existing record field by
// field, so a partial record (say, a bare stack change) leaves the occupant
// and their cards in place. Two exceptions: a different (or null) user_id is
// a new occupant and starts from a clean record, and the hole-card spellings
// travel as one concept, cleared together before the overlay.
func mergePlayerFields(existing, update map[string]any) map[string]any {
	if newID, ok := update["user_id"]; ok {
		oldID, had := existing["user_id"]
		if !had || !sameID(oldID, newID) {
			return update
		}
	}

	merged := make(map[string]any, len(existing)+len(update))
	for k, v := range existing {
		merged[k] = v
	}
	for _, k := range [...]string{"cards", "hole_cards", "card_count"} {
		if _, ok := update[k]; ok {
			delete(merged, "cards")
			delete(merged, "hole_cards")
			delete(merged, "card_count")
			break
		}
	}
	for k, v := range update {
		merged[k] = v
	}
	return merged
}

// sameID compares wire identities that may arrive as string or number.
func sameID(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// replaceAliases treats the listed keys as spellings of one concept. When
// the payload carries any of them, every spelling is cleared from the
// baseline first so a pots[] update can never leave a stale scalar pot (or
// vice versa) behind. A payload silent on the concept leaves it untouched.
func replaceAliases(raw, payload map[string]any, keys ...string) {
	carried := false
	for _, k := range keys {
		if _, ok := payload[k]; ok {
			carried = true
			break
		}
	}
	if !carried {
		return
	}
	for _, k := range keys {
		delete(raw, k)
	}
	for _, k := range keys {
		if v, ok := payload[k]; ok {
			raw[k] = v
		}
	}
}
