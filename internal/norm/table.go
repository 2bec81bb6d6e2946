package norm

import (
	"strconv"

	"github.com/tgpoker/tablesync/internal/state"
)

const (
	defaultMinSeats  = 9
	defaultHoleCards = 2
)

// NormalizeTableState converts an arbitrary raw table payload into the
// canonical seat-indexed model. It is total (any input, including nil or
// garbage, yields a well-formed state), pure (the input is never mutated)
// and idempotent (re-normalizing its own output is a no-op).
func NormalizeTableState(v any) state.NormalizedTableState {
	raw, ok := asMap(v)
	if !ok {
		raw = map[string]any{}
	}

	players := rawPlayers(raw)
	maxSeats := resolveMaxSeats(raw, players)
	maxCards := resolveMaxCards(raw, players)
	actingUserID, _ := stringField(raw, "current_actor", "current_actor_user_id")

	st := state.NormalizedTableState{
		MaxPlayers:   maxSeats,
		MaxHoleCards: maxCards,
		ActingUserID: actingUserID,
		Seats:        make([]state.Seat, 0, maxSeats),
	}
	st.Variant, _ = stringField(raw, "variant", "game_type")
	st.Street, _ = stringField(raw, "street", "phase")
	if n, ok := int64Field(raw, "round", "draw_round"); ok && n >= 0 {
		st.Round = int(n)
	}

	// First raw player claiming a seat index wins; everyone else at that
	// index is ignored. Unclaimed indices become empty seats.
	for idx := 0; idx < maxSeats; idx++ {
		st.Seats = append(st.Seats, BuildSeat(playerAtSeat(players, idx), idx, actingUserID, maxCards))
	}

	if board, ok := field(raw, "board", "community_cards"); ok {
		st.CommunityCards = ToCards(board)
	} else {
		st.CommunityCards = []state.Card{}
	}

	st.LegalActions = MapAllowedActions(raw["allowed_actions"])
	st.Pots = MapPots(raw)
	st.ActionDeadline, _ = int64Field(raw, "action_deadline", "deadline")
	st.Metadata = normalizeMetadata(raw)
	st.HandResult = normalizeHandResult(raw["hand_result"])
	st.ActingSeat = st.SeatByUserID(actingUserID)

	st.SchemaVersion = int(versionField(raw, 0, "schema_version"))
	st.TableVersion = versionField(raw, state.UnknownVersion, "table_version")
	st.EventSeq = versionField(raw, state.UnknownVersion, "event_seq")
	return st
}

func rawPlayers(raw map[string]any) []map[string]any {
	entries, ok := asSlice(raw["players"])
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		if m, ok := asMap(entry); ok {
			out = append(out, m)
		}
	}
	return out
}

func playerAtSeat(players []map[string]any, idx int) map[string]any {
	for _, p := range players {
		if n, ok := ResolveSeatIndex(p); ok && n == idx {
			return p
		}
	}
	return nil
}

func resolveMaxSeats(raw map[string]any, players []map[string]any) int {
	if n, ok := int64Field(raw, "max_players"); ok && n > 0 {
		return int(n)
	}
	if len(players) > defaultMinSeats {
		return len(players)
	}
	return defaultMinSeats
}

func resolveMaxCards(raw map[string]any, players []map[string]any) int {
	if n, ok := int64Field(raw, "max_hole_cards", "expected_hole_card_count"); ok && n > 0 {
		return int(n)
	}
	observed := 0
	for _, p := range players {
		if cards, ok := field(p, "cards", "hole_cards"); ok {
			if list, ok := asSlice(cards); ok && len(list) > observed {
				observed = len(list)
			}
		}
	}
	if observed > 0 {
		return observed
	}
	return defaultHoleCards
}

// normalizeMetadata reads table metadata defensively, substituting the
// documented defaults for anything missing. Keys are looked up in a nested
// table_metadata object first, then at the payload top level, so both the
// raw wire shape and our own output round-trip.
func normalizeMetadata(raw map[string]any) state.TableMetadata {
	sources := []map[string]any{}
	if nested, ok := asMap(raw["table_metadata"]); ok {
		sources = append(sources, nested)
	}
	sources = append(sources, raw)

	md := state.TableMetadata{
		Currency:       state.DefaultCurrency,
		TurnTimeoutSec: state.DefaultTurnTimeoutSec,
		TableType:      state.DefaultTableType,
	}
	for _, src := range sources {
		if md.TableID == 0 {
			md.TableID, _ = int64Field(src, "table_id", "id")
		}
		if md.SmallBlind == 0 {
			md.SmallBlind, _ = floatField(src, "small_blind")
		}
		if md.BigBlind == 0 {
			md.BigBlind, _ = floatField(src, "big_blind")
		}
		if md.Stakes == "" {
			md.Stakes, _ = stringField(src, "stakes")
		}
		if md.MinBuyIn == 0 {
			md.MinBuyIn, _ = int64Field(src, "min_buy_in", "min_buyin")
		}
		if md.MaxBuyIn == 0 {
			md.MaxBuyIn, _ = int64Field(src, "max_buy_in", "max_buyin")
		}
		if md.RakePercent == 0 {
			md.RakePercent, _ = floatField(src, "rake", "rake_percent")
		}
		if cur, ok := stringField(src, "currency"); ok && md.Currency == state.DefaultCurrency {
			md.Currency = cur
		}
		if tt, ok := stringField(src, "table_type"); ok && md.TableType == state.DefaultTableType {
			md.TableType = tt
		}
		if n, ok := int64Field(src, "turn_timeout", "turn_timeout_sec"); ok && n > 0 && md.TurnTimeoutSec == state.DefaultTurnTimeoutSec {
			md.TurnTimeoutSec = int(n)
		}
	}

	// Stakes is never left empty: explicit string, else composed from the
	// blinds, else a fixed fallback label.
	if md.Stakes == "" {
		if md.SmallBlind > 0 || md.BigBlind > 0 {
			md.Stakes = formatAmount(md.SmallBlind) + "/" + formatAmount(md.BigBlind)
		} else {
			md.Stakes = state.DefaultStakesLabel
		}
	}
	return md
}

func formatAmount(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func normalizeHandResult(v any) *state.HandResult {
	m, ok := asMap(v)
	if !ok {
		return nil
	}
	entries, ok := asSlice(m["winners"])
	if !ok {
		return &state.HandResult{Winners: []state.HandWinner{}}
	}
	hr := state.HandResult{Winners: make([]state.HandWinner, 0, len(entries))}
	for _, entry := range entries {
		wm, ok := asMap(entry)
		if !ok {
			continue
		}
		w := state.HandWinner{}
		w.UserID, _ = stringField(wm, "user_id", "id")
		w.Amount, _ = int64Field(wm, "amount", "won")
		w.HandRank, _ = stringField(wm, "hand_rank", "rank_name", "description")
		if cards, ok := field(wm, "cards", "hole_cards"); ok {
			w.Cards = ToCards(cards)
		}
		hr.Winners = append(hr.Winners, w)
	}
	return &hr
}

func versionField(raw map[string]any, fallback int64, key string) int64 {
	if n, ok := int64Field(raw, key); ok {
		return n
	}
	return fallback
}
