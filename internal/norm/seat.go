package norm

import "github.com/tgpoker/tablesync/internal/state"

// ResolveSeatIndex extracts the seat number from a raw player record, which
// historically names it "position" or "seat" depending on message version.
func ResolveSeatIndex(raw map[string]any) (int, bool) {
	n, ok := int64Field(raw, "position", "seat", "seat_index")
	if !ok || n < 0 {
		return 0, false
	}
	return int(n), true
}

// BuildSeat maps a raw player record onto the seat at index. A nil record
// produces the canonical empty seat: no user, zero stack, all flags false.
// actingUserID is the table's current actor; maxCards is the table-wide
// expected hole card count used as a placeholder for seats whose cards the
// server does not reveal.
func BuildSeat(raw map[string]any, index int, actingUserID string, maxCards int) state.Seat {
	seat := state.Seat{
		SeatIndex: index,
		HoleCards: []state.Card{},
	}
	if raw == nil {
		return seat
	}

	seat.UserID, _ = stringField(raw, "user_id", "id")
	seat.Stack, _ = int64Field(raw, "stack", "chips")
	seat.CurrentBet, _ = int64Field(raw, "current_bet", "bet")
	seat.SittingOut = boolField(raw, "sitting_out", "is_sitting_out")
	seat.IsWinner = boolField(raw, "is_winner", "winner")
	seat.IsButton = boolField(raw, "is_button", "button", "dealer")
	seat.IsSmallBlind = boolField(raw, "is_small_blind", "small_blind")
	seat.IsBigBlind = boolField(raw, "is_big_blind", "big_blind")
	seat.IsAllIn = boolField(raw, "is_all_in", "all_in")
	seat.IsActing = actingUserID != "" && seat.UserID == actingUserID

	if cards, ok := field(raw, "cards", "hole_cards"); ok {
		seat.HoleCards = ToCards(cards)
		seat.ExpectedHoleCards = len(seat.HoleCards)
	} else if n, ok := int64Field(raw, "card_count"); ok && n >= 0 {
		seat.HoleCards = hiddenCards(int(n))
		seat.ExpectedHoleCards = int(n)
	} else if seat.Occupied() {
		// Opponent with no card info at all: show the table-wide placeholder.
		seat.HoleCards = hiddenCards(maxCards)
		seat.ExpectedHoleCards = maxCards
	}
	return seat
}

func hiddenCards(n int) []state.Card {
	out := make([]state.Card, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, state.HiddenCard())
	}
	return out
}
