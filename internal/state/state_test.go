package state

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCloneIsDetached(t *testing.T) {
	orig := NormalizedTableState{
		Seats: []Seat{
			{SeatIndex: 0, UserID: "u1", HoleCards: []Card{{Rank: "A", Suit: "h"}}},
			{SeatIndex: 1},
		},
		CommunityCards: []Card{{Rank: "7", Suit: "c"}},
		Pots:           []Pot{{PotIndex: 0, Amount: 100, EligibleUserIDs: []string{"u1"}}},
		LegalActions:   []LegalAction{{Action: ActionFold}},
		HandResult:     &HandResult{Winners: []HandWinner{{UserID: "u1", Amount: 100}}},
	}

	c := orig.Clone()
	c.Seats[0].Stack = 999
	c.Seats[0].HoleCards[0] = Card{Hidden: true}
	c.CommunityCards[0] = Card{Hidden: true}
	c.Pots[0].Amount = 1
	c.Pots[0].EligibleUserIDs[0] = "someone-else"
	c.LegalActions[0].Action = ActionAllIn
	c.HandResult.Winners[0].Amount = 0

	require.Equal(t, int64(0), orig.Seats[0].Stack)
	require.Equal(t, Card{Rank: "A", Suit: "h"}, orig.Seats[0].HoleCards[0])
	require.Equal(t, Card{Rank: "7", Suit: "c"}, orig.CommunityCards[0])
	require.Equal(t, int64(100), orig.Pots[0].Amount)
	require.Equal(t, []string{"u1"}, orig.Pots[0].EligibleUserIDs)
	require.Equal(t, ActionFold, orig.LegalActions[0].Action)
	require.Equal(t, int64(100), orig.HandResult.Winners[0].Amount)
}

func TestSeatByUserID(t *testing.T) {
	st := NormalizedTableState{Seats: []Seat{
		{SeatIndex: 0},
		{SeatIndex: 1, UserID: "u2"},
	}}
	require.Equal(t, 1, st.SeatByUserID("u2"))
	require.Equal(t, -1, st.SeatByUserID("u9"))
	require.Equal(t, -1, st.SeatByUserID(""))
}
