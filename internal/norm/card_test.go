package norm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tgpoker/tablesync/internal/state"
)

func TestToCard(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want state.Card
	}{
		{"two char code", "Ah", state.Card{Rank: "A", Suit: "h"}},
		{"ten as 10", "10d", state.Card{Rank: "T", Suit: "d"}},
		{"lowercase rank", "kc", state.Card{Rank: "K", Suit: "c"}},
		{"uppercase suit", "QS", state.Card{Rank: "Q", Suit: "s"}},
		{"structured card", map[string]any{"rank": "J", "suit": "h"}, state.Card{Rank: "J", Suit: "h"}},
		{"hidden flag wins", map[string]any{"hidden": true, "rank": "A", "suit": "h"}, state.Card{Hidden: true}},
		{"face down alias", map[string]any{"face_down": true}, state.Card{Hidden: true}},
		{"nil", nil, state.Card{Hidden: true}},
		{"empty string", "", state.Card{Hidden: true}},
		{"bad rank", "Zh", state.Card{Hidden: true}},
		{"bad suit", "Ax", state.Card{Hidden: true}},
		{"wrong type entirely", 7.0, state.Card{Hidden: true}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ToCard(tc.in)
			require.Equal(t, tc.want, got)
			if got.Hidden {
				require.Empty(t, got.Rank, "hidden card must not carry a rank")
				require.Empty(t, got.Suit, "hidden card must not carry a suit")
			}
		})
	}
}

func TestToCards(t *testing.T) {
	got := ToCards([]any{"7c", map[string]any{"hidden": true}, 42})
	require.Equal(t, []state.Card{
		{Rank: "7", Suit: "c"},
		{Hidden: true},
		{Hidden: true},
	}, got)

	require.Equal(t, []state.Card{}, ToCards(nil))
	require.Equal(t, []state.Card{}, ToCards("not a list"))
}
