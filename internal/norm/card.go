package norm

import (
	"strings"

	"github.com/tgpoker/tablesync/internal/state"
)

var validRanks = map[string]bool{
	"2": true, "3": true, "4": true, "5": true, "6": true, "7": true,
	"8": true, "9": true, "10": true, "T": true, "J": true, "Q": true,
	"K": true, "A": true,
}

var validSuits = map[string]bool{"c": true, "d": true, "h": true, "s": true}

// ToCard converts one raw wire card into a typed Card. It accepts a
// two-character code ("Ah", "Td"), an already-structured card object, or
// nothing at all; anything unrecognizable comes back hidden. Never panics.
func ToCard(v any) state.Card {
	switch x := v.(type) {
	case string:
		return cardFromCode(x)
	case map[string]any:
		if boolField(x, "hidden", "face_down") {
			return state.HiddenCard()
		}
		rank, _ := stringField(x, "rank")
		suit, _ := stringField(x, "suit")
		return cardFromParts(rank, suit)
	}
	return state.HiddenCard()
}

// ToCards maps a raw card list; non-list input yields an empty list.
func ToCards(v any) []state.Card {
	raw, ok := asSlice(v)
	if !ok {
		return []state.Card{}
	}
	out := make([]state.Card, 0, len(raw))
	for _, c := range raw {
		out = append(out, ToCard(c))
	}
	return out
}

func cardFromCode(code string) state.Card {
	code = strings.TrimSpace(code)
	if len(code) < 2 {
		return state.HiddenCard()
	}
	// "10h" is the one rank longer than a single character.
	rank := code[:len(code)-1]
	suit := code[len(code)-1:]
	return cardFromParts(rank, suit)
}

func cardFromParts(rank, suit string) state.Card {
	rank = strings.ToUpper(strings.TrimSpace(rank))
	if rank == "10" {
		rank = "T"
	}
	suit = strings.ToLower(strings.TrimSpace(suit))
	if !validRanks[rank] || !validSuits[suit] {
		return state.HiddenCard()
	}
	return state.Card{Rank: rank, Suit: suit}
}
