package state

// ConnectionState tracks where a table session is in its sync lifecycle.
type ConnectionState string

const (
	Disconnected    ConnectionState = "disconnected"
	Connecting      ConnectionState = "connecting"
	SyncingSnapshot ConnectionState = "syncing_snapshot"
	Live            ConnectionState = "live"
	VersionMismatch ConnectionState = "version_mismatch"
)

// Card is either fully known (rank+suit) or hidden, never both.
type Card struct {
	Rank   string `json:"rank,omitempty"`
	Suit   string `json:"suit,omitempty"`
	Hidden bool   `json:"hidden,omitempty"`
}

// HiddenCard is the placeholder for a card the client is not allowed to see.
func HiddenCard() Card { return Card{Hidden: true} }

// Seat is one physical position at the table. An unoccupied index is still a
// fully-formed Seat with UserID == "" and all flags false, never absent.
type Seat struct {
	SeatIndex         int    `json:"seat_index"`
	UserID            string `json:"user_id,omitempty"`
	Stack             int64  `json:"stack"`
	CurrentBet        int64  `json:"current_bet,omitempty"`
	IsActing          bool   `json:"is_acting,omitempty"`
	SittingOut        bool   `json:"sitting_out,omitempty"`
	IsWinner          bool   `json:"is_winner,omitempty"`
	IsButton          bool   `json:"is_button,omitempty"`
	IsSmallBlind      bool   `json:"is_small_blind,omitempty"`
	IsBigBlind        bool   `json:"is_big_blind,omitempty"`
	IsAllIn           bool   `json:"is_all_in,omitempty"`
	HoleCards         []Card `json:"hole_cards"`
	ExpectedHoleCards int    `json:"expected_hole_card_count,omitempty"`
}

// Occupied reports whether a player sits at this seat.
func (s Seat) Occupied() bool { return s.UserID != "" }

// Action names, in the fixed priority order the UI renders them.
const (
	ActionFold  = "fold"
	ActionCheck = "check"
	ActionCall  = "call"
	ActionBet   = "bet"
	ActionRaise = "raise"
	ActionAllIn = "all_in"
	ActionReady = "ready"
)

// LegalAction is one move the controlling seat may currently take.
type LegalAction struct {
	Action         string `json:"action"`
	MinAmount      int64  `json:"min_amount,omitempty"`
	MaxAmount      int64  `json:"max_amount,omitempty"`
	CallAmount     int64  `json:"call_amount,omitempty"`
	MinRaiseAmount int64  `json:"min_raise_amount,omitempty"`
}

// Pot indices are unique and contiguous from 0; side pots appear during
// all-in scenarios.
type Pot struct {
	PotIndex        int      `json:"pot_index"`
	Amount          int64    `json:"amount"`
	EligibleUserIDs []string `json:"eligible_user_ids"`
}

// Documented defaults substituted for missing metadata fields.
const (
	DefaultTurnTimeoutSec = 30
	DefaultCurrency       = "chips"
	DefaultTableType      = "public"
	DefaultStakesLabel    = "-/-"
)

type TableMetadata struct {
	TableID        int64   `json:"table_id"`
	Stakes         string  `json:"stakes"`
	SmallBlind     float64 `json:"small_blind,omitempty"`
	BigBlind       float64 `json:"big_blind,omitempty"`
	Currency       string  `json:"currency"`
	TurnTimeoutSec int     `json:"turn_timeout"`
	MinBuyIn       int64   `json:"min_buy_in,omitempty"`
	MaxBuyIn       int64   `json:"max_buy_in,omitempty"`
	RakePercent    float64 `json:"rake,omitempty"`
	TableType      string  `json:"table_type"`
}

type HandWinner struct {
	UserID   string `json:"user_id"`
	Amount   int64  `json:"amount"`
	HandRank string `json:"hand_rank,omitempty"`
	Cards    []Card `json:"cards,omitempty"`
}

type HandResult struct {
	Winners []HandWinner `json:"winners"`
}

// NormalizedTableState is the canonical, seat-indexed model every rendering
// surface reads. JSON field names stay inside the raw wire vocabulary so a
// marshalled state can be fed back through the normalizer unchanged.
type NormalizedTableState struct {
	Variant        string        `json:"variant,omitempty"`
	Street         string        `json:"street,omitempty"`
	Round          int           `json:"round,omitempty"`
	CommunityCards []Card        `json:"community_cards"`
	Seats          []Seat        `json:"players"`
	LegalActions   []LegalAction `json:"allowed_actions"`
	ActingUserID   string        `json:"current_actor,omitempty"`
	ActingSeat     int           `json:"-"` // derived from ActingUserID, -1 when nobody acts
	ActionDeadline int64         `json:"action_deadline,omitempty"` // unix millis, 0 = none
	Pots           []Pot         `json:"pots"`
	Metadata       TableMetadata `json:"table_metadata"`
	HandResult     *HandResult   `json:"hand_result,omitempty"`
	MaxPlayers     int           `json:"max_players"`
	MaxHoleCards   int           `json:"max_hole_cards"`

	SchemaVersion int   `json:"schema_version"`
	TableVersion  int64 `json:"table_version"`
	EventSeq      int64 `json:"event_seq"`
}

// UnknownVersion marks a payload that arrived without a versioning triplet.
// It can never satisfy the lastSeq+1 contiguity check, so the first delta
// after adopting such a state forces a snapshot resync.
const UnknownVersion int64 = -1

// SeatByUserID returns the index of the occupied seat holding userID, or -1.
func (t NormalizedTableState) SeatByUserID(userID string) int {
	if userID == "" {
		return -1
	}
	for i := range t.Seats {
		if t.Seats[i].UserID == userID {
			return i
		}
	}
	return -1
}

// Clone deep-copies the state so broadcast subscribers can never alias the
// reconciler's working copy.
func (t NormalizedTableState) Clone() NormalizedTableState {
	out := t
	out.CommunityCards = append([]Card(nil), t.CommunityCards...)
	out.Seats = append([]Seat(nil), t.Seats...)
	for i := range out.Seats {
		out.Seats[i].HoleCards = append([]Card(nil), t.Seats[i].HoleCards...)
	}
	out.LegalActions = append([]LegalAction(nil), t.LegalActions...)
	out.Pots = append([]Pot(nil), t.Pots...)
	for i := range out.Pots {
		out.Pots[i].EligibleUserIDs = append([]string(nil), t.Pots[i].EligibleUserIDs...)
	}
	if t.HandResult != nil {
		hr := HandResult{Winners: append([]HandWinner(nil), t.HandResult.Winners...)}
		for i := range hr.Winners {
			hr.Winners[i].Cards = append([]Card(nil), t.HandResult.Winners[i].Cards...)
		}
		out.HandResult = &hr
	}
	return out
}
