package sim

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/tgpoker/tablesync/pkg/wire"
)

// Table is a scripted stand-in for the production game server: it mutates a
// raw-shaped table payload on a timer and pushes versioned deltas to every
// subscriber. Dev/test tooling only; nothing here knows poker rules.

type Msg interface{ isTableMsg() }

type Join struct {
	ClientID string
	Outbox   chan wire.Envelope
}

type Leave struct{ ClientID string }

// SnapshotReq asks for a full snapshot addressed to one client.
type SnapshotReq struct{ ClientID string }

// GetRaw serves the pull endpoints from the same state the push feed uses.
type GetRaw struct{ Reply chan map[string]any }

type Shutdown struct{}

func (Join) isTableMsg()        {}
func (Leave) isTableMsg()       {}
func (SnapshotReq) isTableMsg() {}
func (GetRaw) isTableMsg()      {}
func (Shutdown) isTableMsg()    {}

// Faults injects protocol violations so the client's desync recovery can be
// exercised without a broken backend.
type Faults struct {
	GapEvery     int  // every Nth delta skips a sequence number (0 = off)
	RegressOnce  bool // one delta claims an older table_version
	regressDone  bool
	deltaCounter int
}

type Table struct {
	tableID int64
	inbox   chan Msg
	raw     map[string]any
	version int64
	seq     int64
	clients map[string]chan wire.Envelope
	faults  Faults
	script  []func(raw map[string]any)
	step    int
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewTable(parent context.Context, tableID int64, tick time.Duration, faults Faults, logger *zap.Logger) *Table {
	ctx, cancel := context.WithCancel(parent)
	t := &Table{
		tableID: tableID,
		inbox:   make(chan Msg, 64),
		raw:     seedTable(tableID),
		version: 1,
		seq:     1,
		clients: make(map[string]chan wire.Envelope),
		faults:  faults,
		script:  handScript(),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	go t.loop(tick)
	return t
}

func (t *Table) Inbox() chan<- Msg { return t.inbox }

func (t *Table) loop(tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	ping := time.NewTicker(20 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-t.ctx.Done():
			t.shutdown()
			return

		case <-ticker.C:
			t.advance()

		case <-ping.C:
			t.broadcast(wire.Envelope{Type: wire.TypePing})

		case m := <-t.inbox:
			switch msg := m.(type) {
			case Join:
				t.clients[msg.ClientID] = msg.Outbox

			case Leave:
				delete(t.clients, msg.ClientID)

			case SnapshotReq:
				if ch, ok := t.clients[msg.ClientID]; ok {
					t.send(msg.ClientID, ch, t.snapshot())
				}

			case GetRaw:
				msg.Reply <- t.currentRaw()

			case Shutdown:
				t.shutdown()
				return
			}
		}
	}
}

// advance runs the next script step and pushes it as a table_update delta.
func (t *Table) advance() {
	t.script[t.step%len(t.script)](t.raw)
	t.step++
	t.version++
	t.seq++

	seq := t.seq
	version := t.version
	t.faults.deltaCounter++
	if t.faults.GapEvery > 0 && t.faults.deltaCounter%t.faults.GapEvery == 0 {
		t.seq++ // swallow a sequence number
		seq = t.seq
		t.logger.Info("injected seq gap", zap.Int64("seq", seq))
	}
	if t.faults.RegressOnce && !t.faults.regressDone && t.step == 5 {
		version = 1
		t.faults.regressDone = true
		t.logger.Info("injected version regression")
	}

	payload, _ := json.Marshal(t.raw)
	t.broadcast(wire.Envelope{
		Type:         wire.TypeTableUpdate,
		TableVersion: version,
		EventSeq:     seq,
		Payload:      payload,
		Timestamp:    time.Now().UnixMilli(),
	})
}

func (t *Table) snapshot() wire.Envelope {
	payload, _ := json.Marshal(t.raw)
	return wire.Envelope{
		Type:         wire.TypeSnapshot,
		TableVersion: t.version,
		EventSeq:     t.seq,
		Payload:      payload,
		Timestamp:    time.Now().UnixMilli(),
	}
}

func (t *Table) currentRaw() map[string]any {
	// Hand out a detached copy with the versioning triplet stamped in, the
	// same shape the REST endpoint of the real backend returns.
	data, _ := json.Marshal(t.raw)
	var out map[string]any
	_ = json.Unmarshal(data, &out)
	if out == nil {
		out = map[string]any{}
	}
	out["table_version"] = t.version
	out["event_seq"] = t.seq
	return out
}

func (t *Table) broadcast(env wire.Envelope) {
	for id, ch := range t.clients {
		t.send(id, ch, env)
	}
}

func (t *Table) send(id string, ch chan wire.Envelope, env wire.Envelope) {
	select {
	case ch <- env:
	default:
		// Slow client - drop them.
		close(ch)
		delete(t.clients, id)
	}
}

func (t *Table) shutdown() {
	for id, ch := range t.clients {
		close(ch)
		delete(t.clients, id)
	}
	t.cancel()
}

func seedTable(tableID int64) map[string]any {
	return map[string]any{
		"table_id":    tableID,
		"variant":     "holdem",
		"street":      "preflop",
		"max_players": 6,
		"small_blind": 10,
		"big_blind":   20,
		"currency":    "chips",
		"players": []any{
			map[string]any{"user_id": "u-alice", "position": 0, "stack": 2000, "cards": []any{"Ah", "Kd"}},
			map[string]any{"user_id": "u-bob", "position": 2, "stack": 1850, "card_count": 2},
			map[string]any{"user_id": "u-carol", "position": 4, "stack": 990, "card_count": 2},
		},
		"pot":           30,
		"current_actor": "u-alice",
		"allowed_actions": map[string]any{
			"can_fold": true, "can_call": true, "call_amount": 20,
			"min_raise_to": 40, "max_raise_to": 2000,
		},
	}
}

// handScript loops one stylized hand: streets advance, board fills in, the
// actor rotates, pots split and the hand resolves.
func handScript() []func(map[string]any) {
	return []func(map[string]any){
		func(raw map[string]any) {
			raw["street"] = "flop"
			raw["board"] = []any{"7c", "Td", "2s"}
			raw["pot"] = 120
			raw["current_actor"] = "u-bob"
		},
		func(raw map[string]any) {
			raw["street"] = "turn"
			raw["board"] = []any{"7c", "Td", "2s", "Qh"}
			raw["current_actor"] = "u-carol"
		},
		func(raw map[string]any) {
			raw["street"] = "river"
			raw["board"] = []any{"7c", "Td", "2s", "Qh", "9c"}
			delete(raw, "pot")
			raw["pots"] = []any{
				map[string]any{"amount": 300, "eligible_user_ids": []any{"u-alice", "u-bob"}},
				map[string]any{"amount": 80, "eligible_user_ids": []any{"u-alice", "u-bob", "u-carol"}},
			}
			raw["current_actor"] = "u-alice"
		},
		func(raw map[string]any) {
			raw["street"] = "showdown"
			delete(raw, "current_actor")
			delete(raw, "allowed_actions")
			raw["hand_result"] = map[string]any{
				"winners": []any{
					map[string]any{"user_id": "u-alice", "amount": 380, "hand_rank": "two_pair"},
				},
			}
		},
		func(raw map[string]any) {
			// Next hand.
			raw["street"] = "preflop"
			delete(raw, "board")
			delete(raw, "hand_result")
			delete(raw, "pots")
			raw["pot"] = 30
			raw["current_actor"] = "u-bob"
			raw["allowed_actions"] = map[string]any{
				"can_fold": true, "can_check": true,
				"min_raise_to": 40, "max_raise_to": 1850,
			}
		},
	}
}
