package reconcile

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tgpoker/tablesync/internal/state"
	"github.com/tgpoker/tablesync/pkg/wire"
)

// helper: receive one view with a timeout so tests never hang
func getView(t *testing.T, r *Reconciler) View {
	t.Helper()
	reply := make(chan View, 1)
	r.Inbox() <- GetState{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for view")
		return View{} // unreachable
	}
}

func recvUpdate(t *testing.T, ch <-chan Update, within time.Duration) Update {
	t.Helper()
	select {
	case u, ok := <-ch:
		if !ok {
			t.Fatalf("subscriber outbox closed unexpectedly")
		}
		return u
	case <-time.After(within):
		t.Fatalf("timed out waiting for update")
		return Update{} // unreachable
	}
}

func expectSnapshotRequest(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("expected a snapshot request")
	}
}

func newTestReconciler(t *testing.T) (*Reconciler, chan struct{}) {
	t.Helper()
	snapReqs := make(chan struct{}, 8)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	r := New(ctx, func() { snapReqs <- struct{}{} }, zap.NewNop())
	return r, snapReqs
}

func envelope(t *testing.T, msgType string, version, seq int64, payload map[string]any) wire.Envelope {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return wire.Envelope{Type: msgType, TableVersion: version, EventSeq: seq, Payload: data}
}

func TestReconciler_SnapshotGoesLive(t *testing.T) {
	r, _ := newTestReconciler(t)

	r.Inbox() <- Connecting{}
	r.Inbox() <- TransportOpened{}
	if v := getView(t, r); v.Conn != state.SyncingSnapshot {
		t.Fatalf("want syncing_snapshot before the snapshot lands, got %s", v.Conn)
	}

	r.Inbox() <- ServerMessage{Env: envelope(t, wire.TypeSnapshot, 5, 100, map[string]any{
		"max_players": 6,
		"table_id":    42,
	})}

	v := getView(t, r)
	if v.Conn != state.Live {
		t.Fatalf("want live, got %s", v.Conn)
	}
	if len(v.State.Seats) != 6 {
		t.Fatalf("want 6 seats, got %d", len(v.State.Seats))
	}
	if v.State.Metadata.TableID != 42 {
		t.Fatalf("want table_id 42, got %d", v.State.Metadata.TableID)
	}
	if v.State.TableVersion != 5 || v.LastSeq != 100 {
		t.Fatalf("want version 5 / seq 100, got %d / %d", v.State.TableVersion, v.LastSeq)
	}
}

func TestReconciler_ContiguousDeltaAppliesInPlace(t *testing.T) {
	r, _ := newTestReconciler(t)
	r.Inbox() <- TransportOpened{}
	r.Inbox() <- ServerMessage{Env: envelope(t, wire.TypeSnapshot, 5, 100, map[string]any{
		"max_players": 6,
		"players": []any{
			map[string]any{"user_id": "u1", "position": 0, "stack": 500},
			map[string]any{"user_id": "u2", "position": 3, "stack": 800, "cards": []any{"Ah", "Kd"}},
		},
	})}

	// A partial record carrying only the changed field.
	r.Inbox() <- ServerMessage{Env: envelope(t, wire.TypeSeatUpdate, 5, 101, map[string]any{
		"position": 3, "stack": 650,
	})}

	v := getView(t, r)
	if v.Conn != state.Live {
		t.Fatalf("want live, got %s", v.Conn)
	}
	if got := v.State.Seats[3].Stack; got != 650 {
		t.Fatalf("want updated stack 650, got %d", got)
	}
	// The fields the delta was silent on survive.
	if v.State.Seats[3].UserID != "u2" {
		t.Fatalf("occupant should survive a partial update, got %q", v.State.Seats[3].UserID)
	}
	if got := len(v.State.Seats[3].HoleCards); got != 2 {
		t.Fatalf("hole cards should survive a partial update, got %d", got)
	}
	// Other seats untouched.
	if got := v.State.Seats[0].Stack; got != 500 {
		t.Fatalf("seat 0 should be unchanged, got stack %d", got)
	}
	if v.State.Seats[0].UserID != "u1" {
		t.Fatalf("seat 0 occupant should be unchanged")
	}
	if v.LastSeq != 101 {
		t.Fatalf("want last seq 101, got %d", v.LastSeq)
	}
}

func TestReconciler_SeqGapForcesResync(t *testing.T) {
	r, snapReqs := newTestReconciler(t)
	r.Inbox() <- TransportOpened{}
	r.Inbox() <- ServerMessage{Env: envelope(t, wire.TypeSnapshot, 5, 101, map[string]any{
		"max_players": 6,
		"players": []any{
			map[string]any{"user_id": "u2", "position": 3, "stack": 800},
		},
	})}

	out := make(chan Update, 8)
	r.Inbox() <- Subscribe{ID: "c1", Outbox: out}
	_ = recvUpdate(t, out, time.Second) // join update, live

	// seq 103 arrives where 102 was expected: gap.
	r.Inbox() <- ServerMessage{Env: envelope(t, wire.TypeSeatUpdate, 5, 103, map[string]any{
		"user_id": "u2", "position": 3, "stack": 1,
	})}

	expectSnapshotRequest(t, snapReqs)
	// Subscribers see the mismatch, then the transition into syncing while
	// the fresh snapshot is on its way.
	if u := recvUpdate(t, out, time.Second); u.Conn != state.VersionMismatch {
		t.Fatalf("want version_mismatch broadcast on gap, got %s", u.Conn)
	}
	if u := recvUpdate(t, out, time.Second); u.Conn != state.SyncingSnapshot {
		t.Fatalf("want syncing_snapshot after the snapshot request, got %s", u.Conn)
	}
	v := getView(t, r)
	if v.Conn != state.SyncingSnapshot {
		t.Fatalf("want syncing_snapshot while resyncing, got %s", v.Conn)
	}
	if got := v.State.Seats[3].Stack; got != 800 {
		t.Fatalf("skipped delta must not be applied; stack=%d", got)
	}
	if v.NumBuffered != 1 {
		t.Fatalf("gap delta should be buffered, got %d", v.NumBuffered)
	}

	// Fresh snapshot supersedes the buffered delta and goes live again.
	r.Inbox() <- ServerMessage{Env: envelope(t, wire.TypeSnapshot, 6, 110, map[string]any{
		"max_players": 6,
		"players": []any{
			map[string]any{"user_id": "u2", "position": 3, "stack": 720},
		},
	})}
	v = getView(t, r)
	if v.Conn != state.Live || v.NumBuffered != 0 {
		t.Fatalf("want live with empty buffer, got %s / %d buffered", v.Conn, v.NumBuffered)
	}
	if got := v.State.Seats[3].Stack; got != 720 {
		t.Fatalf("snapshot should win, stack=%d", got)
	}
}

func TestReconciler_VersionRegressionRejected(t *testing.T) {
	r, snapReqs := newTestReconciler(t)
	r.Inbox() <- TransportOpened{}
	r.Inbox() <- ServerMessage{Env: envelope(t, wire.TypeSnapshot, 5, 100, map[string]any{"pot": 300})}

	// Contiguous seq but regressing table_version.
	r.Inbox() <- ServerMessage{Env: envelope(t, wire.TypePotUpdate, 4, 101, map[string]any{"pot": 999})}

	expectSnapshotRequest(t, snapReqs)
	v := getView(t, r)
	if v.Conn != state.SyncingSnapshot {
		t.Fatalf("want syncing_snapshot while resyncing, got %s", v.Conn)
	}
	if v.State.Pots[0].Amount != 300 {
		t.Fatalf("regressive delta must not merge, pot=%d", v.State.Pots[0].Amount)
	}
}

func TestReconciler_DeltasBufferedWhileSyncing(t *testing.T) {
	r, _ := newTestReconciler(t)
	r.Inbox() <- TransportOpened{}

	r.Inbox() <- ServerMessage{Env: envelope(t, wire.TypePotUpdate, 5, 101, map[string]any{"pot": 999})}
	v := getView(t, r)
	if v.Conn != state.SyncingSnapshot {
		t.Fatalf("want syncing_snapshot, got %s", v.Conn)
	}
	if v.NumBuffered != 1 {
		t.Fatalf("delta before the snapshot should be buffered, got %d", v.NumBuffered)
	}
}

func TestReconciler_PullAdoptionRules(t *testing.T) {
	r, _ := newTestReconciler(t)
	r.Inbox() <- TransportOpened{}
	r.Inbox() <- ServerMessage{Env: envelope(t, wire.TypeSnapshot, 5, 100, map[string]any{"pot": 300})}

	// Stale pull: lower version, silently dropped.
	r.Inbox() <- PullResult{Raw: map[string]any{"table_version": 4, "event_seq": 90, "pot": 111}}
	v := getView(t, r)
	if v.State.Pots[0].Amount != 300 || v.LastSeq != 100 {
		t.Fatalf("stale pull must not be adopted")
	}

	// Newer pull: adopted, sequence baseline moves.
	r.Inbox() <- PullResult{Raw: map[string]any{"table_version": 7, "event_seq": 120, "pot": 555}}
	v = getView(t, r)
	if v.State.Pots[0].Amount != 555 || v.LastSeq != 120 {
		t.Fatalf("newer pull should be adopted, pot=%d seq=%d", v.State.Pots[0].Amount, v.LastSeq)
	}
	if v.Conn != state.Live {
		t.Fatalf("pull adoption must not change connection state, got %s", v.Conn)
	}
}

func TestReconciler_PullBridgesBeforeTransportReady(t *testing.T) {
	r, _ := newTestReconciler(t)

	r.Inbox() <- PullResult{Raw: map[string]any{"table_version": 2, "event_seq": 10, "pot": 40}}
	v := getView(t, r)
	if v.Conn != state.Disconnected {
		t.Fatalf("connection state reflects the transport, got %s", v.Conn)
	}
	if v.State.TableVersion != 2 || v.State.Pots[0].Amount != 40 {
		t.Fatalf("pull should populate state before the socket is up")
	}
}

func TestReconciler_TransportCloseFromLive(t *testing.T) {
	r, _ := newTestReconciler(t)
	r.Inbox() <- TransportOpened{}
	r.Inbox() <- ServerMessage{Env: envelope(t, wire.TypeSnapshot, 5, 100, nil)}
	r.Inbox() <- TransportClosed{}

	if v := getView(t, r); v.Conn != state.Disconnected {
		t.Fatalf("want disconnected, got %s", v.Conn)
	}
}

func TestReconciler_SubscribeGetsImmediateUpdateAndBroadcasts(t *testing.T) {
	r, _ := newTestReconciler(t)

	out := make(chan Update, 8)
	r.Inbox() <- Subscribe{ID: "c1", Outbox: out}
	first := recvUpdate(t, out, time.Second)
	if first.Conn != state.Disconnected {
		t.Fatalf("join update should carry current state, got %s", first.Conn)
	}

	r.Inbox() <- TransportOpened{}
	_ = recvUpdate(t, out, time.Second) // syncing_snapshot
	r.Inbox() <- ServerMessage{Env: envelope(t, wire.TypeSnapshot, 5, 100, map[string]any{"pot": 75})}
	u := recvUpdate(t, out, time.Second)
	if u.Conn != state.Live || u.State.Pots[0].Amount != 75 {
		t.Fatalf("broadcast should carry the adopted snapshot")
	}
}

func TestReconciler_SnapshotWhileLiveNotifiesSubscribers(t *testing.T) {
	r, _ := newTestReconciler(t)
	r.Inbox() <- TransportOpened{}
	r.Inbox() <- ServerMessage{Env: envelope(t, wire.TypeSnapshot, 5, 100, map[string]any{"pot": 75})}

	out := make(chan Update, 8)
	r.Inbox() <- Subscribe{ID: "c1", Outbox: out}
	_ = recvUpdate(t, out, time.Second) // join update, live

	// A second snapshot with no state transition still lands on subscribers.
	r.Inbox() <- ServerMessage{Env: envelope(t, wire.TypeSnapshot, 6, 110, map[string]any{"pot": 225})}
	u := recvUpdate(t, out, time.Second)
	if u.Conn != state.Live || u.State.Pots[0].Amount != 225 {
		t.Fatalf("snapshot adopted while live should be broadcast, got %s / pot=%d",
			u.Conn, u.State.Pots[0].Amount)
	}
}

func TestReconciler_ZeroBasedCountersAreHonored(t *testing.T) {
	r, _ := newTestReconciler(t)
	r.Inbox() <- TransportOpened{}

	// Some servers count from zero; 0 is a real value, not absence.
	r.Inbox() <- ServerMessage{Env: envelope(t, wire.TypeSnapshot, 0, 0, map[string]any{"pot": 50})}
	v := getView(t, r)
	if v.Conn != state.Live {
		t.Fatalf("want live on a zero-counter snapshot, got %s", v.Conn)
	}
	if v.State.TableVersion != 0 || v.LastSeq != 0 {
		t.Fatalf("want version 0 / seq 0, got %d / %d", v.State.TableVersion, v.LastSeq)
	}

	r.Inbox() <- ServerMessage{Env: envelope(t, wire.TypePotUpdate, 0, 1, map[string]any{"pot": 90})}
	v = getView(t, r)
	if v.Conn != state.Live || v.LastSeq != 1 {
		t.Fatalf("contiguous delta after seq 0 should apply, got %s / seq %d", v.Conn, v.LastSeq)
	}
	if v.State.Pots[0].Amount != 90 {
		t.Fatalf("want pot 90, got %d", v.State.Pots[0].Amount)
	}
}

func TestReconciler_DropsSlowSubscriber(t *testing.T) {
	r, _ := newTestReconciler(t)

	// Unbuffered and never read: the join update cannot be delivered.
	out := make(chan Update)
	r.Inbox() <- Subscribe{ID: "slow", Outbox: out}
	r.Inbox() <- TransportOpened{}

	if v := getView(t, r); v.NumSubscribers != 0 {
		t.Fatalf("expected slow subscriber to be dropped; NumSubscribers=%d", v.NumSubscribers)
	}
}
