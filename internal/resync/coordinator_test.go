package resync

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tgpoker/tablesync/internal/reconcile"
)

// fakePuller serves scripted table payloads, optionally stalling so a pull
// can be superseded mid-flight.
type fakePuller struct {
	mu      sync.Mutex
	calls   int
	stall   map[int]time.Duration // per-call-number delay
	version int64
}

func (f *fakePuller) TableDetail(ctx context.Context, tableID int64) (map[string]any, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.version++
	v := f.version
	delay := f.stall[n]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return map[string]any{"table_version": v, "event_seq": v, "table_id": tableID}, nil
}

func (f *fakePuller) MyTables(ctx context.Context, userID string) ([]map[string]any, error) {
	return []map[string]any{{"table_id": 1}}, nil
}

func recvPull(t *testing.T, ch <-chan reconcile.Msg, within time.Duration) reconcile.PullResult {
	t.Helper()
	deadline := time.After(within)
	for {
		select {
		case m := <-ch:
			if pr, ok := m.(reconcile.PullResult); ok {
				return pr
			}
		case <-deadline:
			t.Fatalf("timed out waiting for pull result")
			return reconcile.PullResult{} // unreachable
		}
	}
}

func TestCoordinator_ImmediateFirstPull(t *testing.T) {
	inbox := make(chan reconcile.Msg, 16)
	p := &fakePuller{}
	c := NewCoordinator(time.Hour, p, 42, "u1", inbox, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	pr := recvPull(t, inbox, time.Second)
	if pr.Raw["table_id"] != int64(42) {
		t.Fatalf("want table 42, got %v", pr.Raw["table_id"])
	}
}

func TestCoordinator_KickSupersedesInflightPull(t *testing.T) {
	inbox := make(chan reconcile.Msg, 16)
	// Call 1 stalls long enough to be superseded by the kick.
	p := &fakePuller{stall: map[int]time.Duration{1: 5 * time.Second}}
	c := NewCoordinator(time.Hour, p, 42, "u1", inbox, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	time.Sleep(50 * time.Millisecond) // let the stalled first pull start
	c.Kick()

	pr := recvPull(t, inbox, 2*time.Second)
	if pr.Raw["table_version"] != int64(2) {
		t.Fatalf("only the superseding pull's result should arrive, got version %v", pr.Raw["table_version"])
	}

	// The cancelled first pull must never deliver.
	select {
	case m := <-inbox:
		if pr, ok := m.(reconcile.PullResult); ok {
			t.Fatalf("stale pull leaked a result: %v", pr.Raw)
		}
	case <-time.After(200 * time.Millisecond):
	}
}

func TestCoordinator_MyTablesRunsOnSameCadence(t *testing.T) {
	inbox := make(chan reconcile.Msg, 16)
	p := &fakePuller{}
	got := make(chan int, 4)
	c := NewCoordinator(time.Hour, p, 42, "u1", inbox, func(tables []map[string]any) {
		got <- len(tables)
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	select {
	case n := <-got:
		if n != 1 {
			t.Fatalf("want 1 table, got %d", n)
		}
	case <-time.After(time.Second):
		t.Fatalf("my-tables callback never fired")
	}
}
