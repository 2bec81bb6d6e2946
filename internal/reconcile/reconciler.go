package reconcile

import (
	"context"

	"go.uber.org/zap"

	"github.com/tgpoker/tablesync/internal/norm"
	"github.com/tgpoker/tablesync/internal/state"
	"github.com/tgpoker/tablesync/pkg/wire"
)

type Msg interface{ isReconcilerMsg() }

// Transport lifecycle notifications from the connection manager.
type Connecting struct{}

type TransportOpened struct{}

type TransportClosed struct{ Err error }

// ServerMessage carries one decoded envelope off the table channel.
type ServerMessage struct{ Env wire.Envelope }

// PullResult carries a raw payload fetched out-of-band by the resync
// coordinator. It goes through the same monotonicity rules as push traffic.
type PullResult struct{ Raw map[string]any }

// Subscribe registers a render-layer outbox; the current state is delivered
// immediately on join.
type Subscribe struct {
	ID     string
	Outbox chan Update
}

type Unsubscribe struct{ ID string }

// GetState is a request/reply hook so tests can observe internals without
// data races.
type GetState struct{ Reply chan View }

type Shutdown struct{}

func (Connecting) isReconcilerMsg()      {}
func (TransportOpened) isReconcilerMsg() {}
func (TransportClosed) isReconcilerMsg() {}
func (ServerMessage) isReconcilerMsg()   {}
func (PullResult) isReconcilerMsg()      {}
func (Subscribe) isReconcilerMsg()       {}
func (Unsubscribe) isReconcilerMsg()     {}
func (GetState) isReconcilerMsg()        {}
func (Shutdown) isReconcilerMsg()        {}

// Update is what subscribers receive on every applied change.
type Update struct {
	Conn  state.ConnectionState
	State state.NormalizedTableState
}

type View struct {
	Conn           state.ConnectionState
	State          state.NormalizedTableState
	LastSeq        int64
	NumSubscribers int
	NumBuffered    int
}

// Reconciler exclusively owns the canonical state for one table. Everything
// reaches it through the inbox and is applied on a single goroutine, so no
// locking happens anywhere downstream.
type Reconciler struct {
	inbox chan Msg

	raw      map[string]any // merge baseline for incoming deltas
	st       state.NormalizedTableState
	conn     state.ConnectionState
	lastSeq  int64
	buffered map[int64]wire.Envelope

	subscribers     map[string]chan Update
	requestSnapshot func()
	logger          *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New starts a reconciler for one table view. requestSnapshot asks the
// transport for a fresh snapshot; it must be safe to call when the transport
// is down (the connection manager re-requests on open anyway).
func New(parent context.Context, requestSnapshot func(), logger *zap.Logger) *Reconciler {
	ctx, cancel := context.WithCancel(parent)
	r := &Reconciler{
		inbox:           make(chan Msg, 64),
		raw:             map[string]any{},
		st:              norm.NormalizeTableState(nil),
		conn:            state.Disconnected,
		lastSeq:         state.UnknownVersion,
		buffered:        make(map[int64]wire.Envelope),
		subscribers:     make(map[string]chan Update),
		requestSnapshot: requestSnapshot,
		logger:          logger,
		ctx:             ctx,
		cancel:          cancel,
	}
	go r.loop()
	return r
}

func (r *Reconciler) Inbox() chan<- Msg { return r.inbox }

func (r *Reconciler) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Connecting:
				r.setConn(state.Connecting)

			case TransportOpened:
				// The manager sends the snapshot request on open; we just
				// stop accepting deltas until it lands.
				r.setConn(state.SyncingSnapshot)

			case TransportClosed:
				if msg.Err != nil {
					r.logger.Info("transport closed", zap.Error(msg.Err))
				}
				r.setConn(state.Disconnected)

			case ServerMessage:
				r.handleEnvelope(msg.Env)

			case PullResult:
				r.handlePull(msg.Raw)

			case Subscribe:
				r.subscribers[msg.ID] = msg.Outbox
				r.sendTo(msg.ID, msg.Outbox, Update{Conn: r.conn, State: r.st.Clone()})

			case Unsubscribe:
				delete(r.subscribers, msg.ID)

			case GetState:
				msg.Reply <- View{
					Conn:           r.conn,
					State:          r.st.Clone(),
					LastSeq:        r.lastSeq,
					NumSubscribers: len(r.subscribers),
					NumBuffered:    len(r.buffered),
				}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Reconciler) handleEnvelope(env wire.Envelope) {
	switch {
	case env.Type == wire.TypeSnapshot:
		r.adoptSnapshot(env)

	case wire.IsDelta(env.Type):
		r.handleDelta(env)
	}
}

// adoptSnapshot replaces the baseline unconditionally: a snapshot always has
// authority, including over anything buffered from an older epoch. The
// broadcast is unconditional too, so a snapshot that arrives while already
// live still reaches subscribers.
func (r *Reconciler) adoptSnapshot(env wire.Envelope) {
	raw := env.DecodePayload()
	stampVersions(raw, env)
	r.raw = raw
	r.st = norm.NormalizeTableState(raw)
	r.lastSeq = r.st.EventSeq
	clear(r.buffered)
	r.conn = state.Live
	r.broadcast()
	r.logger.Debug("snapshot adopted",
		zap.Int64("table_version", r.st.TableVersion),
		zap.Int64("event_seq", r.lastSeq))
}

func (r *Reconciler) handleDelta(env wire.Envelope) {
	switch r.conn {
	case state.Live:
		if env.EventSeq != r.lastSeq+1 || env.TableVersion < r.st.TableVersion {
			// Gap or regression: no speculative merge, force a resync.
			r.logger.Warn("desync detected",
				zap.String("type", env.Type),
				zap.Int64("event_seq", env.EventSeq),
				zap.Int64("expected_seq", r.lastSeq+1),
				zap.Int64("table_version", env.TableVersion))
			r.buffered[env.EventSeq] = env
			r.setConn(state.VersionMismatch)
			r.requestSnapshot()
			r.setConn(state.SyncingSnapshot)
			return
		}
		r.applyDelta(env)

	case state.VersionMismatch, state.SyncingSnapshot:
		// Park it by sequence number; the next snapshot supersedes it.
		r.buffered[env.EventSeq] = env

	default:
		// Deltas arriving while disconnected are stale by definition.
	}
}

func (r *Reconciler) applyDelta(env wire.Envelope) {
	mergeDelta(r.raw, env)
	r.st = norm.NormalizeTableState(r.raw)
	r.lastSeq = env.EventSeq
	r.broadcast()
}

// handlePull applies the resync cross-check: the pulled state is adopted
// only when it is strictly newer than what we already hold.
func (r *Reconciler) handlePull(raw map[string]any) {
	cand := norm.NormalizeTableState(raw)
	newer := cand.TableVersion > r.st.TableVersion ||
		(cand.TableVersion == r.st.TableVersion && cand.EventSeq > r.lastSeq)
	if !newer {
		return
	}
	r.raw = raw
	r.st = cand
	r.lastSeq = cand.EventSeq
	r.broadcast()
}

func (r *Reconciler) setConn(c state.ConnectionState) {
	if r.conn == c {
		return
	}
	r.conn = c
	r.broadcast()
}

func (r *Reconciler) broadcast() {
	for id, ch := range r.subscribers {
		r.sendTo(id, ch, Update{Conn: r.conn, State: r.st.Clone()})
	}
}

func (r *Reconciler) sendTo(id string, ch chan Update, u Update) {
	select {
	case ch <- u:
	default:
		// Subscriber is slow/full - drop them.
		close(ch)
		delete(r.subscribers, id)
	}
}

func (r *Reconciler) shutdown() {
	for id, ch := range r.subscribers {
		close(ch)
		delete(r.subscribers, id)
	}
	r.cancel()
}

// stampVersions copies the envelope's versioning triplet into the payload
// map so the normalizer carries it through. Fields the envelope did not
// carry are left alone; if the payload lacks them too, the normalizer
// substitutes UnknownVersion, which forces a resync on the next delta.
func stampVersions(raw map[string]any, env wire.Envelope) {
	if env.TableVersion != wire.VersionAbsent {
		raw["table_version"] = env.TableVersion
	}
	if env.EventSeq != wire.VersionAbsent {
		raw["event_seq"] = env.EventSeq
	}
	if env.SchemaVersion != 0 {
		raw["schema_version"] = env.SchemaVersion
	}
}
