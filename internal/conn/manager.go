package conn

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/tgpoker/tablesync/internal/reconcile"
	"github.com/tgpoker/tablesync/pkg/wire"
)

const (
	// DefaultReconnectDelay is the fixed gap between reconnect attempts.
	// There is no backoff and no retry cap: the manager's lifetime is
	// bounded by the table view, which tears it down on navigation.
	DefaultReconnectDelay = 1500 * time.Millisecond

	writeTimeout = 3 * time.Second
)

// Manager owns exactly one transport handle for one table view and feeds
// everything it reads into the reconciler inbox. Opening a new socket always
// happens after the previous one is gone; the single run loop guarantees at
// most one reconnect wait is ever pending.
type Manager struct {
	url            string
	reconnectDelay time.Duration
	inbox          chan<- reconcile.Msg
	logger         *zap.Logger

	mu sync.Mutex
	ws *websocket.Conn
}

func NewManager(url string, reconnectDelay time.Duration, inbox chan<- reconcile.Msg, logger *zap.Logger) *Manager {
	if reconnectDelay <= 0 {
		reconnectDelay = DefaultReconnectDelay
	}
	return &Manager{
		url:            url,
		reconnectDelay: reconnectDelay,
		inbox:          inbox,
		logger:         logger,
	}
}

// Run dials, reads and reconnects until ctx is cancelled. Call it on its own
// goroutine; it owns the socket for its whole lifetime.
func (m *Manager) Run(ctx context.Context) {
	for {
		m.post(ctx, reconcile.Connecting{})

		ws, _, err := websocket.Dial(ctx, m.url, nil)
		if err != nil {
			m.post(ctx, reconcile.TransportClosed{Err: err})
			if !m.waitReconnect(ctx) {
				return
			}
			continue
		}

		m.setSocket(ws)
		m.post(ctx, reconcile.TransportOpened{})
		m.RequestSnapshot()

		err = m.readLoop(ctx, ws)
		m.setSocket(nil)
		_ = ws.Close(websocket.StatusNormalClosure, "bye")
		m.post(ctx, reconcile.TransportClosed{Err: err})

		if ctx.Err() != nil {
			return
		}
		if !m.waitReconnect(ctx) {
			return
		}
	}
}

func (m *Manager) readLoop(ctx context.Context, ws *websocket.Conn) error {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			return err
		}

		env, err := wire.DecodeEnvelope(data)
		if err != nil {
			m.logger.Warn("bad frame", zap.Error(err))
			continue
		}

		if env.Type == wire.TypePing {
			// Keep-alives are answered immediately, off the reconciler path.
			m.write(ws, wire.Envelope{Type: wire.TypePong})
			continue
		}
		m.post(ctx, reconcile.ServerMessage{Env: env})
	}
}

// RequestSnapshot asks the server for a full snapshot. Safe to call from any
// goroutine and a no-op while the transport is down; the run loop re-requests
// on every open anyway.
func (m *Manager) RequestSnapshot() {
	m.mu.Lock()
	ws := m.ws
	m.mu.Unlock()
	if ws == nil {
		return
	}
	m.write(ws, wire.Envelope{Type: wire.TypeSnapshotRequest})
}

func (m *Manager) write(ws *websocket.Conn, env wire.Envelope) {
	payload, _ := json.Marshal(env)
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := ws.Write(ctx, websocket.MessageText, payload); err != nil {
		m.logger.Debug("write failed", zap.String("type", env.Type), zap.Error(err))
	}
}

// waitReconnect sleeps out the fixed delay; false means ctx ended first.
func (m *Manager) waitReconnect(ctx context.Context) bool {
	t := time.NewTimer(m.reconnectDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (m *Manager) setSocket(ws *websocket.Conn) {
	m.mu.Lock()
	m.ws = ws
	m.mu.Unlock()
}

func (m *Manager) post(ctx context.Context, msg reconcile.Msg) {
	select {
	case m.inbox <- msg:
	case <-ctx.Done():
	}
}
