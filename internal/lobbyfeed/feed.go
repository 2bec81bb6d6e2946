package lobbyfeed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/tgpoker/tablesync/pkg/wire"
)

// Feed consumes the lobby channel. TABLE_REMOVED prunes a stale listing;
// LOBBY_UPDATE_REQUIRED asks for an immediate pull refresh (wired to the
// resync coordinator's Kick). Reconnects the same way the table transport
// does: fixed delay, no cap, torn down with the lobby view.
type Feed struct {
	url            string
	reconnectDelay time.Duration
	onRemoved      func(tableID int64)
	onUpdate       func()
	logger         *zap.Logger
}

func New(url string, reconnectDelay time.Duration, onRemoved func(int64), onUpdate func(), logger *zap.Logger) *Feed {
	if reconnectDelay <= 0 {
		reconnectDelay = 1500 * time.Millisecond
	}
	return &Feed{
		url:            url,
		reconnectDelay: reconnectDelay,
		onRemoved:      onRemoved,
		onUpdate:       onUpdate,
		logger:         logger,
	}
}

func (f *Feed) Run(ctx context.Context) {
	for {
		ws, _, err := websocket.Dial(ctx, f.url, nil)
		if err == nil {
			f.readLoop(ctx, ws)
			_ = ws.Close(websocket.StatusNormalClosure, "bye")
		} else {
			f.logger.Debug("lobby dial failed", zap.Error(err))
		}

		t := time.NewTimer(f.reconnectDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (f *Feed) readLoop(ctx context.Context, ws *websocket.Conn) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			return
		}
		env, err := wire.DecodeEnvelope(data)
		if err != nil {
			f.logger.Warn("bad lobby frame", zap.Error(err))
			continue
		}
		switch env.Type {
		case wire.TypePing:
			payload, _ := json.Marshal(wire.Envelope{Type: wire.TypePong})
			_ = ws.Write(ctx, websocket.MessageText, payload)
		case wire.TypeTableRemoved:
			if f.onRemoved != nil {
				f.onRemoved(env.TableID)
			}
		case wire.TypeLobbyUpdateRequired:
			if f.onUpdate != nil {
				f.onUpdate()
			}
		}
	}
}
