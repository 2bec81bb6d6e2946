package sim

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tgpoker/tablesync/pkg/wire"
)

// Server exposes the simulated backend over the same surfaces the real one
// has: a push websocket per table, a lobby websocket, and the pull endpoints.
type Server struct {
	tables map[int64]*Table
	logger *zap.Logger
}

func NewServer(ctx context.Context, tableIDs []int64, tick time.Duration, faults Faults, logger *zap.Logger) *Server {
	s := &Server{tables: make(map[int64]*Table), logger: logger}
	for _, id := range tableIDs {
		s.tables[id] = NewTable(ctx, id, tick, faults, logger.With(zap.Int64("table_id", id)))
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/tables/{tableID}", s.tableDetail)
	r.Get("/players/{userID}/tables", s.myTables)
	r.Get("/ws", s.tableWS)
	r.Get("/ws/lobby", s.lobbyWS)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return r
}

func (s *Server) tableDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "tableID"), 10, 64)
	if err != nil {
		http.Error(w, "bad table id", http.StatusBadRequest)
		return
	}
	tb := s.tables[id]
	if tb == nil {
		http.Error(w, "table not found", http.StatusNotFound)
		return
	}
	reply := make(chan map[string]any, 1)
	tb.Inbox() <- GetRaw{Reply: reply}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(<-reply)
}

func (s *Server) myTables(w http.ResponseWriter, r *http.Request) {
	out := make([]map[string]any, 0, len(s.tables))
	for _, tb := range s.tables {
		reply := make(chan map[string]any, 1)
		tb.Inbox() <- GetRaw{Reply: reply}
		out = append(out, <-reply)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (s *Server) tableWS(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("table"), 10, 64)
	if err != nil {
		http.Error(w, "missing table", http.StatusBadRequest)
		return
	}
	tb := s.tables[id]
	if tb == nil {
		http.Error(w, "table not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	clientID := uuid.NewString()
	out := make(chan wire.Envelope, 16)
	tb.Inbox() <- Join{ClientID: clientID, Outbox: out}
	defer func() { tb.Inbox() <- Leave{ClientID: clientID} }()

	writeCtx, writeCancel := context.WithCancel(r.Context())
	defer writeCancel()
	go func() {
		for env := range out {
			payload, _ := json.Marshal(env)
			ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
			_ = conn.Write(ctx, websocket.MessageText, payload)
			cancel()
		}
	}()

	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			return
		}

		var env wire.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		switch env.Type {
		case wire.TypeSnapshotRequest:
			tb.Inbox() <- SnapshotReq{ClientID: clientID}
		case wire.TypePong:
			// liveness acknowledged, nothing to do
		}
	}
}

// lobbyWS pushes a LOBBY_UPDATE_REQUIRED nudge periodically so the client's
// pull-refresh path gets exercised.
func (s *Server) lobbyWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			payload, _ := json.Marshal(wire.Envelope{Type: wire.TypeLobbyUpdateRequired})
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			err := conn.Write(ctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
