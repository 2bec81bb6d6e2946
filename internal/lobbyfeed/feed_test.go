package lobbyfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

func TestFeed_DispatchesLobbyMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "bye")

		msgs := []string{
			`{"type":"TABLE_REMOVED","table_id":42}`,
			`{"type":"LOBBY_UPDATE_REQUIRED"}`,
		}
		for _, m := range msgs {
			if err := c.Write(r.Context(), websocket.MessageText, []byte(m)); err != nil {
				return
			}
		}
		_, _, _ = c.Read(r.Context()) // hold open until the client leaves
	}))
	defer srv.Close()

	removed := make(chan int64, 1)
	updates := make(chan struct{}, 1)
	f := New(srv.URL, 50*time.Millisecond,
		func(tableID int64) { removed <- tableID },
		func() { updates <- struct{}{} },
		zap.NewNop(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	select {
	case id := <-removed:
		if id != 42 {
			t.Fatalf("want table 42 removed, got %d", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("TABLE_REMOVED never dispatched")
	}

	select {
	case <-updates:
	case <-time.After(2 * time.Second):
		t.Fatalf("LOBBY_UPDATE_REQUIRED never dispatched")
	}
}
