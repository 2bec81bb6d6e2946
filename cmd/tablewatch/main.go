package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/tgpoker/tablesync/internal/config"
	"github.com/tgpoker/tablesync/internal/lobbyfeed"
	"github.com/tgpoker/tablesync/internal/reconcile"
	"github.com/tgpoker/tablesync/internal/session"
)

// tablewatch joins one table and logs every canonical state change: the
// whole sync engine wired end to end, minus the rendering surface.
func main() {
	tableID := flag.Int64("table", 1, "table id to watch")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.FromEnv()

	logger, _ := zap.NewDevelopment()
	if !*debug {
		logger = logger.WithOptions(zap.IncreaseLevel(zap.InfoLevel))
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := session.NewRegistry(ctx, func(ctx context.Context, id int64) *session.Session {
		return session.New(ctx, id, session.Options{
			Config: cfg,
			Logger: logger,
			OnMyTables: func(tables []map[string]any) {
				logger.Debug("my tables refreshed", zap.Int("count", len(tables)))
			},
		})
	})

	reply := make(chan *session.Session, 1)
	registry.Inbox() <- session.EnsureSession{TableID: *tableID, Reply: reply}
	s := <-reply

	feed := lobbyfeed.New(cfg.LobbyWS(), cfg.ReconnectDelay,
		func(removed int64) {
			logger.Info("table removed from lobby", zap.Int64("table_id", removed))
		},
		func() { s.Resync.Kick() },
		logger.Named("lobbyfeed"),
	)
	go feed.Run(ctx)

	out := make(chan reconcile.Update, 8)
	s.Reconciler.Inbox() <- reconcile.Subscribe{ID: uuid.NewString(), Outbox: out}

	for {
		select {
		case <-ctx.Done():
			registry.Inbox() <- session.ShutdownRegistry{}
			return
		case u, ok := <-out:
			if !ok {
				return
			}
			logger.Info("state",
				zap.String("conn", string(u.Conn)),
				zap.Int64("table_version", u.State.TableVersion),
				zap.Int64("event_seq", u.State.EventSeq),
				zap.String("street", u.State.Street),
				zap.String("stakes", u.State.Metadata.Stakes),
				zap.Int("seats", len(u.State.Seats)),
				zap.Int("pots", len(u.State.Pots)),
				zap.Int("actions", len(u.State.LegalActions)),
			)
		}
	}
}
