package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/tgpoker/tablesync/internal/config"
	"github.com/tgpoker/tablesync/internal/conn"
	"github.com/tgpoker/tablesync/internal/pull"
	"github.com/tgpoker/tablesync/internal/reconcile"
	"github.com/tgpoker/tablesync/internal/resync"
)

// Session is everything one open table view needs: the reconciler owning the
// canonical state, the connection manager feeding it, and the resync
// coordinator backstopping it. Created on view entry, closed on navigation
// away; nothing survives across table instances.
type Session struct {
	TableID    int64
	Reconciler *reconcile.Reconciler
	Resync     *resync.Coordinator

	conn   *conn.Manager
	cancel context.CancelFunc
}

// Options lets callers swap collaborators (tests inject a fake puller, the
// simulator injects a shorter resync interval).
type Options struct {
	Config     config.Config
	Puller     resync.Puller
	OnMyTables func([]map[string]any)
	Logger     *zap.Logger
}

func New(parent context.Context, tableID int64, opts Options) *Session {
	ctx, cancel := context.WithCancel(parent)
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.Int64("table_id", tableID))

	s := &Session{TableID: tableID, cancel: cancel}

	// The reconciler's snapshot requests go through the manager; the manager
	// does not exist yet, so route through the session.
	s.Reconciler = reconcile.New(ctx, func() { s.requestSnapshot() }, logger.Named("reconcile"))

	s.conn = conn.NewManager(
		opts.Config.TableWS(tableID),
		opts.Config.ReconnectDelay,
		s.Reconciler.Inbox(),
		logger.Named("conn"),
	)

	puller := opts.Puller
	if puller == nil {
		puller = pull.NewClient(opts.Config.APIBase, logger.Named("pull"))
	}
	s.Resync = resync.NewCoordinator(
		opts.Config.ResyncInterval,
		puller,
		tableID,
		opts.Config.UserID,
		s.Reconciler.Inbox(),
		opts.OnMyTables,
		logger.Named("resync"),
	)

	go s.conn.Run(ctx)
	go s.Resync.Run(ctx)
	return s
}

func (s *Session) requestSnapshot() {
	if s.conn != nil {
		s.conn.RequestSnapshot()
	}
}

// Close tears the whole session down: socket, timers, in-flight pulls, actor.
func (s *Session) Close() {
	s.Reconciler.Inbox() <- reconcile.Shutdown{}
	s.cancel()
}
