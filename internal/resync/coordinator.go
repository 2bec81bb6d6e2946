package resync

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tgpoker/tablesync/internal/reconcile"
)

// DefaultInterval matches the production refresh cadence.
const DefaultInterval = 25 * time.Second

// Puller is the pull-endpoint collaborator (see internal/pull).
type Puller interface {
	TableDetail(ctx context.Context, tableID int64) (map[string]any, error)
	MyTables(ctx context.Context, userID string) ([]map[string]any, error)
}

// Coordinator periodically re-fetches authoritative state independent of the
// push transport: it bridges the window before the socket is up and
// self-heals a push feed that silently went quiet. Starting a refresh cancels
// any in-flight one for the same query, so a slow stale response can never
// overwrite a newer result.
type Coordinator struct {
	interval   time.Duration
	puller     Puller
	tableID    int64
	userID     string
	inbox      chan<- reconcile.Msg
	onMyTables func([]map[string]any)
	kick       chan struct{}
	logger     *zap.Logger
}

func NewCoordinator(interval time.Duration, puller Puller, tableID int64, userID string,
	inbox chan<- reconcile.Msg, onMyTables func([]map[string]any), logger *zap.Logger) *Coordinator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Coordinator{
		interval:   interval,
		puller:     puller,
		tableID:    tableID,
		userID:     userID,
		inbox:      inbox,
		onMyTables: onMyTables,
		kick:       make(chan struct{}, 1),
		logger:     logger,
	}
}

// Kick requests an immediate out-of-cycle refresh (lobby feed asked for one).
// Never blocks; a pending kick coalesces.
func (c *Coordinator) Kick() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// Run pulls once immediately, then on every tick or kick, until ctx ends.
func (c *Coordinator) Run(ctx context.Context) {
	var cancelInflight context.CancelFunc

	refresh := func() {
		if cancelInflight != nil {
			cancelInflight()
		}
		pctx, cancel := context.WithCancel(ctx)
		cancelInflight = cancel
		go c.pullOnce(pctx)
	}

	refresh()
	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			if cancelInflight != nil {
				cancelInflight()
			}
			return
		case <-t.C:
			refresh()
		case <-c.kick:
			refresh()
		}
	}
}

// pullOnce issues the table-detail and my-tables pulls in parallel. Errors
// stay local: a superseded pull is dropped silently, a genuine failure is
// logged and left for the next cycle.
func (c *Coordinator) pullOnce(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		raw, err := c.puller.TableDetail(gctx, c.tableID)
		if err != nil {
			c.reportErr("table_detail", err)
			return nil
		}
		if gctx.Err() != nil {
			return nil // superseded after the response landed
		}
		select {
		case c.inbox <- reconcile.PullResult{Raw: raw}:
		case <-gctx.Done():
		}
		return nil
	})

	g.Go(func() error {
		if c.onMyTables == nil {
			return nil
		}
		tables, err := c.puller.MyTables(gctx, c.userID)
		if err != nil {
			c.reportErr("my_tables", err)
			return nil
		}
		if gctx.Err() != nil {
			return nil
		}
		c.onMyTables(tables)
		return nil
	})

	_ = g.Wait()
}

func (c *Coordinator) reportErr(what string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	c.logger.Warn("pull failed", zap.String("pull", what), zap.Error(err))
}
