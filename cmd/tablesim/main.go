package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tgpoker/tablesync/internal/sim"
)

// tablesim runs a scripted poker backend so the sync engine can be developed
// and demoed without the production server. The fault flags deliberately
// break the delta feed to show the client resyncing.
func main() {
	addr := flag.String("addr", ":8080", "listen address")
	tick := flag.Duration("tick", 2*time.Second, "script step interval")
	gapEvery := flag.Int("gap-every", 0, "inject a sequence gap every Nth delta (0 = off)")
	regress := flag.Bool("regress-once", false, "inject one table_version regression")
	flag.Parse()

	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := sim.NewServer(ctx, []int64{1, 2, 42}, *tick, sim.Faults{
		GapEvery:    *gapEvery,
		RegressOnce: *regress,
	}, logger)

	httpSrv := &http.Server{Addr: *addr, Handler: srv.Routes()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", *addr))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
