// Package serverrun bootstraps the webhook relay: it opens the Runtime,
// wires the chunker, HTTP surface, delivery pool, and cleanup scheduler on
// top of it, and blocks until the process is signalled to stop.
package serverrun

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/SalindaGunarathna/WebhookPush/internal/chunker"
	cfgpkg "github.com/SalindaGunarathna/WebhookPush/internal/config"
	"github.com/SalindaGunarathna/WebhookPush/internal/cleanup"
	"github.com/SalindaGunarathna/WebhookPush/internal/delivery"
	"github.com/SalindaGunarathna/WebhookPush/internal/httpapi"
	"github.com/SalindaGunarathna/WebhookPush/internal/runtime"
	pebblestore "github.com/SalindaGunarathna/WebhookPush/internal/storage/pebble"
	logpkg "github.com/SalindaGunarathna/WebhookPush/pkg/log"
)

// Options configures Run. Config is expected to already be layered
// (Default -> file -> env) and validated by the caller.
type Options struct {
	Fsync  pebblestore.FsyncMode
	Config cfgpkg.Config
}

// reclaimLoopInterval paces the expired-lease sweep; half the delivery
// pool's 30s visibility timeout so a stalled lease is recovered promptly.
const reclaimLoopInterval = 15 * time.Second

// Run opens the runtime, starts every long-running component, and blocks
// until ctx is cancelled or a termination signal arrives, then shuts down
// in reverse wiring order.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logCfg := logpkg.Config{Level: opts.Config.LogLevel, Format: opts.Config.LogFormat}
	logger, err := logpkg.ApplyConfig(logCfg)
	if err != nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}
	logpkg.RedirectStdLog(logger)

	rt, err := runtime.Open(runtime.Options{Fsync: opts.Fsync, Config: opts.Config})
	if err != nil {
		return err
	}
	defer rt.Close()

	logger.Info("starting webhook relay",
		logpkg.Str("bind_addr", opts.Config.BindAddr),
		logpkg.Str("db_path", opts.Config.DBPath),
		logpkg.Str("queue_db_path", opts.Config.QueueDBPath),
		logpkg.Int("queue_workers", opts.Config.QueueWorkers),
	)

	chunk := chunker.New(rt.Queue(), chunker.Config{
		MaxPayloadBytes: opts.Config.MaxPayloadBytes,
		ChunkDataBytes:  opts.Config.ChunkDataBytes,
		ReadTimeout:     time.Duration(opts.Config.WebhookReadTimeoutMs) * time.Millisecond,
	})

	httpSrv := httpapi.New(rt.Store(), rt.Queue(), chunk, rt.Limiter(), rt.Sender(), rt.Metrics(), httpapi.Config{
		PublicBaseURL:    opts.Config.PublicBaseURL,
		CORSOrigins:      opts.Config.CORSOrigins,
		AllowedPushHosts: opts.Config.AllowedPushHosts,
	}, logger)

	pool := delivery.New(rt.Queue(), rt.Store(), rt.Sender(), delivery.Config{
		Workers:    opts.Config.QueueWorkers,
		ChunkDelay: time.Duration(opts.Config.ChunkDelayMs) * time.Millisecond,
		Metrics:    rt.Metrics(),
	}, logger)
	pool.Start()

	// Reclaims leases left behind by a worker that stalls past its 30s
	// visibility timeout; without this a stalled lease is only recovered on
	// the next process restart.
	rt.Queue().StartReclaimLoop(reclaimLoopInterval)

	sweeper := cleanup.New(rt.Store(), cleanup.Config{
		TTL: time.Duration(opts.Config.SubscriptionTTLDays) * 24 * time.Hour,
	}, logger)
	sweeper.Start()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := httpSrv.ListenAndServe(sctx, opts.Config.BindAddr); err != nil && sctx.Err() == nil {
			logger.Error("http server error", logpkg.Err(err))
		}
	}()

	<-sctx.Done()
	logger.Info("shutting down")

	grace := time.Duration(opts.Config.ShutdownGraceMs) * time.Millisecond
	sweeper.Stop()
	rt.Queue().StopReclaimLoop()
	pool.Stop(grace)
	httpSrv.Close()
	wg.Wait()
	return nil
}
