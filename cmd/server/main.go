package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/markethub/notify-queue/internal/api"
	"github.com/markethub/notify-queue/internal/config"
	"github.com/markethub/notify-queue/internal/db"
	msghandler "github.com/markethub/notify-queue/internal/handler"
	"github.com/markethub/notify-queue/internal/metrics"
	"github.com/markethub/notify-queue/internal/queue"
	"github.com/markethub/notify-queue/internal/ratelimit"
	"github.com/markethub/notify-queue/internal/store"
	"github.com/markethub/notify-queue/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	st := store.NewPgStore(pool)
	registry := msghandler.DefaultRegistry(st, logger)
	limiter := ratelimit.New(cfg.RateLimit)

	onEnqueued, onDuplicate, onCompleted, onRetried, onFailed := m.QueueHooks()
	svc := queue.NewService(st, registry, limiter, logger, queue.Hooks{
		OnEnqueued:  onEnqueued,
		OnDuplicate: onDuplicate,
		OnCompleted: onCompleted,
		OnRetried:   onRetried,
		OnFailed:    onFailed,
	})

	// ---- background workers ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	dispatcher := worker.NewDispatcher(svc, cfg.PollInterval, queue.BatchOptions{
		BatchSize:    cfg.BatchSize,
		LockDuration: cfg.LockDuration,
	}, logger)
	go dispatcher.Run(workerCtx)

	cleanup := worker.NewCleanupWorker(svc, cfg.CleanupInterval, cfg.DedupRetention, logger)
	go cleanup.Run(workerCtx)

	// Sample queue depth for the pending-depth gauge on the same cadence as
	// the dispatcher.
	go func() {
		ticker := time.NewTicker(cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				if stats, err := svc.Stats(workerCtx); err == nil {
					m.PendingDepth.Set(float64(stats.Pending))
				}
			}
		}
	}()

	// ---- HTTP server ----
	router := api.NewRouter(svc, st, reg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Stop the dispatcher and cleanup loops. In-flight messages finish
	// their current store call; unfinished leases simply expire and the
	// messages become claimable again on restart.
	cancelWorkers()

	logger.Info("server stopped cleanly")
}
