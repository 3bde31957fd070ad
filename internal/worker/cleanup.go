package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/markethub/notify-queue/internal/queue"
)

// CleanupWorker periodically purges deduplication records past the retention
// window. A failed sweep is logged and retried on the next tick; it never
// affects delivery correctness.
type CleanupWorker struct {
	svc       *queue.Service
	interval  time.Duration
	retention time.Duration
	logger    *zap.Logger
}

func NewCleanupWorker(svc *queue.Service, interval, retention time.Duration, logger *zap.Logger) *CleanupWorker {
	return &CleanupWorker{svc: svc, interval: interval, retention: retention, logger: logger}
}

// Run ticks every interval and sweeps once per tick.
// Stops cleanly when ctx is cancelled.
func (cw *CleanupWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(cw.interval)
	defer ticker.Stop()

	cw.logger.Info("cleanup worker started",
		zap.Duration("interval", cw.interval),
		zap.Duration("retention", cw.retention),
	)

	for {
		select {
		case <-ctx.Done():
			cw.logger.Info("cleanup worker stopping")
			return
		case <-ticker.C:
			if _, err := cw.svc.CleanupProcessedMessages(ctx, cw.retention); err != nil {
				cw.logger.Error("dedup cleanup error", zap.Error(err))
			}
		}
	}
}
