package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/markethub/notify-queue/internal/queue"
)

// Dispatcher drives the queue: it calls ProcessNextBatch on a fixed cadence
// until its context is cancelled. Several dispatchers may run in the same or
// different processes against one database; the store's atomic claim keeps
// their batches disjoint.
type Dispatcher struct {
	svc      *queue.Service
	interval time.Duration
	opts     queue.BatchOptions
	logger   *zap.Logger
}

func NewDispatcher(svc *queue.Service, interval time.Duration, opts queue.BatchOptions, logger *zap.Logger) *Dispatcher {
	if opts.ProcessorID == "" {
		opts.ProcessorID = queue.NewProcessorID()
	}
	return &Dispatcher{svc: svc, interval: interval, opts: opts, logger: logger}
}

// Run ticks every interval and processes one batch per tick.
// Stops cleanly when ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info("dispatcher started",
		zap.String("processor_id", d.opts.ProcessorID),
		zap.Duration("interval", d.interval),
	)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping", zap.String("processor_id", d.opts.ProcessorID))
			return
		case <-ticker.C:
			d.poll(ctx)
		}
	}
}

func (d *Dispatcher) poll(ctx context.Context) {
	result, err := d.svc.ProcessNextBatch(ctx, d.opts)
	if err != nil {
		d.logger.Error("batch processing error", zap.Error(err))
		return
	}
	if result.Claimed > 0 {
		d.logger.Info("batch processed",
			zap.Int("claimed", result.Claimed),
			zap.Int("completed", result.Processed),
		)
	}
}
