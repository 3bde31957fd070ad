// Package queue implements the durable message queue: enqueue with
// deduplication, lease-based batch claiming, per-message handler dispatch,
// and retry bookkeeping. All state lives in the injected MessageStore; the
// service itself holds no queue state, so any number of processes can run
// it against the same database.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/markethub/notify-queue/internal/domain"
	"github.com/markethub/notify-queue/internal/handler"
	"github.com/markethub/notify-queue/internal/ratelimit"
	"github.com/markethub/notify-queue/internal/store"
)

// Hooks carries the metric callbacks injected by main. Nil fields are
// replaced with no-ops so the service stays metrics-agnostic.
type Hooks struct {
	OnEnqueued  func(t domain.MessageType)
	OnDuplicate func(t domain.MessageType)
	OnCompleted func(t domain.MessageType, latency time.Duration)
	OnRetried   func(t domain.MessageType)
	OnFailed    func(t domain.MessageType)
}

func (h *Hooks) fillDefaults() {
	if h.OnEnqueued == nil {
		h.OnEnqueued = func(domain.MessageType) {}
	}
	if h.OnDuplicate == nil {
		h.OnDuplicate = func(domain.MessageType) {}
	}
	if h.OnCompleted == nil {
		h.OnCompleted = func(domain.MessageType, time.Duration) {}
	}
	if h.OnRetried == nil {
		h.OnRetried = func(domain.MessageType) {}
	}
	if h.OnFailed == nil {
		h.OnFailed = func(domain.MessageType) {}
	}
}

// Service coordinates the message store, the handler registry, and the
// dispatch rate limiter.
type Service struct {
	store    store.MessageStore
	registry *handler.Registry
	limiter  *ratelimit.TypeLimiters
	logger   *zap.Logger
	hooks    Hooks
}

func NewService(
	st store.MessageStore,
	registry *handler.Registry,
	limiter *ratelimit.TypeLimiters,
	logger *zap.Logger,
	hooks Hooks,
) *Service {
	hooks.fillDefaults()
	if limiter == nil {
		limiter = ratelimit.New(0)
	}
	return &Service{store: st, registry: registry, limiter: limiter, logger: logger, hooks: hooks}
}

// EnqueueOptions tunes a single enqueue. Zero values mean: no deduplication,
// normal priority, domain.DefaultMaxRetries, producer "system".
type EnqueueOptions struct {
	DeduplicationID string
	Priority        domain.Priority
	MaxRetries      int
	Producer        string
}

// EnqueueResult reports the id of the durable message. Duplicate is true
// when the deduplication key was already registered; the id then refers to
// the original message and no new row was written. Duplicates are a
// successful, idempotent no-op, never an error.
type EnqueueResult struct {
	MessageID string
	Duplicate bool
}

// Enqueue persists a message in status pending. The payload is marshalled
// as-is; shape correctness is the producer's responsibility.
func (s *Service) Enqueue(ctx context.Context, t domain.MessageType, payload any, opts EnqueueOptions) (EnqueueResult, error) {
	if !t.IsValid() {
		return EnqueueResult{}, fmt.Errorf("%w: %q", domain.ErrUnknownMessageType, t)
	}
	if opts.Priority == "" {
		opts.Priority = domain.PriorityNormal
	}
	if !opts.Priority.IsValid() {
		return EnqueueResult{}, domain.ErrInvalidPriority
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = domain.DefaultMaxRetries
	}
	if opts.Producer == "" {
		opts.Producer = "system"
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return EnqueueResult{}, fmt.Errorf("marshal payload: %w", err)
	}

	// Cheap pre-check; the unique constraint inside CreateMessage closes the
	// race two concurrent enqueuers can still hit between here and the insert.
	if opts.DeduplicationID != "" {
		existing, found, err := s.store.FindByDeduplicationID(ctx, opts.DeduplicationID)
		if err != nil {
			return EnqueueResult{}, fmt.Errorf("dedup lookup: %w", err)
		}
		if found {
			s.hooks.OnDuplicate(t)
			s.logger.Info("duplicate message suppressed",
				zap.String("type", string(t)),
				zap.String("deduplication_id", opts.DeduplicationID),
				zap.String("original_message_id", existing),
			)
			return EnqueueResult{MessageID: existing, Duplicate: true}, nil
		}
	}

	m := &domain.Message{
		ID:         uuid.New().String(),
		Type:       t,
		Payload:    raw,
		Priority:   opts.Priority,
		Producer:   opts.Producer,
		Status:     domain.StatusPending,
		MaxRetries: opts.MaxRetries,
		CreatedAt:  time.Now().UTC(),
	}
	if opts.DeduplicationID != "" {
		key := opts.DeduplicationID
		m.DeduplicationID = &key
	}

	id, created, err := s.store.CreateMessage(ctx, m)
	if err != nil {
		return EnqueueResult{}, fmt.Errorf("persist message: %w", err)
	}
	if !created {
		s.hooks.OnDuplicate(t)
		return EnqueueResult{MessageID: id, Duplicate: true}, nil
	}

	s.hooks.OnEnqueued(t)
	s.logger.Debug("message enqueued",
		zap.String("message_id", id),
		zap.String("type", string(t)),
		zap.String("priority", string(opts.Priority)),
		zap.String("producer", opts.Producer),
	)
	return EnqueueResult{MessageID: id}, nil
}

// BatchOptions tunes one ProcessNextBatch invocation.
type BatchOptions struct {
	BatchSize    int
	LockDuration time.Duration
	ProcessorID  string
	// Types, when non-empty, restricts the claim so dedicated workers can
	// own a message class.
	Types []domain.MessageType
}

// BatchResult reports how many messages were claimed and how many of those
// reached completed. Retried and permanently failed messages count toward
// Claimed but not Processed.
type BatchResult struct {
	Claimed   int
	Processed int
}

// ProcessNextBatch claims up to BatchSize eligible messages and dispatches
// them sequentially. Eligible means pending with no lease or an expired one,
// oldest first. The claim is atomic at the store; two concurrent callers
// never receive the same message while its lease holds.
//
// A lease expiring mid-handler does not stop the handler, it only reopens
// the message to other workers. Handlers must be idempotent or fast relative
// to LockDuration.
func (s *Service) ProcessNextBatch(ctx context.Context, opts BatchOptions) (BatchResult, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.LockDuration <= 0 {
		opts.LockDuration = 60 * time.Second
	}
	if opts.ProcessorID == "" {
		opts.ProcessorID = NewProcessorID()
	}

	claimed, err := s.store.ClaimBatch(ctx, store.ClaimOptions{
		BatchSize:    opts.BatchSize,
		LockDuration: opts.LockDuration,
		ProcessorID:  opts.ProcessorID,
		Types:        opts.Types,
	})
	if err != nil {
		return BatchResult{}, fmt.Errorf("claim batch: %w", err)
	}

	result := BatchResult{Claimed: len(claimed)}
	for _, m := range claimed {
		if err := s.processMessage(ctx, m); err == nil {
			result.Processed++
		}
	}
	return result, nil
}

// processMessage runs one claimed message through its handler and records
// the outcome. Whatever happens — success, handler error, panic — the lease
// is cleared by the terminal store call.
func (s *Service) processMessage(ctx context.Context, m *domain.Message) error {
	log := s.logger.With(
		zap.String("message_id", m.ID),
		zap.String("type", string(m.Type)),
	)

	if err := s.store.MarkProcessing(ctx, m.ID); err != nil {
		log.Error("failed to mark message as processing", zap.Error(err))
		return err
	}

	start := time.Now()
	err := s.dispatch(ctx, m)
	if err == nil {
		if markErr := s.store.MarkCompleted(ctx, m.ID); markErr != nil {
			log.Error("failed to mark message as completed", zap.Error(markErr))
			return markErr
		}
		s.hooks.OnCompleted(m.Type, time.Since(start))
		log.Debug("message completed", zap.Duration("latency", time.Since(start)))
		return nil
	}

	retryCount := m.RetryCount + 1
	if retryCount <= m.MaxRetries {
		if relErr := s.store.ReleaseForRetry(ctx, m.ID, retryCount, err.Error()); relErr != nil {
			log.Error("failed to release message for retry", zap.Error(relErr))
			return relErr
		}
		s.hooks.OnRetried(m.Type)
		log.Warn("handler failed, message re-queued",
			zap.Int("retry_count", retryCount),
			zap.Int("max_retries", m.MaxRetries),
			zap.Error(err),
		)
		return err
	}

	if failErr := s.store.MarkFailed(ctx, m.ID, retryCount, err.Error()); failErr != nil {
		log.Error("failed to mark message as failed", zap.Error(failErr))
		return failErr
	}
	s.hooks.OnFailed(m.Type)
	log.Error("retries exhausted, message failed permanently",
		zap.Int("retry_count", retryCount),
		zap.Error(err),
	)
	return err
}

// dispatch resolves the handler and invokes it. Panics are converted to
// ordinary handler failures so a misbehaving handler can never leave a
// message stuck in processing with a live lease.
func (s *Service) dispatch(ctx context.Context, m *domain.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	h, ok := s.registry.Lookup(m.Type)
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownMessageType, m.Type)
	}
	if err := s.limiter.Wait(ctx, m.Type); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return h.Handle(ctx, m)
}

// CleanupProcessedMessages purges deduplication records older than the
// retention window and returns the number removed. Message rows are never
// touched; a missed sweep only grows the dedup table.
func (s *Service) CleanupProcessedMessages(ctx context.Context, retention time.Duration) (int, error) {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	deleted, err := s.store.DeleteDedupBefore(ctx, time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("cleanup dedup records: %w", err)
	}
	if deleted > 0 {
		s.logger.Info("purged old deduplication records", zap.Int("deleted", deleted))
	}
	return deleted, nil
}

// GetMessage exposes a single message for the ops API.
func (s *Service) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	return s.store.GetMessage(ctx, id)
}

// RetryFailed resets a terminally failed message back to pending so the next
// batch poll picks it up again. Operator surface only.
func (s *Service) RetryFailed(ctx context.Context, id string) error {
	if err := s.store.RequeueFailed(ctx, id); err != nil {
		return err
	}
	s.logger.Info("failed message re-queued by operator", zap.String("message_id", id))
	return nil
}

// Stats exposes queue depth counters for the ops API.
func (s *Service) Stats(ctx context.Context) (store.QueueStats, error) {
	return s.store.Stats(ctx)
}

// NewProcessorID builds a worker identity from the hostname and a short
// random suffix, unique enough to attribute leases in the lock columns.
func NewProcessorID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}
	return host + "-" + uuid.New().String()[:8]
}
