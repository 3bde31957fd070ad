package ratelimit

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/markethub/notify-queue/internal/domain"
)

// TypeLimiters holds one token bucket per message type. Dispatch waits on
// the matching limiter before invoking a handler, so a backlog flush cannot
// saturate the notifications table. Burst equals the rate so no capacity is
// saved up beyond the configured per-second maximum.
type TypeLimiters struct {
	limiters map[domain.MessageType]*rate.Limiter
}

// New creates a TypeLimiters with ratePerSec tokens per second per type.
// A non-positive rate disables limiting.
func New(ratePerSec int) *TypeLimiters {
	if ratePerSec <= 0 {
		return &TypeLimiters{}
	}
	limiters := make(map[domain.MessageType]*rate.Limiter)
	for _, t := range domain.AllMessageTypes() {
		limiters[t] = rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec)
	}
	return &TypeLimiters{limiters: limiters}
}

// Wait blocks until the type's limiter grants a token.
// Returns a non-nil error only if ctx is cancelled while waiting.
func (tl *TypeLimiters) Wait(ctx context.Context, t domain.MessageType) error {
	if tl.limiters == nil {
		return nil
	}
	l, ok := tl.limiters[t]
	if !ok {
		return nil
	}
	return l.Wait(ctx)
}
