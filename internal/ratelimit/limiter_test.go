package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/markethub/notify-queue/internal/domain"
	"github.com/markethub/notify-queue/internal/ratelimit"
)

func TestWait_DisabledLimiter(t *testing.T) {
	tl := ratelimit.New(0)
	if err := tl.Wait(context.Background(), domain.TypeNotificationCreate); err != nil {
		t.Fatalf("expected no error from a disabled limiter, got %v", err)
	}
}

func TestWait_GrantsWithinRate(t *testing.T) {
	tl := ratelimit.New(100)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 10; i++ {
		if err := tl.Wait(ctx, domain.TypeOrderStatusUpdate); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	// Burst equals the rate, so 10 tokens should be granted immediately.
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected immediate grants within burst, took %s", elapsed)
	}
}

func TestWait_ContextCancelled(t *testing.T) {
	tl := ratelimit.New(1)
	ctx, cancel := context.WithCancel(context.Background())

	// Drain the single burst token, then cancel while waiting for the next.
	if err := tl.Wait(ctx, domain.TypePaymentStatusUpdate); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cancel()
	if err := tl.Wait(ctx, domain.TypePaymentStatusUpdate); err == nil {
		t.Fatal("expected an error after context cancellation")
	}
}
