// Package producer is the typed façade business workflows call to enqueue
// well-known events. Each method validates its payload, computes a
// deterministic deduplication key from business identifiers, and forwards to
// the queue service, so a retried business operation never double-enqueues.
package producer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/markethub/notify-queue/internal/domain"
	"github.com/markethub/notify-queue/internal/queue"
)

type Producer struct {
	q      *queue.Service
	label  string
	logger *zap.Logger
}

// New creates a Producer. label identifies the origin recorded on every
// message; empty defaults to "system".
func New(q *queue.Service, label string, logger *zap.Logger) *Producer {
	if label == "" {
		label = "system"
	}
	return &Producer{q: q, label: label, logger: logger}
}

// CreateNotification enqueues a direct notification:create message.
//
// The dedup key embeds the current timestamp, so every call produces a fresh
// message: this path does not collapse duplicate submissions. Kept as-is to
// match how callers use it (ad-hoc notices that should always be delivered).
func (p *Producer) CreateNotification(ctx context.Context, payload domain.NotificationPayload) (queue.EnqueueResult, error) {
	if err := payload.Validate(); err != nil {
		return queue.EnqueueResult{}, err
	}
	key := fmt.Sprintf("notification:%s:%s:%s:%d",
		payload.UserID, payload.RelatedEntityType, payload.RelatedEntityID,
		time.Now().UnixNano())

	return p.enqueue(ctx, domain.TypeNotificationCreate, payload, key, domain.PriorityNormal)
}

// CreateDeliveryAssignmentNotification enqueues a delivery:assign message at
// high priority. The key is stable per (order, partner), so repeated
// assignment events collapse into one message.
func (p *Producer) CreateDeliveryAssignmentNotification(ctx context.Context, payload domain.DeliveryAssignmentPayload) (queue.EnqueueResult, error) {
	if err := payload.Validate(); err != nil {
		return queue.EnqueueResult{}, err
	}
	key := fmt.Sprintf("delivery:assign:%s:%s", payload.OrderID, payload.DeliveryPartnerID)

	return p.enqueue(ctx, domain.TypeDeliveryAssign, payload, key, domain.PriorityHigh)
}

// CreateOrderStatusUpdateNotification enqueues an order:status_update
// message. The key is stable per (order, status): re-entering a previously
// seen status is suppressed as a duplicate.
func (p *Producer) CreateOrderStatusUpdateNotification(ctx context.Context, payload domain.OrderStatusPayload) (queue.EnqueueResult, error) {
	if err := payload.Validate(); err != nil {
		return queue.EnqueueResult{}, err
	}
	key := fmt.Sprintf("order:status:%s:%s", payload.OrderID, payload.Status)

	return p.enqueue(ctx, domain.TypeOrderStatusUpdate, payload, key, domain.PriorityNormal)
}

// CreatePaymentStatusUpdateNotification enqueues a payment:status_update
// message, keyed per (payment, status) like order updates.
func (p *Producer) CreatePaymentStatusUpdateNotification(ctx context.Context, payload domain.PaymentStatusPayload) (queue.EnqueueResult, error) {
	if err := payload.Validate(); err != nil {
		return queue.EnqueueResult{}, err
	}
	key := fmt.Sprintf("payment:status:%s:%s", payload.PaymentID, payload.Status)

	return p.enqueue(ctx, domain.TypePaymentStatusUpdate, payload, key, domain.PriorityNormal)
}

func (p *Producer) enqueue(ctx context.Context, t domain.MessageType, payload any, key string, priority domain.Priority) (queue.EnqueueResult, error) {
	result, err := p.q.Enqueue(ctx, t, payload, queue.EnqueueOptions{
		DeduplicationID: key,
		Priority:        priority,
		Producer:        p.label,
	})
	if err != nil {
		// Notification delivery is best-effort: the business operation that
		// triggered this call succeeds or fails on its own. Log and pass the
		// error up unchanged.
		p.logger.Warn("enqueue failed",
			zap.String("type", string(t)),
			zap.String("deduplication_id", key),
			zap.Error(err),
		)
		return queue.EnqueueResult{}, err
	}
	return result, nil
}
