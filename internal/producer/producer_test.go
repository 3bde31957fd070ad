package producer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/markethub/notify-queue/internal/domain"
	"github.com/markethub/notify-queue/internal/handler"
	"github.com/markethub/notify-queue/internal/producer"
	"github.com/markethub/notify-queue/internal/queue"
	"github.com/markethub/notify-queue/internal/store"
)

func newProducer(t *testing.T) (*producer.Producer, *queue.Service, *store.MockStore) {
	t.Helper()
	st := store.NewMockStore()
	registry := handler.DefaultRegistry(st, zap.NewNop())
	svc := queue.NewService(st, registry, nil, zap.NewNop(), queue.Hooks{})
	p := producer.New(svc, "order-workflow", zap.NewNop())
	return p, svc, st
}

var assignment = domain.DeliveryAssignmentPayload{
	OrderID:           "ord-7",
	OrderNumber:       "ORD-2024-007",
	DeliveryPartnerID: "dp-3",
	RetailerID:        "ret-2",
	RetailerName:      "Corner Mart",
	RetailerAddress:   "12 High Street",
	WholesalerID:      "wh-2",
	WholesalerName:    "Acme Wholesale",
	WholesalerAddress: "7 Depot Road",
}

// TestDeliveryAssignment_Deduplicates covers the end-to-end idempotency
// scenario: a repeated assignment event neither enqueues a second message
// nor creates additional notifications, even after the first was processed.
func TestDeliveryAssignment_Deduplicates(t *testing.T) {
	p, svc, st := newProducer(t)
	ctx := context.Background()

	first, err := p.CreateDeliveryAssignmentNotification(ctx, assignment)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Duplicate {
		t.Fatal("expected duplicate=false on first call")
	}

	m, err := svc.GetMessage(ctx, first.MessageID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Priority != domain.PriorityHigh {
		t.Fatalf("expected delivery assignments enqueued at high priority, got %s", m.Priority)
	}
	if m.Producer != "order-workflow" {
		t.Fatalf("expected producer label recorded, got %s", m.Producer)
	}

	if _, err := svc.ProcessNextBatch(ctx, queue.BatchOptions{
		BatchSize: 10, LockDuration: time.Minute, ProcessorID: "worker-test",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.NotificationCount() != 3 {
		t.Fatalf("expected 3 notifications after processing, got %d", st.NotificationCount())
	}

	second, err := p.CreateDeliveryAssignmentNotification(ctx, assignment)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.Duplicate {
		t.Fatal("expected duplicate=true on repeated assignment")
	}
	if second.MessageID != first.MessageID {
		t.Fatalf("expected the original message id %s, got %s", first.MessageID, second.MessageID)
	}
	if st.MessageCount() != 1 {
		t.Fatalf("expected no new message rows, got %d", st.MessageCount())
	}
	if st.NotificationCount() != 3 {
		t.Fatalf("expected no new notification rows, got %d", st.NotificationCount())
	}
}

// TestOrderStatus_KeyStablePerStatus: re-announcing the same status is
// suppressed; a different status enqueues fresh.
func TestOrderStatus_KeyStablePerStatus(t *testing.T) {
	p, _, st := newProducer(t)
	ctx := context.Background()

	orderUpdate := domain.OrderStatusPayload{
		OrderID: "ord-7", OrderNumber: "ORD-2024-007", Status: "confirmed",
		RetailerID: "ret-2", WholesalerID: "wh-2",
	}

	first, err := p.CreateOrderStatusUpdateNotification(ctx, orderUpdate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	repeat, err := p.CreateOrderStatusUpdateNotification(ctx, orderUpdate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !repeat.Duplicate || repeat.MessageID != first.MessageID {
		t.Fatalf("expected suppressed duplicate, got %+v", repeat)
	}

	orderUpdate.Status = "dispatched"
	next, err := p.CreateOrderStatusUpdateNotification(ctx, orderUpdate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Duplicate {
		t.Fatal("expected a fresh message for a new status")
	}
	if st.MessageCount() != 2 {
		t.Fatalf("expected 2 message rows, got %d", st.MessageCount())
	}
}

func TestPaymentStatus_KeyStablePerStatus(t *testing.T) {
	p, _, st := newProducer(t)
	ctx := context.Background()

	paymentUpdate := domain.PaymentStatusPayload{
		PaymentID: "pay-5", OrderNumber: "ORD-2024-005", Status: "pending",
		Amount: 99.9, UserID: "u5",
	}

	first, err := p.CreatePaymentStatusUpdateNotification(ctx, paymentUpdate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	repeat, err := p.CreatePaymentStatusUpdateNotification(ctx, paymentUpdate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !repeat.Duplicate || repeat.MessageID != first.MessageID {
		t.Fatalf("expected suppressed duplicate, got %+v", repeat)
	}

	paymentUpdate.Status = "paid"
	if _, err := p.CreatePaymentStatusUpdateNotification(ctx, paymentUpdate); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.MessageCount() != 2 {
		t.Fatalf("expected 2 message rows, got %d", st.MessageCount())
	}
}

// TestCreateNotification_TimestampedKey documents the direct path's
// behavior: its dedup key embeds the enqueue time, so repeated calls always
// produce fresh messages.
func TestCreateNotification_TimestampedKey(t *testing.T) {
	p, _, st := newProducer(t)
	ctx := context.Background()

	notice := domain.NotificationPayload{
		UserID: "u1", Title: "Stock Low", Message: "Item #42 is almost out.",
		Type: domain.NotificationWarning, RelatedEntityType: "product", RelatedEntityID: "42",
	}

	first, err := p.CreateNotification(ctx, notice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := p.CreateNotification(ctx, notice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Duplicate || second.Duplicate {
		t.Fatal("expected both calls to enqueue fresh messages")
	}
	if first.MessageID == second.MessageID {
		t.Fatal("expected distinct message ids")
	}
	if st.MessageCount() != 2 {
		t.Fatalf("expected 2 message rows, got %d", st.MessageCount())
	}
}

func TestProducer_ValidatesBeforeEnqueue(t *testing.T) {
	p, _, st := newProducer(t)
	ctx := context.Background()

	_, err := p.CreateDeliveryAssignmentNotification(ctx, domain.DeliveryAssignmentPayload{
		OrderID: "ord-1", OrderNumber: "ORD-1",
		// missing delivery partner, retailer, wholesaler ids
	})
	if !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
	if st.MessageCount() != 0 {
		t.Fatal("expected nothing enqueued for an invalid payload")
	}

	_, err = p.CreatePaymentStatusUpdateNotification(ctx, domain.PaymentStatusPayload{
		PaymentID: "pay-1", OrderNumber: "ORD-1", Status: "paid", Amount: -5, UserID: "u1",
	})
	if !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload for negative amount, got %v", err)
	}
}
