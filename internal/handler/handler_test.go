package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/markethub/notify-queue/internal/domain"
	"github.com/markethub/notify-queue/internal/handler"
	"github.com/markethub/notify-queue/internal/store"
)

func message(t *testing.T, mt domain.MessageType, payload any) *domain.Message {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &domain.Message{ID: "m1", Type: mt, Payload: raw, MaxRetries: domain.DefaultMaxRetries}
}

func dispatch(t *testing.T, st *store.MockStore, mt domain.MessageType, payload any) error {
	t.Helper()
	registry := handler.DefaultRegistry(st, zap.NewNop())
	h, ok := registry.Lookup(mt)
	if !ok {
		t.Fatalf("no handler registered for %s", mt)
	}
	return h.Handle(context.Background(), message(t, mt, payload))
}

var deliveryPayload = domain.DeliveryAssignmentPayload{
	OrderID:           "ord-1",
	OrderNumber:       "ORD-2024-042",
	DeliveryPartnerID: "dp-1",
	RetailerID:        "ret-1",
	RetailerName:      "Corner Mart",
	RetailerAddress:   "12 High Street",
	WholesalerID:      "wh-1",
	WholesalerName:    "Acme Wholesale",
	WholesalerAddress: "7 Depot Road",
}

func TestNotificationCreate(t *testing.T) {
	st := store.NewMockStore()

	err := dispatch(t, st, domain.TypeNotificationCreate, domain.NotificationPayload{
		UserID:            "u1",
		Title:             "Welcome",
		Message:           "Your account is ready.",
		Type:              domain.NotificationSuccess,
		RelatedEntityType: "account",
		RelatedEntityID:   "acc-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	notifications := st.Notifications()
	if len(notifications) != 1 {
		t.Fatalf("expected exactly 1 notification, got %d", len(notifications))
	}
	n := notifications[0]
	if n.UserID != "u1" || n.Type != domain.NotificationSuccess {
		t.Fatalf("unexpected notification: %+v", n)
	}
	if n.IsRead {
		t.Fatal("expected is_read=false on creation")
	}
	if n.ID == "" || n.CreatedAt.IsZero() {
		t.Fatal("expected id and created_at to be assigned")
	}
}

func TestNotificationCreate_InvalidPayload(t *testing.T) {
	st := store.NewMockStore()

	err := dispatch(t, st, domain.TypeNotificationCreate, domain.NotificationPayload{
		Title: "no user", Message: "x", Type: domain.NotificationInfo,
	})
	if !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
	if st.NotificationCount() != 0 {
		t.Fatal("expected no notification rows")
	}
}

// TestDeliveryAssign_FanOut verifies the three-way fan-out: delivery partner
// with pickup/dropoff detail, retailer, and wholesaler.
func TestDeliveryAssign_FanOut(t *testing.T) {
	st := store.NewMockStore()

	if err := dispatch(t, st, domain.TypeDeliveryAssign, deliveryPayload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	notifications := st.Notifications()
	if len(notifications) != 3 {
		t.Fatalf("expected exactly 3 notifications, got %d", len(notifications))
	}

	byUser := make(map[string]*domain.Notification)
	for _, n := range notifications {
		byUser[n.UserID] = n
	}
	for _, userID := range []string{"dp-1", "ret-1", "wh-1"} {
		if _, ok := byUser[userID]; !ok {
			t.Fatalf("missing notification for %s", userID)
		}
	}

	partner := byUser["dp-1"]
	if partner.Data == nil {
		t.Fatal("expected address detail attached to the delivery partner notification")
	}
	if partner.Data["pickup_address"] != "7 Depot Road" || partner.Data["dropoff_address"] != "12 High Street" {
		t.Fatalf("unexpected address data: %+v", partner.Data)
	}
	if !strings.Contains(partner.Message, "ORD-2024-042") {
		t.Fatalf("expected order number in partner message, got %q", partner.Message)
	}
}

// TestDeliveryAssign_PartnerFailureFailsHandler: the aggregate verdict
// follows the delivery-partner creation; the other two are still attempted.
func TestDeliveryAssign_PartnerFailureFailsHandler(t *testing.T) {
	st := store.NewMockStore()
	st.NotifyHook = func(n *domain.Notification) error {
		if n.UserID == "dp-1" {
			return errors.New("insert failed")
		}
		return nil
	}

	err := dispatch(t, st, domain.TypeDeliveryAssign, deliveryPayload)
	if err == nil {
		t.Fatal("expected handler failure when the partner notification fails")
	}
	if st.NotificationCount() != 2 {
		t.Fatalf("expected retailer and wholesaler notifications created, got %d", st.NotificationCount())
	}
}

// TestDeliveryAssign_SecondaryFailureIsLoggedOnly: retailer or wholesaler
// failures do not fail the handler.
func TestDeliveryAssign_SecondaryFailureIsLoggedOnly(t *testing.T) {
	st := store.NewMockStore()
	st.NotifyHook = func(n *domain.Notification) error {
		if n.UserID == "ret-1" {
			return errors.New("insert failed")
		}
		return nil
	}

	if err := dispatch(t, st, domain.TypeDeliveryAssign, deliveryPayload); err != nil {
		t.Fatalf("expected success despite retailer failure, got %v", err)
	}
	if st.NotificationCount() != 2 {
		t.Fatalf("expected 2 notifications, got %d", st.NotificationCount())
	}
}

func TestOrderStatus_TypeMapping(t *testing.T) {
	tests := []struct {
		status string
		want   domain.NotificationType
	}{
		{"confirmed", domain.NotificationSuccess},
		{"delivered", domain.NotificationSuccess},
		{"placed", domain.NotificationInfo},
		{"dispatched", domain.NotificationInfo},
		{"rejected", domain.NotificationError},
		{"on_hold", domain.NotificationInfo},
		{"anything_else", domain.NotificationInfo},
	}

	for _, tc := range tests {
		t.Run(tc.status, func(t *testing.T) {
			if got := handler.NotificationTypeForOrderStatus(tc.status); got != tc.want {
				t.Fatalf("status %q: expected %s, got %s", tc.status, tc.want, got)
			}
		})
	}
}

func TestOrderStatus_TwoParticipants(t *testing.T) {
	st := store.NewMockStore()

	err := dispatch(t, st, domain.TypeOrderStatusUpdate, domain.OrderStatusPayload{
		OrderID: "ord-1", OrderNumber: "ORD-2024-042", Status: "rejected",
		RetailerID: "ret-1", WholesalerID: "wh-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	notifications := st.Notifications()
	if len(notifications) != 2 {
		t.Fatalf("expected exactly 2 notifications without a delivery partner, got %d", len(notifications))
	}
	for _, n := range notifications {
		if n.Type != domain.NotificationError {
			t.Fatalf("expected type=error for rejected orders, got %s", n.Type)
		}
	}
}

func TestOrderStatus_ThreeParticipants(t *testing.T) {
	st := store.NewMockStore()

	err := dispatch(t, st, domain.TypeOrderStatusUpdate, domain.OrderStatusPayload{
		OrderID: "ord-1", OrderNumber: "ORD-2024-042", Status: "dispatched",
		RetailerID: "ret-1", WholesalerID: "wh-1", DeliveryPartnerID: "dp-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.NotificationCount() != 3 {
		t.Fatalf("expected 3 notifications with a delivery partner, got %d", st.NotificationCount())
	}
}

func TestOrderStatus_HumanizedMessage(t *testing.T) {
	st := store.NewMockStore()

	err := dispatch(t, st, domain.TypeOrderStatusUpdate, domain.OrderStatusPayload{
		OrderID: "ord-1", OrderNumber: "ORD-2024-042", Status: "out_for_delivery",
		RetailerID: "ret-1", WholesalerID: "wh-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	n := st.Notifications()[0]
	if strings.Contains(n.Title, "_") || strings.Contains(n.Message, "_") {
		t.Fatalf("expected humanized status text, got title=%q message=%q", n.Title, n.Message)
	}
	if n.Title != "Order Out For Delivery" {
		t.Fatalf("unexpected title %q", n.Title)
	}
}

func TestHumanizeStatus(t *testing.T) {
	tests := map[string]string{
		"confirmed":        "Confirmed",
		"out_for_delivery": "Out For Delivery",
		"on_hold":          "On Hold",
	}
	for in, want := range tests {
		if got := handler.HumanizeStatus(in); got != want {
			t.Fatalf("HumanizeStatus(%q): expected %q, got %q", in, want, got)
		}
	}
}

// TestPaymentStatus_PaidScenario pins the exact notification produced for a
// successful payment.
func TestPaymentStatus_PaidScenario(t *testing.T) {
	st := store.NewMockStore()

	err := dispatch(t, st, domain.TypePaymentStatusUpdate, domain.PaymentStatusPayload{
		PaymentID: "pay-1", OrderNumber: "ORD-2024-001", Status: "paid",
		Amount: 1150, UserID: "u1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	notifications := st.Notifications()
	if len(notifications) != 1 {
		t.Fatalf("expected exactly 1 notification, got %d", len(notifications))
	}
	n := notifications[0]
	if n.UserID != "u1" {
		t.Fatalf("expected recipient u1, got %s", n.UserID)
	}
	if n.Type != domain.NotificationSuccess {
		t.Fatalf("expected type=success, got %s", n.Type)
	}
	if n.Title != "Payment Successful" {
		t.Fatalf("expected title 'Payment Successful', got %q", n.Title)
	}
	if !strings.Contains(n.Message, "1150.00") || !strings.Contains(n.Message, "ORD-2024-001") {
		t.Fatalf("expected amount and order number in message, got %q", n.Message)
	}
}

func TestPaymentStatus_Table(t *testing.T) {
	tests := []struct {
		status    string
		wantTitle string
		wantType  domain.NotificationType
	}{
		{"paid", "Payment Successful", domain.NotificationSuccess},
		{"success", "Payment Successful", domain.NotificationSuccess},
		{"failed", "Payment Failed", domain.NotificationError},
		{"pending", "Payment Pending", domain.NotificationInfo},
		{"refund_initiated", "Payment Update", domain.NotificationInfo},
	}

	for _, tc := range tests {
		t.Run(tc.status, func(t *testing.T) {
			st := store.NewMockStore()
			err := dispatch(t, st, domain.TypePaymentStatusUpdate, domain.PaymentStatusPayload{
				PaymentID: "pay-1", OrderNumber: "ORD-9", Status: tc.status,
				Amount: 25.5, UserID: "u1",
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			n := st.Notifications()[0]
			if n.Title != tc.wantTitle || n.Type != tc.wantType {
				t.Fatalf("status %q: expected (%s, %s), got (%s, %s)",
					tc.status, tc.wantTitle, tc.wantType, n.Title, n.Type)
			}
			if tc.wantTitle == "Payment Update" && !strings.Contains(n.Message, tc.status) {
				t.Fatalf("expected raw status echoed in fallback message, got %q", n.Message)
			}
		})
	}
}

func TestHandler_MalformedPayload(t *testing.T) {
	st := store.NewMockStore()
	registry := handler.DefaultRegistry(st, zap.NewNop())
	h, _ := registry.Lookup(domain.TypePaymentStatusUpdate)

	m := &domain.Message{ID: "m1", Type: domain.TypePaymentStatusUpdate, Payload: []byte(`{"amount": "not-a-number"}`)}
	if err := h.Handle(context.Background(), m); err == nil {
		t.Fatal("expected a decode error for a malformed payload")
	}
	if st.NotificationCount() != 0 {
		t.Fatal("expected no notification rows")
	}
}
