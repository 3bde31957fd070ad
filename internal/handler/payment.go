package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/markethub/notify-queue/internal/domain"
)

// PaymentStatusHandler produces exactly one notification for the paying
// user, with title, message, and type selected by a fixed status table.
type PaymentStatusHandler struct {
	create *NotificationCreateHandler
	logger *zap.Logger
}

func NewPaymentStatusHandler(create *NotificationCreateHandler, logger *zap.Logger) *PaymentStatusHandler {
	return &PaymentStatusHandler{create: create, logger: logger}
}

func (h *PaymentStatusHandler) Type() domain.MessageType {
	return domain.TypePaymentStatusUpdate
}

func (h *PaymentStatusHandler) Handle(ctx context.Context, m *domain.Message) error {
	var p domain.PaymentStatusPayload
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return fmt.Errorf("decode payment status payload: %w", err)
	}
	if err := p.Validate(); err != nil {
		return err
	}

	title, message, notifType := paymentNotice(p)

	return h.create.create(ctx, domain.NotificationPayload{
		UserID:            p.UserID,
		Title:             title,
		Message:           message,
		Type:              notifType,
		RelatedEntityType: "payment",
		RelatedEntityID:   p.PaymentID,
	})
}

func paymentNotice(p domain.PaymentStatusPayload) (title, message string, t domain.NotificationType) {
	switch p.Status {
	case "paid", "success":
		return "Payment Successful",
			fmt.Sprintf("Your payment of %.2f for order %s was successful.", p.Amount, p.OrderNumber),
			domain.NotificationSuccess
	case "failed":
		return "Payment Failed",
			fmt.Sprintf("Your payment of %.2f for order %s failed. Please try again.", p.Amount, p.OrderNumber),
			domain.NotificationError
	case "pending":
		return "Payment Pending",
			fmt.Sprintf("Your payment of %.2f for order %s is pending.", p.Amount, p.OrderNumber),
			domain.NotificationInfo
	default:
		return "Payment Update",
			fmt.Sprintf("Payment status for order %s: %s.", p.OrderNumber, p.Status),
			domain.NotificationInfo
	}
}
