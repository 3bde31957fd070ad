package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/markethub/notify-queue/internal/domain"
)

// OrderStatusHandler notifies every active participant of an order about a
// status transition: retailer and wholesaler always, the delivery partner
// only when one is assigned.
type OrderStatusHandler struct {
	create *NotificationCreateHandler
	logger *zap.Logger
}

func NewOrderStatusHandler(create *NotificationCreateHandler, logger *zap.Logger) *OrderStatusHandler {
	return &OrderStatusHandler{create: create, logger: logger}
}

func (h *OrderStatusHandler) Type() domain.MessageType {
	return domain.TypeOrderStatusUpdate
}

func (h *OrderStatusHandler) Handle(ctx context.Context, m *domain.Message) error {
	var p domain.OrderStatusPayload
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return fmt.Errorf("decode order status payload: %w", err)
	}
	if err := p.Validate(); err != nil {
		return err
	}

	recipients := []string{p.RetailerID, p.WholesalerID}
	if p.DeliveryPartnerID != "" {
		recipients = append(recipients, p.DeliveryPartnerID)
	}

	notifType := NotificationTypeForOrderStatus(p.Status)
	title := fmt.Sprintf("Order %s", HumanizeStatus(p.Status))
	message := fmt.Sprintf("Order %s is now %s.", p.OrderNumber, strings.ToLower(HumanizeStatus(p.Status)))

	var firstErr error
	for _, userID := range recipients {
		err := h.create.create(ctx, domain.NotificationPayload{
			UserID:            userID,
			Title:             title,
			Message:           message,
			Type:              notifType,
			RelatedEntityType: "order",
			RelatedEntityID:   p.OrderID,
		})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NotificationTypeForOrderStatus maps an order status to the notification
// type shown on the dashboards. The raw status string drives routing; the
// humanized form is display-only.
func NotificationTypeForOrderStatus(status string) domain.NotificationType {
	switch status {
	case "confirmed", "delivered":
		return domain.NotificationSuccess
	case "placed", "dispatched":
		return domain.NotificationInfo
	case "rejected":
		return domain.NotificationError
	default:
		return domain.NotificationInfo
	}
}

// HumanizeStatus turns a raw status like "out_for_delivery" into
// "Out For Delivery".
func HumanizeStatus(status string) string {
	words := strings.Split(strings.ReplaceAll(status, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
