package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/markethub/notify-queue/internal/domain"
)

// DeliveryAssignHandler fans a delivery assignment out to all three parties:
// the delivery partner (with full pickup and dropoff detail), the retailer,
// and the wholesaler.
//
// Fan-out is best-effort, not all-or-nothing: the three creates are attempted
// independently and each failure is logged, but only the delivery-partner
// notification decides the handler's verdict. A retry after a partial failure
// can therefore duplicate the retailer or wholesaler notice.
type DeliveryAssignHandler struct {
	create *NotificationCreateHandler
	logger *zap.Logger
}

func NewDeliveryAssignHandler(create *NotificationCreateHandler, logger *zap.Logger) *DeliveryAssignHandler {
	return &DeliveryAssignHandler{create: create, logger: logger}
}

func (h *DeliveryAssignHandler) Type() domain.MessageType {
	return domain.TypeDeliveryAssign
}

func (h *DeliveryAssignHandler) Handle(ctx context.Context, m *domain.Message) error {
	var p domain.DeliveryAssignmentPayload
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return fmt.Errorf("decode delivery assignment payload: %w", err)
	}
	if err := p.Validate(); err != nil {
		return err
	}

	partnerErr := h.create.create(ctx, domain.NotificationPayload{
		UserID:            p.DeliveryPartnerID,
		Title:             "New Delivery Assignment",
		Message:           fmt.Sprintf("You have been assigned to deliver order %s.", p.OrderNumber),
		Type:              domain.NotificationInfo,
		RelatedEntityType: "order",
		RelatedEntityID:   p.OrderID,
		Data: map[string]any{
			"order_number":    p.OrderNumber,
			"pickup_name":     p.WholesalerName,
			"pickup_address":  p.WholesalerAddress,
			"dropoff_name":    p.RetailerName,
			"dropoff_address": p.RetailerAddress,
		},
	})

	if err := h.create.create(ctx, domain.NotificationPayload{
		UserID:            p.RetailerID,
		Title:             "Delivery Partner Assigned",
		Message:           fmt.Sprintf("A delivery partner has been assigned to your order %s.", p.OrderNumber),
		Type:              domain.NotificationSuccess,
		RelatedEntityType: "order",
		RelatedEntityID:   p.OrderID,
	}); err != nil {
		h.logger.Warn("retailer notification failed during delivery assignment",
			zap.String("order_id", p.OrderID), zap.Error(err))
	}

	if err := h.create.create(ctx, domain.NotificationPayload{
		UserID:            p.WholesalerID,
		Title:             "Delivery Partner Assigned",
		Message:           fmt.Sprintf("A delivery partner has been assigned for order %s.", p.OrderNumber),
		Type:              domain.NotificationSuccess,
		RelatedEntityType: "order",
		RelatedEntityID:   p.OrderID,
	}); err != nil {
		h.logger.Warn("wholesaler notification failed during delivery assignment",
			zap.String("order_id", p.OrderID), zap.Error(err))
	}

	return partnerErr
}
