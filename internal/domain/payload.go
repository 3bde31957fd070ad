package domain

import "fmt"

// Payload shapes form a tagged union keyed by MessageType. The producer
// validates shape correctness before enqueue; the queue itself treats the
// payload as opaque JSON and handlers decode it back on dispatch.

// NotificationPayload is the payload for notification:create — a fully
// formed notification descriptor. This is the leaf primitive every other
// handler builds on.
type NotificationPayload struct {
	UserID            string           `json:"user_id"`
	Title             string           `json:"title"`
	Message           string           `json:"message"`
	Type              NotificationType `json:"type"`
	RelatedEntityType string           `json:"related_entity_type,omitempty"`
	RelatedEntityID   string           `json:"related_entity_id,omitempty"`
	ActionURL         string           `json:"action_url,omitempty"`
	Data              map[string]any   `json:"data,omitempty"`
}

func (p *NotificationPayload) Validate() error {
	if p.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidPayload)
	}
	if p.Title == "" || p.Message == "" {
		return fmt.Errorf("%w: title and message are required", ErrInvalidPayload)
	}
	if !p.Type.IsValid() {
		return fmt.Errorf("%w: notification type %q", ErrInvalidPayload, p.Type)
	}
	return nil
}

// DeliveryAssignmentPayload carries the order identifiers and denormalized
// party details needed to notify all three sides of a delivery assignment.
type DeliveryAssignmentPayload struct {
	OrderID           string `json:"order_id"`
	OrderNumber       string `json:"order_number"`
	DeliveryPartnerID string `json:"delivery_partner_id"`
	RetailerID        string `json:"retailer_id"`
	RetailerName      string `json:"retailer_name"`
	RetailerAddress   string `json:"retailer_address"`
	WholesalerID      string `json:"wholesaler_id"`
	WholesalerName    string `json:"wholesaler_name"`
	WholesalerAddress string `json:"wholesaler_address"`
}

func (p *DeliveryAssignmentPayload) Validate() error {
	if p.OrderID == "" || p.OrderNumber == "" {
		return fmt.Errorf("%w: order_id and order_number are required", ErrInvalidPayload)
	}
	if p.DeliveryPartnerID == "" || p.RetailerID == "" || p.WholesalerID == "" {
		return fmt.Errorf("%w: delivery_partner_id, retailer_id, and wholesaler_id are required", ErrInvalidPayload)
	}
	return nil
}

// OrderStatusPayload carries an order status transition. DeliveryPartnerID
// is optional: orders without an assigned partner fan out to two
// participants instead of three.
type OrderStatusPayload struct {
	OrderID           string `json:"order_id"`
	OrderNumber       string `json:"order_number"`
	Status            string `json:"status"`
	RetailerID        string `json:"retailer_id"`
	WholesalerID      string `json:"wholesaler_id"`
	DeliveryPartnerID string `json:"delivery_partner_id,omitempty"`
}

func (p *OrderStatusPayload) Validate() error {
	if p.OrderID == "" || p.OrderNumber == "" || p.Status == "" {
		return fmt.Errorf("%w: order_id, order_number, and status are required", ErrInvalidPayload)
	}
	if p.RetailerID == "" || p.WholesalerID == "" {
		return fmt.Errorf("%w: retailer_id and wholesaler_id are required", ErrInvalidPayload)
	}
	return nil
}

// PaymentStatusPayload carries a payment outcome for a single user.
type PaymentStatusPayload struct {
	PaymentID   string  `json:"payment_id"`
	OrderNumber string  `json:"order_number"`
	Status      string  `json:"status"`
	Amount      float64 `json:"amount"`
	UserID      string  `json:"user_id"`
}

func (p *PaymentStatusPayload) Validate() error {
	if p.PaymentID == "" || p.OrderNumber == "" || p.Status == "" {
		return fmt.Errorf("%w: payment_id, order_number, and status are required", ErrInvalidPayload)
	}
	if p.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidPayload)
	}
	if p.Amount < 0 {
		return fmt.Errorf("%w: amount must not be negative", ErrInvalidPayload)
	}
	return nil
}
