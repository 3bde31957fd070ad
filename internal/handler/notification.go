package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/markethub/notify-queue/internal/domain"
)

// NotificationCreateHandler is the leaf primitive: it turns a fully formed
// notification descriptor into exactly one notification row. The fan-out
// handlers reuse its create method so every notification in the system goes
// through one code path.
type NotificationCreateHandler struct {
	notifier Notifier
	logger   *zap.Logger
}

func NewNotificationCreateHandler(notifier Notifier, logger *zap.Logger) *NotificationCreateHandler {
	return &NotificationCreateHandler{notifier: notifier, logger: logger}
}

func (h *NotificationCreateHandler) Type() domain.MessageType {
	return domain.TypeNotificationCreate
}

func (h *NotificationCreateHandler) Handle(ctx context.Context, m *domain.Message) error {
	var p domain.NotificationPayload
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return fmt.Errorf("decode notification payload: %w", err)
	}
	if err := p.Validate(); err != nil {
		return err
	}
	return h.create(ctx, p)
}

// create persists one notification row. Every attempt is logged individually
// so partial fan-out failures in the callers remain visible.
func (h *NotificationCreateHandler) create(ctx context.Context, p domain.NotificationPayload) error {
	n := &domain.Notification{
		ID:                uuid.New().String(),
		UserID:            p.UserID,
		Title:             p.Title,
		Message:           p.Message,
		Type:              p.Type,
		RelatedEntityType: p.RelatedEntityType,
		RelatedEntityID:   p.RelatedEntityID,
		ActionURL:         p.ActionURL,
		Data:              p.Data,
		IsRead:            false,
		CreatedAt:         time.Now().UTC(),
	}

	if err := h.notifier.CreateNotification(ctx, n); err != nil {
		h.logger.Warn("notification create failed",
			zap.String("user_id", p.UserID),
			zap.String("title", p.Title),
			zap.Error(err),
		)
		return fmt.Errorf("create notification for user %s: %w", p.UserID, err)
	}

	h.logger.Debug("notification created",
		zap.String("notification_id", n.ID),
		zap.String("user_id", n.UserID),
		zap.String("type", string(n.Type)),
	)
	return nil
}
