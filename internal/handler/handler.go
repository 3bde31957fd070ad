// Package handler holds the per-type message handlers. Each handler is a
// pure translation step: decode the payload for its type, create one or more
// notification rows, report success or failure. Handlers never enqueue new
// messages, keeping the dependency graph acyclic.
package handler

import (
	"context"

	"go.uber.org/zap"

	"github.com/markethub/notify-queue/internal/domain"
	"github.com/markethub/notify-queue/internal/store"
)

// Notifier is the single side effect handlers are allowed: creating a
// notification row. store.NotificationStore satisfies it.
type Notifier interface {
	CreateNotification(ctx context.Context, n *domain.Notification) error
}

// Handler processes one claimed message. A returned error sends the message
// back through the queue's retry loop.
type Handler interface {
	Type() domain.MessageType
	Handle(ctx context.Context, m *domain.Message) error
}

// Registry maps message types to their handlers.
type Registry struct {
	handlers map[domain.MessageType]Handler
}

func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: make(map[domain.MessageType]Handler, len(handlers))}
	for _, h := range handlers {
		r.handlers[h.Type()] = h
	}
	return r
}

func (r *Registry) Lookup(t domain.MessageType) (Handler, bool) {
	h, ok := r.handlers[t]
	return h, ok
}

// DefaultRegistry wires all four handlers against the given notifier.
func DefaultRegistry(notifier Notifier, logger *zap.Logger) *Registry {
	create := NewNotificationCreateHandler(notifier, logger)
	return NewRegistry(
		create,
		NewDeliveryAssignHandler(create, logger),
		NewOrderStatusHandler(create, logger),
		NewPaymentStatusHandler(create, logger),
	)
}

var _ Notifier = (store.NotificationStore)(nil)
