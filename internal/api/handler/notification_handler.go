package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/markethub/notify-queue/internal/store"
)

// NotificationHandler serves the produced side: dashboards list a user's
// notifications and mark them read.
type NotificationHandler struct {
	store  store.NotificationStore
	logger *zap.Logger
}

func NewNotificationHandler(st store.NotificationStore, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{store: st, logger: logger}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	notifications, err := h.store.ListNotificationsByUser(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("list notifications failed", zap.String("user_id", userID), zap.Error(err))
		mapError(w, err)
		return
	}

	unread, err := h.store.CountUnread(r.Context(), userID)
	if err != nil {
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"notifications": notifications,
		"unread":        unread,
	})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.store.MarkNotificationRead(r.Context(), id); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
