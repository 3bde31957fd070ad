package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/markethub/notify-queue/internal/api/handler"
	apimw "github.com/markethub/notify-queue/internal/api/middleware"
	"github.com/markethub/notify-queue/internal/queue"
	"github.com/markethub/notify-queue/internal/store"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(
	svc *queue.Service,
	notifications store.NotificationStore,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)            // recover panics, return 500
	r.Use(chimw.RealIP)               // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1 << 20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)        // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	qh := handler.NewQueueHandler(svc, logger)
	nh := handler.NewNotificationHandler(notifications, logger)
	hh := handler.NewHealthHandler()

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		// Queue operator surface
		r.Get("/queue/stats", qh.Stats)
		r.Get("/messages/{id}", qh.GetMessage)
		r.Post("/messages/{id}/retry", qh.RetryMessage)

		// Produced side, read by dashboards
		r.Get("/notifications", nh.List)
		r.Post("/notifications/{id}/read", nh.MarkRead)
	})

	return r
}
