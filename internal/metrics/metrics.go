package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/markethub/notify-queue/internal/domain"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	MessagesEnqueued     *prometheus.CounterVec
	DuplicatesSuppressed *prometheus.CounterVec
	MessagesCompleted    *prometheus.CounterVec
	MessagesRetried      *prometheus.CounterVec
	MessagesFailed       *prometheus.CounterVec
	ProcessingLatency    *prometheus.HistogramVec
	PendingDepth         prometheus.Gauge
}

// New registers all instruments with the given Prometheus registerer.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "queue_messages_enqueued_total",
			Help: "Total number of messages durably enqueued.",
		}, []string{"type"}),

		DuplicatesSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "queue_duplicates_suppressed_total",
			Help: "Total number of enqueue calls collapsed onto an existing message by deduplication.",
		}, []string{"type"}),

		MessagesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "queue_messages_completed_total",
			Help: "Total number of messages whose handler succeeded.",
		}, []string{"type"}),

		MessagesRetried: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "queue_messages_retried_total",
			Help: "Total number of handler failures that re-queued the message.",
		}, []string{"type"}),

		MessagesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "queue_messages_failed_total",
			Help: "Total number of messages that exhausted retries and failed permanently.",
		}, []string{"type"}),

		ProcessingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "queue_message_processing_seconds",
			Help:    "Handler latency from dispatch to completion.",
			Buckets: prometheus.DefBuckets,
		}, []string{"type"}),

		PendingDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_pending_depth",
			Help: "Current number of pending messages, sampled on each stats poll.",
		}),
	}

	reg.MustRegister(
		m.MessagesEnqueued,
		m.DuplicatesSuppressed,
		m.MessagesCompleted,
		m.MessagesRetried,
		m.MessagesFailed,
		m.ProcessingLatency,
		m.PendingDepth,
	)

	return m
}

// QueueHooks returns the metric callback functions expected by queue.Hooks.
// Centralises the prometheus observation calls so the queue service stays
// metrics-agnostic.
func (m *Metrics) QueueHooks() (
	onEnqueued func(domain.MessageType),
	onDuplicate func(domain.MessageType),
	onCompleted func(domain.MessageType, time.Duration),
	onRetried func(domain.MessageType),
	onFailed func(domain.MessageType),
) {
	onEnqueued = func(t domain.MessageType) {
		m.MessagesEnqueued.WithLabelValues(string(t)).Inc()
	}
	onDuplicate = func(t domain.MessageType) {
		m.DuplicatesSuppressed.WithLabelValues(string(t)).Inc()
	}
	onCompleted = func(t domain.MessageType, latency time.Duration) {
		m.MessagesCompleted.WithLabelValues(string(t)).Inc()
		m.ProcessingLatency.WithLabelValues(string(t)).Observe(latency.Seconds())
	}
	onRetried = func(t domain.MessageType) {
		m.MessagesRetried.WithLabelValues(string(t)).Inc()
	}
	onFailed = func(t domain.MessageType) {
		m.MessagesFailed.WithLabelValues(string(t)).Inc()
	}
	return
}
