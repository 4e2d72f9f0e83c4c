package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records gateway webhook processing outcomes.
type WebhookMetrics struct {
	received  *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	duplicate prometheus.Counter
	mismatch  prometheus.Counter
	duration  *prometheus.HistogramVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	received := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_received",
		Help: "Webhook events accepted for processing, by event type.",
	}, []string{"event"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_rejected",
		Help: "Webhook deliveries rejected before processing, by reason.",
	}, []string{"reason"})
	duplicate := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_events_duplicate",
		Help: "Webhook deliveries skipped as already processed.",
	})
	mismatch := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "webhook_amount_mismatch",
		Help: "Captured payments whose amount disagreed with the order total.",
	})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_processing_seconds",
		Help:    "Time spent reconciling one webhook event.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event"})
	reg.MustRegister(received, rejected, duplicate, mismatch, duration)
	return &WebhookMetrics{
		received:  received,
		rejected:  rejected,
		duplicate: duplicate,
		mismatch:  mismatch,
		duration:  duration,
	}
}

// IncReceived counts one accepted event of the given type.
func (w *WebhookMetrics) IncReceived(event string) {
	if w == nil || w.received == nil {
		return
	}
	w.received.WithLabelValues(normalizeLabel(event)).Inc()
}

// IncRejected counts one delivery rejected for the given reason.
func (w *WebhookMetrics) IncRejected(reason string) {
	if w == nil || w.rejected == nil {
		return
	}
	w.rejected.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncDuplicate counts one redelivery that was skipped.
func (w *WebhookMetrics) IncDuplicate() {
	if w == nil || w.duplicate == nil {
		return
	}
	w.duplicate.Inc()
}

// IncAmountMismatch counts one flagged payment.
func (w *WebhookMetrics) IncAmountMismatch() {
	if w == nil || w.mismatch == nil {
		return
	}
	w.mismatch.Inc()
}

// ObserveDuration records processing time for the given event type.
func (w *WebhookMetrics) ObserveDuration(event string, duration time.Duration) {
	if w == nil || w.duration == nil {
		return
	}
	w.duration.WithLabelValues(normalizeLabel(event)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
