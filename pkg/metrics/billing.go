package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BillingMetrics records webhook processing and commit generation outcomes.
type BillingMetrics struct {
	webhookEvents      *prometheus.CounterVec
	webhookDuplicates  prometheus.Counter
	transitions        *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	generationFailures *prometheus.CounterVec
}

// NewBillingMetrics registers the billing metrics on the provided registerer.
func NewBillingMetrics(reg prometheus.Registerer) *BillingMetrics {
	if reg == nil {
		return &BillingMetrics{}
	}
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stripe_webhook_events_total",
		Help: "Processed Stripe webhook events by type and outcome.",
	}, []string{"event_type", "outcome"})
	webhookDuplicates := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stripe_webhook_duplicates_total",
		Help: "Stripe webhook deliveries skipped by the idempotency guard.",
	})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "subscription_transitions_total",
		Help: "Subscription lifecycle transitions by source and target status.",
	}, []string{"from", "to"})
	generationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "commit_generation_duration_seconds",
		Help:    "Duration of commit message generation in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"style"})
	generationFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "commit_generation_failures_total",
		Help: "Failed commit message generations by style.",
	}, []string{"style"})
	reg.MustRegister(webhookEvents, webhookDuplicates, transitions, generationDuration, generationFailures)
	return &BillingMetrics{
		webhookEvents:      webhookEvents,
		webhookDuplicates:  webhookDuplicates,
		transitions:        transitions,
		generationDuration: generationDuration,
		generationFailures: generationFailures,
	}
}

// IncWebhookEvent counts one processed webhook delivery.
func (b *BillingMetrics) IncWebhookEvent(eventType, outcome string) {
	if b == nil || b.webhookEvents == nil {
		return
	}
	b.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// IncWebhookDuplicate counts one delivery short-circuited by the idempotency guard.
func (b *BillingMetrics) IncWebhookDuplicate() {
	if b == nil || b.webhookDuplicates == nil {
		return
	}
	b.webhookDuplicates.Inc()
}

// IncTransition counts one subscription status change.
func (b *BillingMetrics) IncTransition(from, to string) {
	if b == nil || b.transitions == nil {
		return
	}
	b.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// ObserveGeneration records how long one commit generation took.
func (b *BillingMetrics) ObserveGeneration(style string, duration time.Duration) {
	if b == nil || b.generationDuration == nil {
		return
	}
	b.generationDuration.WithLabelValues(normalizeLabel(style)).Observe(duration.Seconds())
}

// IncGenerationFailure counts one failed generation attempt.
func (b *BillingMetrics) IncGenerationFailure(style string) {
	if b == nil || b.generationFailures == nil {
		return
	}
	b.generationFailures.WithLabelValues(normalizeLabel(style)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
