package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Relay outcome labels.
const (
	RelayPublished    = "published"
	RelayRetry        = "retry"
	RelayDeadLettered = "dead_lettered"
)

// OutboxMetrics instruments the outbox relay.
type OutboxMetrics struct {
	events  *prometheus.CounterVec
	batches prometheus.Counter
}

// NewOutboxMetrics registers the relay collectors on reg. A nil registerer
// yields a recorder whose methods do nothing.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_total",
			Help:      "Outbox rows handled by the relay, by outcome and event type.",
		}, []string{"outcome", "event_type"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "batches_total",
			Help:      "Non-empty batches claimed by the relay.",
		}),
	}
	reg.MustRegister(m.events, m.batches)
	return m
}

// ObserveEvent counts one relayed row.
func (m *OutboxMetrics) ObserveEvent(outcome, eventType string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(outcome), normalizeLabel(eventType)).Inc()
}

// IncBatch counts one claimed batch.
func (m *OutboxMetrics) IncBatch() {
	if m == nil || m.batches == nil {
		return
	}
	m.batches.Inc()
}
