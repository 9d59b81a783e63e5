package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the compliance core.
type Metrics struct {
	EventsEmitted    *prometheus.CounterVec
	HandlerFailures  *prometheus.CounterVec
	BroadcastDropped prometheus.Counter

	AuditEventsWritten prometheus.Counter
	AuditEventsDropped prometheus.Counter

	WebhookDeliveries *prometheus.CounterVec

	DSRProcessed *prometheus.CounterVec

	RetentionActions *prometheus.CounterVec
}

// AuditCounters adapts the audit counters to the trail's metrics interface.
type AuditCounters struct {
	m *Metrics
}

func (m *Metrics) Audit() *AuditCounters { return &AuditCounters{m: m} }

func (c *AuditCounters) WrittenInc() { c.m.AuditEventsWritten.Inc() }
func (c *AuditCounters) DroppedInc() { c.m.AuditEventsDropped.Inc() }

// BusCounters adapts the event bus counters to the bus's metrics interface.
type BusCounters struct {
	m *Metrics
}

func (m *Metrics) Bus() *BusCounters { return &BusCounters{m: m} }

func (c *BusCounters) EmittedInc(eventType string) {
	c.m.EventsEmitted.WithLabelValues(eventType).Inc()
}

func (c *BusCounters) HandlerFailureInc(eventType string) {
	c.m.HandlerFailures.WithLabelValues(eventType).Inc()
}

func (c *BusCounters) BroadcastDroppedInc() { c.m.BroadcastDropped.Inc() }

// WebhookCounters adapts the delivery counter to the dispatcher's metrics
// interface.
type WebhookCounters struct {
	m *Metrics
}

func (m *Metrics) Webhook() *WebhookCounters { return &WebhookCounters{m: m} }

func (c *WebhookCounters) DeliveryInc(outcome string) {
	c.m.WebhookDeliveries.WithLabelValues(outcome).Inc()
}

// DSRCounters adapts the DSR counter to the workflow's metrics interface.
type DSRCounters struct {
	m *Metrics
}

func (m *Metrics) DSR() *DSRCounters { return &DSRCounters{m: m} }

func (c *DSRCounters) ProcessedInc(requestType, outcome string) {
	c.m.DSRProcessed.WithLabelValues(requestType, outcome).Inc()
}

// RetentionCounters adapts the retention counter to the engine's metrics
// interface.
type RetentionCounters struct {
	m *Metrics
}

func (m *Metrics) Retention() *RetentionCounters { return &RetentionCounters{m: m} }

func (c *RetentionCounters) ActionInc(action string) {
	c.m.RetentionActions.WithLabelValues(action).Inc()
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		EventsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "peicollab_events_emitted_total",
			Help: "Total domain events emitted through the event bus",
		}, []string{"event_type"}),
		HandlerFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "peicollab_handler_failures_total",
			Help: "Lifecycle handler failures, isolated per handler",
		}, []string{"event_type"}),
		BroadcastDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "peicollab_broadcast_dropped_total",
			Help: "Cross-client broadcasts that failed to publish",
		}),
		AuditEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "peicollab_audit_events_written_total",
			Help: "Audit events persisted to the trail",
		}),
		AuditEventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "peicollab_audit_events_dropped_total",
			Help: "Audit events dropped for missing tenant or store failure",
		}),
		WebhookDeliveries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "peicollab_webhook_deliveries_total",
			Help: "Webhook delivery attempts by outcome",
		}, []string{"outcome"}),
		DSRProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "peicollab_dsr_processed_total",
			Help: "DSR requests processed by type and outcome",
		}, []string{"request_type", "outcome"}),
		RetentionActions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "peicollab_retention_actions_total",
			Help: "Retention engine actions taken in live runs",
		}, []string{"action"}),
	}
}
