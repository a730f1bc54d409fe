package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	NotificationsDelivered prometheus.Counter
	NotificationsRetried   prometheus.Counter
	NotificationsFailed    prometheus.Counter
	DeliveryLatency        prometheus.Histogram
	HubConnections         prometheus.Gauge
	HubOwners              prometheus.Gauge
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NotificationsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifications_delivered_total",
			Help: "Total number of successfully delivered notifications.",
		}),
		NotificationsRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifications_retried_total",
			Help: "Total number of delivery attempts that were rescheduled for retry.",
		}),
		NotificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifications_failed_total",
			Help: "Total number of dead-lettered notifications (retries exhausted).",
		}),
		DeliveryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "notification_delivery_seconds",
			Help:    "Latency from claim to delivery acknowledgement.",
			Buckets: prometheus.DefBuckets,
		}),
		HubConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hub_connections",
			Help: "Current number of live websocket connections.",
		}),
		HubOwners: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hub_connected_owners",
			Help: "Current number of owners with at least one live connection.",
		}),
	}

	reg.MustRegister(
		m.NotificationsDelivered,
		m.NotificationsRetried,
		m.NotificationsFailed,
		m.DeliveryLatency,
		m.HubConnections,
		m.HubOwners,
	)

	return m
}

// ProcessorHooks returns the metric callbacks expected by processor.Hooks.
// Centralises the prometheus observation calls so the processor stays
// metrics-agnostic.
func (m *Metrics) ProcessorHooks() (
	onDelivered func(latency time.Duration),
	onRetried func(),
	onFailed func(),
) {
	onDelivered = func(latency time.Duration) {
		m.NotificationsDelivered.Inc()
		m.DeliveryLatency.Observe(latency.Seconds())
	}
	onRetried = func() { m.NotificationsRetried.Inc() }
	onFailed = func() { m.NotificationsFailed.Inc() }
	return
}

// HubHook returns the membership callback expected by hub.Hooks.
func (m *Metrics) HubHook() func(connections, owners int) {
	return func(connections, owners int) {
		m.HubConnections.Set(float64(connections))
		m.HubOwners.Set(float64(owners))
	}
}
