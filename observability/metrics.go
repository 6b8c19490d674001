package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the notification subsystem.
type Metrics struct {
	EventsPublished  prometheus.Counter
	Deliveries       *prometheus.CounterVec
	DeliveryLatency  prometheus.Histogram
	PendingEnvelopes prometheus.Gauge
	DLQSize          prometheus.Gauge
}

// NewMetrics creates and registers the instruments on the given registerer.
// Pass prometheus.DefaultRegisterer to expose them on the application's
// standard /metrics handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "notify_events_published_total",
			Help: "Total events accepted for delivery.",
		}),
		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_deliveries_total",
			Help: "Delivery attempts by outcome.",
		}, []string{"status"}),
		DeliveryLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "notify_delivery_latency_seconds",
			Help:    "HTTP delivery attempt latency.",
			Buckets: prometheus.DefBuckets,
		}),
		PendingEnvelopes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "notify_pending_envelopes",
			Help: "Envelopes currently awaiting a delivery attempt.",
		}),
		DLQSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "notify_dlq_size",
			Help: "Entries currently in the dead letter queue.",
		}),
	}
}

// RecordDelivery records a delivery attempt with the given outcome and latency.
func (m *Metrics) RecordDelivery(status string, latencySeconds float64) {
	m.Deliveries.WithLabelValues(status).Inc()
	m.DeliveryLatency.Observe(latencySeconds)
}
