// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ledger operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Settlement metrics
	TokensPurchased     prometheus.Counter
	PurchaseVolume      prometheus.Counter
	ProtocolFees        *prometheus.CounterVec
	DistributionsTotal  prometheus.Counter
	DistributedRevenue  prometheus.Counter
	DistributionFloored prometheus.Counter
	ActiveListings      prometheus.Gauge

	// Event delivery metrics
	EventsPublished   *prometheus.CounterVec
	EventSinkErrors   *prometheus.CounterVec
	FeedSubscribers   prometheus.Gauge
	LastEventSequence prometheus.Gauge

	// Health metrics
	UptimeSeconds prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "revenue_market"
	}

	return &Metrics{
		// Ledger operation metrics
		OperationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Total number of ledger operations by name and outcome",
		}, []string{"operation", "outcome"}),
		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operation_duration_seconds",
			Help:      "Ledger operation latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		// Settlement metrics
		TokensPurchased: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "tokens_purchased_total",
			Help:      "Total number of revenue tokens bought through listings",
		}),
		PurchaseVolume: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "purchase_volume_total",
			Help:      "Total payment received from buyers, in minor units",
		}),
		ProtocolFees: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "protocol_fees_total",
			Help:      "Total protocol fees accrued by source, in minor units",
		}, []string{"source"}),
		DistributionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "distributions_total",
			Help:      "Total number of earnings distributions",
		}),
		DistributedRevenue: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "distributed_revenue_total",
			Help:      "Total net earnings distributed to investors, in minor units",
		}),
		DistributionFloored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "distribution_fee_floored_total",
			Help:      "Distributions where the minimum protocol fee applied",
		}),
		ActiveListings: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "active_listings",
			Help:      "Number of listings in ACTIVE status at the last query",
		}),

		// Event delivery metrics
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of ledger events published by type",
		}, []string{"event_type"}),
		EventSinkErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "sink_errors_total",
			Help:      "Total number of event sink delivery errors",
		}, []string{"sink"}),
		FeedSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "feed_subscribers",
			Help:      "Current number of WebSocket feed subscribers",
		}),
		LastEventSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "last_sequence",
			Help:      "Sequence number of the last published event",
		}),

		// Health metrics
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordOperation records a ledger operation outcome and latency.
func RecordOperation(operation, outcome string, seconds float64) {
	DefaultMetrics.OperationsTotal.WithLabelValues(operation, outcome).Inc()
	DefaultMetrics.OperationDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordPurchase records a settled purchase.
func RecordPurchase(tokens, payment, fee uint64) {
	DefaultMetrics.TokensPurchased.Add(float64(tokens))
	DefaultMetrics.PurchaseVolume.Add(float64(payment))
	DefaultMetrics.ProtocolFees.WithLabelValues("purchase").Add(float64(fee))
}

// RecordDistribution records an earnings distribution.
func RecordDistribution(net, fee uint64, floored bool) {
	DefaultMetrics.DistributionsTotal.Inc()
	DefaultMetrics.DistributedRevenue.Add(float64(net))
	DefaultMetrics.ProtocolFees.WithLabelValues("distribution").Add(float64(fee))
	if floored {
		DefaultMetrics.DistributionFloored.Inc()
	}
}

// UpdateActiveListings sets the active listings gauge.
func UpdateActiveListings(n int) {
	DefaultMetrics.ActiveListings.Set(float64(n))
}

// RecordEventPublished records delivery of an event to the sinks.
func RecordEventPublished(eventType string, seq uint64) {
	DefaultMetrics.EventsPublished.WithLabelValues(eventType).Inc()
	DefaultMetrics.LastEventSequence.Set(float64(seq))
}

// RecordSinkError records a failed sink delivery.
func RecordSinkError(sink string) {
	DefaultMetrics.EventSinkErrors.WithLabelValues(sink).Inc()
}

// UpdateFeedSubscribers sets the feed subscribers gauge.
func UpdateFeedSubscribers(n int) {
	DefaultMetrics.FeedSubscribers.Set(float64(n))
}
