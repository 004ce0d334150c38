package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	DonorsRegistered    prometheus.Counter
	RequestsCreated     prometheus.Counter
	RequestsAccepted    prometheus.Counter
	RequestsRejected    prometheus.Counter
	RequestsCancelled   prometheus.Counter
	CompatibilityChecks *prometheus.CounterVec
	GeocodeFallbacks    prometheus.Counter
	RequestLatency      *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		DonorsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bloodlink_donors_registered_total",
			Help: "Total number of donor profiles registered",
		}),
		RequestsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bloodlink_requests_created_total",
			Help: "Total number of donation requests created",
		}),
		RequestsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bloodlink_requests_accepted_total",
			Help: "Total number of donation requests accepted by a donor",
		}),
		RequestsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bloodlink_requests_rejected_total",
			Help: "Total number of donation requests rejected by the recipient",
		}),
		RequestsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bloodlink_requests_cancelled_total",
			Help: "Total number of donation requests cancelled by the requester",
		}),
		CompatibilityChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "bloodlink_compatibility_checks_total",
			Help: "Compatibility evaluations by outcome",
		}, []string{"result"}),
		GeocodeFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bloodlink_geocode_fallbacks_total",
			Help: "Geocoding lookups that degraded to the Unknown location",
		}),
		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bloodlink_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// ObserveRequest records one HTTP request's latency.
func (m *Metrics) ObserveRequest(route, status string, d time.Duration) {
	m.RequestLatency.WithLabelValues(route, status).Observe(d.Seconds())
}

// IncCompatibilityCheck counts one oracle evaluation.
func (m *Metrics) IncCompatibilityCheck(compatible bool) {
	result := "incompatible"
	if compatible {
		result = "compatible"
	}
	m.CompatibilityChecks.WithLabelValues(result).Inc()
}
