// Package metrics provides Prometheus metrics for solrpi.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts plugin requests by plugin key and outcome.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "solrpi",
			Name:      "plugin_requests_total",
			Help:      "Total number of plugin requests",
		},
		[]string{"plugin", "outcome"},
	)

	// RequestDuration measures the full plugin lifecycle.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "solrpi",
			Name:      "plugin_request_duration_seconds",
			Help:      "Duration of plugin requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"plugin"},
	)

	// ExceptionsTotal counts requests rendered through the exception path.
	ExceptionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "solrpi",
			Name:      "plugin_exceptions_total",
			Help:      "Total number of exceptions caught by the plugin lifecycle",
		},
		[]string{"plugin", "code"},
	)

	// BackendRequestDuration measures backend calls.
	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "solrpi",
			Name:      "backend_request_duration_seconds",
			Help:      "Duration of backend requests in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"backend", "operation", "status"},
	)

	// BackendAvailable reports the last ping result per connection.
	BackendAvailable = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "solrpi",
			Name:      "backend_available",
			Help:      "Backend availability from the last ping (1 = available, 0 = unavailable)",
		},
		[]string{"connection"},
	)

	// CachedConnections tracks the size of the connection cache.
	CachedConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "solrpi",
			Name:      "cached_connections",
			Help:      "Number of cached backend connections",
		},
	)
)

// RecordRequest records a finished plugin request.
func RecordRequest(plugin, outcome string, duration time.Duration) {
	RequestsTotal.WithLabelValues(plugin, outcome).Inc()
	RequestDuration.WithLabelValues(plugin).Observe(duration.Seconds())
}

// RecordException records an exception with its error code.
func RecordException(plugin string, code int) {
	ExceptionsTotal.WithLabelValues(plugin, strconv.Itoa(code)).Inc()
}

// RecordBackendRequest records a backend call.
func RecordBackendRequest(backend, operation string, err error, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	BackendRequestDuration.WithLabelValues(backend, operation, status).Observe(duration.Seconds())
}

// SetAvailable records a ping result.
func SetAvailable(connection string, available bool) {
	if available {
		BackendAvailable.WithLabelValues(connection).Set(1)
		return
	}
	BackendAvailable.WithLabelValues(connection).Set(0)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
