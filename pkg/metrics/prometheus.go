package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the HTTP-level Prometheus metrics of one service instance.
// They live in their own registry so several instances (tests) never collide.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP Request Metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Rate Limiting Metrics
	rateLimitBlockedTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(serviceName string) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	labels := prometheus.Labels{"service": serviceName}

	return &Metrics{
		registry: registry,
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "http_requests_total",
				Help:        "Total number of HTTP requests",
				ConstLabels: labels,
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "http_request_duration_seconds",
				Help:        "HTTP request latency in seconds",
				ConstLabels: labels,
				Buckets:     prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		httpRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "http_requests_in_flight",
				Help:        "Number of HTTP requests currently being processed",
				ConstLabels: labels,
			},
		),
		rateLimitBlockedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "rate_limit_blocked_total",
				Help:        "Total number of requests blocked by rate limiting",
				ConstLabels: labels,
			},
			[]string{"endpoint"},
		),
	}
}

// GetRegistry returns the registry holding this instance's metrics
func (m *Metrics) GetRegistry() *prometheus.Registry {
	return m.registry
}

// Gatherer merges this instance's registry with the process-wide default
// registry, where the portal domain counters live
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return prometheus.Gatherers{m.registry, prometheus.DefaultGatherer}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments the number of in-flight HTTP requests
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	m.httpRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements the number of in-flight HTTP requests
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	m.httpRequestsInFlight.Dec()
}

// RecordRateLimitBlocked records a request blocked by rate limiting
func (m *Metrics) RecordRateLimitBlocked(endpoint string) {
	m.rateLimitBlockedTotal.WithLabelValues(endpoint).Inc()
}
