// Package observability collects the request metrics the emulator exposes
// at /metrics.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the request counter and latency histogram, registered on a
// private registry so tests can run many instances side by side.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics builds and registers the collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ruststack",
			Name:      "requests_total",
			Help:      "Requests served, by service and status code.",
		}, []string{"service", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ruststack",
			Name:      "request_duration_seconds",
			Help:      "Request latency, by service.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service"}),
	}
	m.registry.MustRegister(m.requests, m.duration)
	return m
}

// ObserveRequest records one served request.
func (m *Metrics) ObserveRequest(service, status string, elapsed time.Duration) {
	m.requests.WithLabelValues(service, status).Inc()
	m.duration.WithLabelValues(service).Observe(elapsed.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
