// internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rentflow"

// Metrics holds the collectors for the lifecycle client and the history service.
// All methods are safe to call on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	executions          *prometheus.CounterVec
	estimates           *prometheus.CounterVec
	persistenceFailures *prometheus.CounterVec
	pollDuration        *prometheus.HistogramVec
	requests            *prometheus.CounterVec
}

// New creates a Metrics instance on its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Lifecycle executions by outcome.",
		}, []string{"outcome"}),
		estimates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cost_estimates_total",
			Help:      "Cost estimates by provenance.",
		}, []string{"provenance"}),
		persistenceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_failures_total",
			Help:      "History writes that failed and were swallowed.",
		}, []string{"operation"}),
		pollDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Time spent polling for a terminal status.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
		}, []string{"onchain_status"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_requests_total",
			Help:      "History API requests by route and status code.",
		}, []string{"route", "code"}),
	}
	m.registry.MustRegister(m.executions, m.estimates, m.persistenceFailures, m.pollDuration, m.requests)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveExecution counts an Execute call by outcome (submitted, cancelled, failed, build_error).
func (m *Metrics) ObserveExecution(outcome string) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(outcome).Inc()
}

// ObserveEstimate counts a cost estimate by provenance; an empty provenance is recorded as "none".
func (m *Metrics) ObserveEstimate(provenance string) {
	if m == nil {
		return
	}
	if provenance == "" {
		provenance = "none"
	}
	m.estimates.WithLabelValues(provenance).Inc()
}

// PersistenceFailure counts a swallowed history write.
func (m *Metrics) PersistenceFailure(operation string) {
	if m == nil {
		return
	}
	m.persistenceFailures.WithLabelValues(operation).Inc()
}

// ObservePoll records the duration of a poll loop and the status it ended on.
func (m *Metrics) ObservePoll(d time.Duration, onchainStatus string) {
	if m == nil {
		return
	}
	m.pollDuration.WithLabelValues(onchainStatus).Observe(d.Seconds())
}

// ObserveRequest counts a history API request.
func (m *Metrics) ObserveRequest(route, code string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, code).Inc()
}
