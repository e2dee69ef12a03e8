package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the counters and histograms ledgerd exposes on /metrics.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	RetriesTotal        *prometheus.CounterVec
	IdempotencyOutcomes *prometheus.CounterVec
}

// NewMetrics registers ledgerd's metric collectors against reg. Pass a
// fresh prometheus.NewRegistry() in tests to avoid the global default
// registry's duplicate-registration panic across test runs.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_http_requests_total",
			Help: "Total HTTP requests processed, labeled by method, route and status class.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_http_request_duration_seconds",
			Help:    "Latency distribution of HTTP requests.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route"}),
		RetriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_executor_retries_total",
			Help: "Serialization-conflict retries performed by the operation executor, labeled by operation.",
		}, []string{"operation"}),
		IdempotencyOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_idempotency_outcomes_total",
			Help: "Idempotency reservation outcomes, labeled by outcome (fresh/replay/conflict).",
		}, []string{"outcome"}),
	}
}

// ObserveHTTP records one request's outcome and latency.
func (m *Metrics) ObserveHTTP(method, route, status string, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveRetry records one serialization-conflict retry for operation.
func (m *Metrics) ObserveRetry(operation string) {
	m.RetriesTotal.WithLabelValues(operation).Inc()
}

// ObserveIdempotency records one idempotency reservation outcome.
func (m *Metrics) ObserveIdempotency(outcome string) {
	m.IdempotencyOutcomes.WithLabelValues(outcome).Inc()
}
