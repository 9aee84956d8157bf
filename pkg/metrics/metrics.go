package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	providerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_provider_requests_total",
			Help: "Price provider calls by provider id and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	cacheOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_cache_ops_total",
			Help: "Cache lookups by key namespace and result.",
		},
		[]string{"namespace", "result"},
	)

	breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "portfolio_breaker_state",
			Help: "Circuit breaker state per provider (0=closed, 1=open, 2=half-open).",
		},
		[]string{"provider"},
	)

	collectorDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portfolio_collector_duration_seconds",
			Help:    "Wall-clock duration of collector executions.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collector", "status"},
	)

	snapshotDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "portfolio_snapshot_duration_seconds",
			Help:    "Wall-clock duration of full orchestration runs.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// MustRegisterMetrics registers all application collectors with the default
// registry. Call once at startup, before serving /metrics.
func MustRegisterMetrics() {
	prometheus.MustRegister(
		providerRequestsTotal,
		cacheOpsTotal,
		breakerState,
		collectorDuration,
		snapshotDuration,
	)
}

// IncProviderRequest counts one provider call outcome ("success", "failure",
// "skipped").
func IncProviderRequest(provider, outcome string) {
	providerRequestsTotal.WithLabelValues(provider, outcome).Inc()
}

// IncCacheOp counts one cache lookup result ("hit" or "miss") under a key
// namespace such as "price" or "wallet".
func IncCacheOp(namespace, result string) {
	cacheOpsTotal.WithLabelValues(namespace, result).Inc()
}

// SetBreakerState records the current breaker state for a provider.
func SetBreakerState(provider string, state int) {
	breakerState.WithLabelValues(provider).Set(float64(state))
}

// ObserveCollectorDuration records one collector execution.
func ObserveCollectorDuration(collector, status string, seconds float64) {
	collectorDuration.WithLabelValues(collector, status).Observe(seconds)
}

// ObserveSnapshotDuration records one full orchestration run.
func ObserveSnapshotDuration(seconds float64) {
	snapshotDuration.Observe(seconds)
}
