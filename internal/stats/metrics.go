package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics mirrors the Aggregator's counters as Prometheus collectors for
// hosts that scrape /metrics. It is optional: an Aggregator built with a
// nil *Metrics tracks stats in-process only.
type Metrics struct {
	// RequestsTotal counts completed ChatCompletion calls.
	// Labels: outcome (success|failed)
	RequestsTotal *prometheus.CounterVec

	// ProviderAttemptsTotal counts adapter invocation attempts and their
	// per-provider outcomes.
	// Labels: provider, outcome (attempt|success|failure|skipped_open)
	ProviderAttemptsTotal *prometheus.CounterVec

	// BreakerState mirrors each provider's current breaker state as a
	// gauge: 0=closed, 1=half_open, 2=open. Labels: provider
	BreakerState *prometheus.GaugeVec
}

// NewMetrics registers the gateway's counters with the default Prometheus
// registry. Call once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flexigate_requests_total",
				Help: "Total ChatCompletion calls by outcome",
			},
			[]string{"outcome"},
		),
		ProviderAttemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flexigate_provider_attempts_total",
				Help: "Total adapter invocation attempts by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		BreakerState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "flexigate_breaker_state",
				Help: "Current circuit breaker state per provider (0=closed, 1=half_open, 2=open)",
			},
			[]string{"provider"},
		),
	}
}
