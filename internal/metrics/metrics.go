package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "store_dashboard"

// Outcome labels for RequestsTotal and RefreshesTotal.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeFallback = "fallback"
)

type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	FallbacksTotal   *prometheus.CounterVec
	StreamFrames     *prometheus.CounterVec
	StreamReconnects prometheus.Counter
	RefreshesTotal   *prometheus.CounterVec
	BreakerState     *prometheus.GaugeVec
}

// New registers the dashboard collectors on reg. A nil reg gets a private
// registry that nothing scrapes.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Backend requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Backend request latency.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),

		FallbacksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallbacks_total",
			Help:      "Enrichment reads answered with fallback values.",
		}, []string{"endpoint"}),

		StreamFrames: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_frames_total",
			Help:      "Order stream frames by kind: new_order, other or malformed.",
		}, []string{"type"}),

		StreamReconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_reconnects_total",
			Help:      "Order stream reconnect attempts.",
		}),

		RefreshesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Selected store refresh cycles by outcome.",
		}, []string{"outcome"}),

		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Circuit breaker state per upstream: 0 closed, 1 half-open, 2 open.",
		}, []string{"upstream"}),
	}
}

// Nop returns collectors bound to a throwaway registry.
func Nop() *Metrics {
	return New(nil)
}
