package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the gateway's Prometheus collectors. A nil registerer leaves
// them unregistered, which is what tests use.
type Metrics struct {
	CacheLookups  *prometheus.CounterVec
	ProviderCalls *prometheus.CounterVec
	Fallbacks     prometheus.Counter
	Unavailable   prometheus.Counter
	Latency       prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kidlingo_narration_cache_lookups_total",
			Help: "Narration cache lookups by result.",
		}, []string{"result"}),
		ProviderCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kidlingo_provider_calls_total",
			Help: "Speech provider calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		Fallbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "kidlingo_provider_fallbacks_total",
			Help: "Narrations served by a provider other than the first one.",
		}),
		Unavailable: f.NewCounter(prometheus.CounterOpts{
			Name: "kidlingo_provider_unavailable_total",
			Help: "Narrations for which every provider failed.",
		}),
		Latency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kidlingo_synthesis_duration_seconds",
			Help:    "Time spent synthesizing uncached narrations.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8),
		}),
	}
}

func (m *Metrics) observe(start time.Time) {
	m.Latency.Observe(time.Since(start).Seconds())
}
