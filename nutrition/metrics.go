package nutrition

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts orchestrator activity. Registering on an injected
// Registerer keeps tests independent of the default registry.
type Metrics struct {
	ModelCalls      *prometheus.CounterVec
	CacheHits       prometheus.Counter
	PersistedReuses prometheus.Counter
	Fallbacks       *prometheus.CounterVec
	PersistFailures prometheus.Counter
}

// NewMetrics creates and registers the orchestrator metrics. A nil
// registerer skips registration (useful in tests that don't scrape).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ModelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nutriengine_model_calls_total",
			Help: "Analysis model calls issued, by mode and outcome.",
		}, []string{"mode", "outcome"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nutriengine_cache_hits_total",
			Help: "Analyses served from the in-memory TTL cache.",
		}),
		PersistedReuses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nutriengine_persisted_reuses_total",
			Help: "Analyses served from the persisted store without a model call.",
		}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nutriengine_fallbacks_total",
			Help: "Fallback syntheses after unparseable model responses, by mode.",
		}, []string{"mode"}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nutriengine_persist_failures_total",
			Help: "Failed attempts to persist an accepted analysis.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.ModelCalls, m.CacheHits, m.PersistedReuses, m.Fallbacks, m.PersistFailures)
	}
	return m
}
