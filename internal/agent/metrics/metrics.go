package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for agent evaluations.
type Metrics struct {
	// Relevance scores by specialization, oracle or fallback
	RelevanceScore *prometheus.HistogramVec

	// Oracle degradations by stage ("relevance", "analysis")
	OracleFallbacks *prometheus.CounterVec

	// Analysis latency by specialization
	AnalyzeLatency *prometheus.HistogramVec
}

// New creates a Metrics instance with all agent metrics registered.
func New() *Metrics {
	return &Metrics{
		RelevanceScore: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agora_agent_relevance_score",
			Help:    "Relevance scores produced per specialization",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		}, []string{"specialization"}),

		OracleFallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agora_agent_oracle_fallbacks_total",
			Help: "Total oracle failures degraded to the deterministic rules",
		}, []string{"stage"}),

		AnalyzeLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agora_agent_analyze_duration_seconds",
			Help:    "Duration of proposal analysis per specialization",
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"specialization"}),
	}
}

// ObserveRelevanceScore records a relevance score.
func (m *Metrics) ObserveRelevanceScore(specialization string, score int) {
	if m != nil {
		m.RelevanceScore.WithLabelValues(specialization).Observe(float64(score))
	}
}

// IncOracleFallback records an oracle degradation at the given stage.
func (m *Metrics) IncOracleFallback(stage string) {
	if m != nil {
		m.OracleFallbacks.WithLabelValues(stage).Inc()
	}
}

// ObserveAnalyzeLatency records the duration of one analysis.
func (m *Metrics) ObserveAnalyzeLatency(specialization string, d time.Duration) {
	if m != nil {
		m.AnalyzeLatency.WithLabelValues(specialization).Observe(d.Seconds())
	}
}
