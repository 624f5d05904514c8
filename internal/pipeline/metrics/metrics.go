package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the evaluation pipeline.
type Metrics struct {
	// Proposals accepted by source ("api", "chain", "demo")
	ProposalsSubmitted *prometheus.CounterVec

	// Completed evaluations by final decision
	Evaluations *prometheus.CounterVec

	// End-to-end evaluation latency
	EvaluateDuration prometheus.Histogram

	// Participating agents per proposal
	Participants prometheus.Histogram
}

// New creates a Metrics instance with all pipeline metrics registered.
func New() *Metrics {
	return &Metrics{
		ProposalsSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agora_pipeline_proposals_submitted_total",
			Help: "Total proposals accepted into the pipeline",
		}, []string{"source"}),

		Evaluations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "agora_pipeline_evaluations_total",
			Help: "Total completed evaluations by decision",
		}, []string{"decision"}),

		EvaluateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "agora_pipeline_evaluate_duration_seconds",
			Help:    "End-to-end duration of one proposal evaluation",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),

		Participants: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "agora_pipeline_participants",
			Help:    "Number of agents participating per proposal",
			Buckets: []float64{0, 1, 2, 3, 4},
		}),
	}
}

// IncProposalsSubmitted records an accepted proposal.
func (m *Metrics) IncProposalsSubmitted(source string) {
	if m != nil {
		m.ProposalsSubmitted.WithLabelValues(source).Inc()
	}
}

// IncEvaluations records a completed evaluation.
func (m *Metrics) IncEvaluations(decision string) {
	if m != nil {
		m.Evaluations.WithLabelValues(decision).Inc()
	}
}

// ObserveEvaluateDuration records one evaluation's duration.
func (m *Metrics) ObserveEvaluateDuration(d time.Duration) {
	if m != nil {
		m.EvaluateDuration.Observe(d.Seconds())
	}
}

// ObserveParticipants records the participant count for one proposal.
func (m *Metrics) ObserveParticipants(n int) {
	if m != nil {
		m.Participants.Observe(float64(n))
	}
}
