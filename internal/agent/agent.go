// Package agent implements the evaluation panel: named, specialization-tagged
// agents that filter proposals for relevance and score them, via an external
// oracle when available and deterministic rules otherwise.
package agent

import (
	"log/slog"
	"time"

	"agora/internal/agent/metrics"
	"agora/internal/domain"
	"agora/internal/oracle"
)

// Agent is a named evaluator with a fixed specialization. Agents hold no
// per-proposal state; registration bookkeeping lives in the staking ledger.
type Agent struct {
	Name           string
	Specialization domain.Specialization
}

// DefaultRoster returns the standard four-agent panel.
func DefaultRoster() []Agent {
	return []Agent{
		{Name: "RiskBot", Specialization: domain.SpecializationRisk},
		{Name: "FinanceBot", Specialization: domain.SpecializationFinancial},
		{Name: "CommunityBot", Specialization: domain.SpecializationCommunity},
		{Name: "TechBot", Specialization: domain.SpecializationTechnical},
	}
}

// Evaluator runs relevance filtering and analysis for agents. A nil oracle
// means every evaluation takes the deterministic fallback path.
type Evaluator struct {
	oracle  oracle.Oracle
	logger  *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration
}

// Option configures the Evaluator.
type Option func(*Evaluator)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Evaluator) { e.metrics = m }
}

// WithTimeout bounds each oracle call. Zero keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(e *Evaluator) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewEvaluator constructs an Evaluator. The oracle may be nil.
func NewEvaluator(o oracle.Oracle, logger *slog.Logger, opts ...Option) *Evaluator {
	e := &Evaluator{
		oracle:  o,
		logger:  logger,
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
