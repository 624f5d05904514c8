package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"agora/internal/domain"
)

// analysisFocus gives each specialization a distinct analytical framing for
// the oracle prompt.
var analysisFocus = map[domain.Specialization]string{
	domain.SpecializationRisk:      "Focus on downside risk, urgency, and exposure relative to the requested amount.",
	domain.SpecializationFinancial: "Focus on cost effectiveness and whether the requested amount is justified.",
	domain.SpecializationCommunity: "Focus on how many people benefit and whether essential services are affected.",
	domain.SpecializationTechnical: "Focus on whether the work is technically feasible with proven methods.",
}

type oracleAnalysis struct {
	Recommendation int     `json:"recommendation"`
	Confidence     float64 `json:"confidence"`
	Reasoning      string  `json:"reasoning"`
}

// Analyze scores the proposal for the agent's specialization. The oracle is
// asked for a strict JSON object; a malformed reply or an out-of-range
// recommendation discards the reply entirely in favor of the deterministic
// fallback. Confidence is clamped into [0,100] on every path.
func (e *Evaluator) Analyze(ctx context.Context, a Agent, p domain.Proposal) domain.AnalysisResult {
	start := time.Now()
	result := e.analyze(ctx, a, p)
	e.metrics.ObserveAnalyzeLatency(string(a.Specialization), time.Since(start))

	e.logger.InfoContext(ctx, "proposal analyzed",
		"agent", a.Name,
		"proposal_id", p.ID,
		"recommendation", result.Recommendation.String(),
		"confidence", result.Confidence,
	)
	return result
}

func (e *Evaluator) analyze(ctx context.Context, a Agent, p domain.Proposal) domain.AnalysisResult {
	if e.oracle == nil {
		return fallbackAnalysis(a, p)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	system := fmt.Sprintf(
		`You are a %s agent. %s Respond JSON: {"recommendation":-1|0|1,"confidence":0-100,"reasoning":"..."} (only JSON)`,
		a.Specialization, analysisFocus[a.Specialization],
	)
	reply, err := e.oracle.Complete(ctx, system, proposalSummary(p))
	if err != nil {
		e.warnFallback(ctx, a, p, "oracle analysis call failed", err)
		return fallbackAnalysis(a, p)
	}

	var parsed oracleAnalysis
	if err := json.Unmarshal([]byte(reply), &parsed); err != nil {
		e.warnFallback(ctx, a, p, "oracle analysis reply not valid JSON", err)
		return fallbackAnalysis(a, p)
	}
	rec := domain.Recommendation(parsed.Recommendation)
	if !rec.Valid() {
		e.warnFallback(ctx, a, p, "oracle recommendation out of range", fmt.Errorf("recommendation %d", parsed.Recommendation))
		return fallbackAnalysis(a, p)
	}

	return domain.AnalysisResult{
		ProposalID:     p.ID,
		Agent:          a.Name,
		Specialization: a.Specialization,
		Recommendation: rec,
		Confidence:     domain.ClampConfidence(parsed.Confidence),
		Reasoning:      parsed.Reasoning,
		AnalyzedAt:     time.Now(),
	}
}

func (e *Evaluator) warnFallback(ctx context.Context, a Agent, p domain.Proposal, msg string, err error) {
	e.logger.WarnContext(ctx, msg+", using fallback",
		"agent", a.Name,
		"proposal_id", p.ID,
		"error", err,
	)
	e.metrics.IncOracleFallback("analysis")
}

// fallbackAnalysis applies the deterministic per-specialization heuristics
// over title keywords and the requested amount.
func fallbackAnalysis(a Agent, p domain.Proposal) domain.AnalysisResult {
	title := strings.ToLower(p.Title)
	amount := p.Amount

	recommendation := domain.RecommendNeutral
	confidence := 70.0
	reasoning := a.Specialization.String() + " analysis: "

	switch a.Specialization {
	case domain.SpecializationRisk:
		switch {
		case strings.Contains(title, "emergency"):
			if amount < 1 {
				recommendation = domain.RecommendApprove
			}
			confidence = 80
			reasoning += "Emergency; acceptable/moderate risk."
		case strings.Contains(title, "experimental"):
			recommendation = domain.RecommendReject
			confidence = 85
			reasoning += "High uncertainty & risk."
		default:
			if amount < 0.5 {
				recommendation = domain.RecommendApprove
			}
			reasoning += "Standard infra; low/moderate risk."
		}

	case domain.SpecializationFinancial:
		switch {
		case amount < 0.1:
			recommendation = domain.RecommendApprove
			confidence = 85
			reasoning += "Low cost, good value."
		case amount > 2.0:
			recommendation = domain.RecommendReject
			confidence = 80
			reasoning += "High cost; needs justification."
		case strings.Contains(title, "repair"):
			recommendation = domain.RecommendApprove
			reasoning += "Maintenance justified."
		default:
			reasoning += "Needs cost-benefit analysis."
		}

	case domain.SpecializationCommunity:
		switch {
		case containsAny(title, "water", "health", "education", "school", "power", "electric", "solar"):
			recommendation = domain.RecommendApprove
			confidence = 90
			reasoning += "Essential services; high impact."
		case strings.Contains(title, "community"):
			recommendation = domain.RecommendApprove
			confidence = 75
			reasoning += "Community-focused initiative."
		default:
			reasoning += "Moderate impact; more input needed."
		}

	case domain.SpecializationTechnical:
		switch {
		case containsAny(title, "repair", "maintenance"):
			recommendation = domain.RecommendApprove
			confidence = 90
			reasoning += "High feasibility."
		case containsAny(title, "experimental", "research"):
			recommendation = domain.RecommendReject
			confidence = 85
			reasoning += "Low feasibility."
		case containsAny(title, "install", "solar", "power", "electric"):
			recommendation = domain.RecommendApprove
			reasoning += "Feasible install."
		default:
			reasoning += "Needs assessment."
		}
	}

	return domain.AnalysisResult{
		ProposalID:     p.ID,
		Agent:          a.Name,
		Specialization: a.Specialization,
		Recommendation: recommendation,
		Confidence:     domain.ClampConfidence(confidence),
		Reasoning:      reasoning,
		AnalyzedAt:     time.Now(),
	}
}
