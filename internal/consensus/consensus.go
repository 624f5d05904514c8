// Package consensus reduces a set of agent analyses to a single weighted
// decision. Pure domain logic - no I/O, no side effects.
package consensus

import (
	"time"

	"agora/internal/domain"
)

// Decision thresholds on the approval rate, in percent.
const (
	approveThreshold = 70
	rejectThreshold  = 30
)

// Reduce computes the weighted consensus over the given analyses. Neutral
// recommendations carry no weight and are excluded from the considered set.
// Each remaining analysis weighs confidence/100; the approval rate is the
// approving share of total weight, in percent. An empty considered set yields
// rate 0 and a rejection.
func Reduce(proposalID string, analyses []domain.AnalysisResult) domain.ConsensusOutcome {
	var approvalWeight, totalWeight float64
	considered := 0

	for _, a := range analyses {
		if a.Recommendation == domain.RecommendNeutral {
			continue
		}
		considered++
		weight := a.Confidence / 100
		totalWeight += weight
		if a.Recommendation == domain.RecommendApprove {
			approvalWeight += weight
		}
	}

	rate := 0.0
	if totalWeight > 0 {
		rate = 100 * approvalWeight / totalWeight
	}

	return domain.ConsensusOutcome{
		ProposalID:   proposalID,
		Considered:   considered,
		ApprovalRate: rate,
		Decision:     decide(rate),
		ComputedAt:   time.Now(),
	}
}

func decide(rate float64) domain.Decision {
	switch {
	case rate >= approveThreshold:
		return domain.DecisionApproved
	case rate <= rejectThreshold:
		return domain.DecisionRejected
	default:
		return domain.DecisionMixed
	}
}
