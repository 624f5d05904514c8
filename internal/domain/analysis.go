package domain

import "time"

// Recommendation is an agent's ternary verdict on a proposal.
type Recommendation int

const (
	RecommendReject  Recommendation = -1
	RecommendNeutral Recommendation = 0
	RecommendApprove Recommendation = 1
)

// Valid reports whether the value is one of the three enumerated
// recommendations. Oracle output failing this check is discarded entirely.
func (r Recommendation) Valid() bool {
	return r == RecommendReject || r == RecommendNeutral || r == RecommendApprove
}

func (r Recommendation) String() string {
	switch {
	case r > 0:
		return "APPROVE"
	case r < 0:
		return "REJECT"
	}
	return "NEUTRAL"
}

// AnalysisResult is produced once per (proposal, participant) pair.
// Confidence is always clamped into [0,100].
type AnalysisResult struct {
	ProposalID     string
	Agent          string
	Specialization Specialization
	Recommendation Recommendation
	Confidence     float64
	Reasoning      string
	AnalyzedAt     time.Time
}

// ClampConfidence forces a raw confidence value into [0,100].
func ClampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
