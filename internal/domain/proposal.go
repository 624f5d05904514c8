package domain

import "time"

// Proposal is a community funding request. It is immutable once submitted to
// the pipeline; downstream stages consume it read-only.
type Proposal struct {
	ID          string
	Title       string
	Description string
	Amount      float64
	Category    string
	Urgency     string
	Submitter   string
	Recipient   string
	SubmittedAt time.Time
}

// Specialization is the fixed expertise tag controlling which heuristic and
// prompt framing an agent uses.
type Specialization string

const (
	SpecializationRisk      Specialization = "risk"
	SpecializationFinancial Specialization = "financial"
	SpecializationCommunity Specialization = "community"
	SpecializationTechnical Specialization = "technical"
)

// String returns the human-readable form used in prompts and log lines.
func (s Specialization) String() string {
	switch s {
	case SpecializationRisk:
		return "Risk Assessment"
	case SpecializationFinancial:
		return "Financial Analysis"
	case SpecializationCommunity:
		return "Community Impact"
	case SpecializationTechnical:
		return "Technical Feasibility"
	}
	return string(s)
}
