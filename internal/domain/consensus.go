package domain

import "time"

// Decision is the ternary outcome of the weighted consensus reduction.
type Decision string

const (
	DecisionApproved Decision = "APPROVED"
	DecisionRejected Decision = "REJECTED"
	DecisionMixed    Decision = "MIXED"
)

// ConsensusOutcome is derived fresh from the current analysis results; it is
// never updated incrementally. ApprovalRate is a percentage in [0,100]
// weighted by confidence over non-neutral results only.
type ConsensusOutcome struct {
	ProposalID   string
	Considered   int
	ApprovalRate float64
	Decision     Decision
	ComputedAt   time.Time
}
