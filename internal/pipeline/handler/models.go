package handler

import (
	"time"

	"agora/internal/agent"
	"agora/internal/domain"
	"agora/internal/journal"
	"agora/internal/pipeline"
)

// SubmitProposalRequest is the payload for POST /proposals.
type SubmitProposalRequest struct {
	ID          string  `json:"id,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category,omitempty"`
	Urgency     string  `json:"urgency,omitempty"`
	Submitter   string  `json:"submitter,omitempty"`
	Recipient   string  `json:"recipient,omitempty"`
}

// ToProposal converts the request into a domain proposal.
func (r SubmitProposalRequest) ToProposal() domain.Proposal {
	return domain.Proposal{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Amount:      r.Amount,
		Category:    r.Category,
		Urgency:     r.Urgency,
		Submitter:   r.Submitter,
		Recipient:   r.Recipient,
	}
}

// ProposalResponse is the wire form of a proposal.
type ProposalResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Amount      float64   `json:"amount"`
	Category    string    `json:"category,omitempty"`
	Urgency     string    `json:"urgency,omitempty"`
	Submitter   string    `json:"submitter,omitempty"`
	Recipient   string    `json:"recipient,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

func fromProposal(p domain.Proposal) ProposalResponse {
	return ProposalResponse{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Amount:      p.Amount,
		Category:    p.Category,
		Urgency:     p.Urgency,
		Submitter:   p.Submitter,
		Recipient:   p.Recipient,
		SubmittedAt: p.SubmittedAt,
	}
}

// AnalysisResponse is the wire form of one agent's analysis.
type AnalysisResponse struct {
	Agent          string    `json:"agent"`
	Specialization string    `json:"specialization"`
	Recommendation string    `json:"recommendation"`
	Confidence     float64   `json:"confidence"`
	Reasoning      string    `json:"reasoning"`
	AnalyzedAt     time.Time `json:"analyzed_at"`
}

func fromAnalyses(analyses []domain.AnalysisResult) []AnalysisResponse {
	out := make([]AnalysisResponse, len(analyses))
	for i, a := range analyses {
		out[i] = AnalysisResponse{
			Agent:          a.Agent,
			Specialization: a.Specialization.String(),
			Recommendation: a.Recommendation.String(),
			Confidence:     a.Confidence,
			Reasoning:      a.Reasoning,
			AnalyzedAt:     a.AnalyzedAt,
		}
	}
	return out
}

// ConsensusResponse is the wire form of a consensus outcome.
type ConsensusResponse struct {
	ProposalID   string    `json:"proposal_id"`
	Considered   int       `json:"considered"`
	ApprovalRate float64   `json:"approval_rate"`
	Decision     string    `json:"decision"`
	ComputedAt   time.Time `json:"computed_at"`
}

func fromOutcome(o domain.ConsensusOutcome) ConsensusResponse {
	return ConsensusResponse{
		ProposalID:   o.ProposalID,
		Considered:   o.Considered,
		ApprovalRate: o.ApprovalRate,
		Decision:     string(o.Decision),
		ComputedAt:   o.ComputedAt,
	}
}

// EvaluationResponse is returned by the analyze and demo endpoints. Consensus
// is absent when the round ended unresolved.
type EvaluationResponse struct {
	Proposal     ProposalResponse   `json:"proposal"`
	Participants []string           `json:"participants"`
	Analyses     []AnalysisResponse `json:"analyses"`
	Consensus    *ConsensusResponse `json:"consensus,omitempty"`
}

func fromEvaluation(ev pipeline.Evaluation) EvaluationResponse {
	participants := ev.Participants
	if participants == nil {
		participants = []string{}
	}
	resp := EvaluationResponse{
		Proposal:     fromProposal(ev.Proposal),
		Participants: participants,
		Analyses:     fromAnalyses(ev.Analyses),
	}
	if ev.Outcome.Decision != "" {
		outcome := fromOutcome(ev.Outcome)
		resp.Consensus = &outcome
	}
	return resp
}

// ProposalDetailResponse is returned by GET /proposals/{id}.
type ProposalDetailResponse struct {
	Proposal ProposalResponse   `json:"proposal"`
	Analyses []AnalysisResponse `json:"analyses"`
}

// JournalEntryResponse is one activity log line.
type JournalEntryResponse struct {
	Time    time.Time `json:"ts"`
	Level   string    `json:"level"`
	Message string    `json:"text"`
}

func fromJournal(entries []journal.Entry) []JournalEntryResponse {
	out := make([]JournalEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = JournalEntryResponse{Time: e.Time, Level: string(e.Level), Message: e.Message}
	}
	return out
}

// AgentResponse describes one roster member.
type AgentResponse struct {
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
}

func fromRoster(roster []agent.Agent) []AgentResponse {
	out := make([]AgentResponse, len(roster))
	for i, a := range roster {
		out[i] = AgentResponse{Name: a.Name, Specialization: a.Specialization.String()}
	}
	return out
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Status    string          `json:"status"`
	Agents    []AgentResponse `json:"agents"`
	Proposals int             `json:"proposals"`
	LogSize   int             `json:"log_size"`
	UptimeSec int64           `json:"uptime_seconds"`
}
