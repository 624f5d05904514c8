// Package store persists proposals, per-agent analyses, and consensus
// outcomes.
package store

import (
	"context"
	"errors"

	"agora/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence interface for the evaluation pipeline.
type Store interface {
	// SaveProposal inserts or replaces a proposal.
	SaveProposal(ctx context.Context, p domain.Proposal) error

	// FindProposal returns the proposal with the given ID, or ErrNotFound.
	FindProposal(ctx context.Context, id string) (domain.Proposal, error)

	// ListProposals returns all proposals, newest first.
	ListProposals(ctx context.Context) ([]domain.Proposal, error)

	// SaveAnalysis upserts an analysis keyed by (proposal, agent). A
	// re-evaluation replaces the agent's previous result.
	SaveAnalysis(ctx context.Context, r domain.AnalysisResult) error

	// ListAnalyses returns the analyses recorded for the proposal.
	ListAnalyses(ctx context.Context, proposalID string) ([]domain.AnalysisResult, error)

	// SaveOutcome inserts or replaces the consensus outcome for a proposal.
	SaveOutcome(ctx context.Context, o domain.ConsensusOutcome) error

	// FindOutcome returns the consensus outcome for the proposal, or
	// ErrNotFound when consensus has not been computed yet.
	FindOutcome(ctx context.Context, proposalID string) (domain.ConsensusOutcome, error)
}
