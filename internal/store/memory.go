package store

import (
	"context"
	"sort"
	"sync"

	"agora/internal/domain"
)

// MemoryStore is an in-memory Store safe for concurrent use. It is the
// default backend when no database is configured.
type MemoryStore struct {
	mu        sync.RWMutex
	proposals map[string]domain.Proposal
	analyses  map[string]map[string]domain.AnalysisResult
	outcomes  map[string]domain.ConsensusOutcome
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		proposals: make(map[string]domain.Proposal),
		analyses:  make(map[string]map[string]domain.AnalysisResult),
		outcomes:  make(map[string]domain.ConsensusOutcome),
	}
}

func (s *MemoryStore) SaveProposal(_ context.Context, p domain.Proposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.proposals[p.ID] = p
	return nil
}

func (s *MemoryStore) FindProposal(_ context.Context, id string) (domain.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.proposals[id]
	if !ok {
		return domain.Proposal{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) ListProposals(_ context.Context) ([]domain.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Proposal, 0, len(s.proposals))
	for _, p := range s.proposals {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	return out, nil
}

func (s *MemoryStore) SaveAnalysis(_ context.Context, r domain.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byAgent, ok := s.analyses[r.ProposalID]
	if !ok {
		byAgent = make(map[string]domain.AnalysisResult)
		s.analyses[r.ProposalID] = byAgent
	}
	byAgent[r.Agent] = r
	return nil
}

func (s *MemoryStore) ListAnalyses(_ context.Context, proposalID string) ([]domain.AnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byAgent := s.analyses[proposalID]
	out := make([]domain.AnalysisResult, 0, len(byAgent))
	for _, r := range byAgent {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Agent < out[j].Agent })
	return out, nil
}

func (s *MemoryStore) SaveOutcome(_ context.Context, o domain.ConsensusOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[o.ProposalID] = o
	return nil
}

func (s *MemoryStore) FindOutcome(_ context.Context, proposalID string) (domain.ConsensusOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.outcomes[proposalID]
	if !ok {
		return domain.ConsensusOutcome{}, ErrNotFound
	}
	return o, nil
}
