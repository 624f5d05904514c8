// Package staking tracks which agents have registered a virtual stake on a
// proposal. Registration is idempotent per (agent, proposal) pair and a
// failed registration excludes the agent from that round without retry.
package staking

import (
	"context"
	"sync"
)

// SetStore persists registration membership per proposal.
type SetStore interface {
	// Add records the agent as registered for the proposal. It reports
	// whether the membership was newly created.
	Add(ctx context.Context, proposalID, agent string) (bool, error)

	// Contains reports whether the agent is registered for the proposal.
	Contains(ctx context.Context, proposalID, agent string) (bool, error)

	// Members lists the agents registered for the proposal.
	Members(ctx context.Context, proposalID string) ([]string, error)
}

// MemorySetStore is an in-memory SetStore safe for concurrent use.
type MemorySetStore struct {
	mu   sync.RWMutex
	sets map[string]map[string]struct{}
}

// NewMemorySetStore creates an empty in-memory membership store.
func NewMemorySetStore() *MemorySetStore {
	return &MemorySetStore{sets: make(map[string]map[string]struct{})}
}

func (s *MemorySetStore) Add(_ context.Context, proposalID, agent string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[proposalID]
	if !ok {
		set = make(map[string]struct{})
		s.sets[proposalID] = set
	}
	if _, exists := set[agent]; exists {
		return false, nil
	}
	set[agent] = struct{}{}
	return true, nil
}

func (s *MemorySetStore) Contains(_ context.Context, proposalID, agent string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.sets[proposalID][agent]
	return ok, nil
}

func (s *MemorySetStore) Members(_ context.Context, proposalID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := make([]string, 0, len(s.sets[proposalID]))
	for agent := range s.sets[proposalID] {
		members = append(members, agent)
	}
	return members, nil
}
