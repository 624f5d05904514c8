package staking

import (
	"context"
	"log/slog"
	"sync"
)

// Registrar performs the act of registering an agent's stake on a proposal.
type Registrar interface {
	Register(ctx context.Context, proposalID, agent string) error
}

// VirtualRegistrar registers stakes in name only. It always succeeds and
// exists so the pipeline exercises the same code path a real on-chain
// registrar would.
type VirtualRegistrar struct {
	logger *slog.Logger
}

// NewVirtualRegistrar creates a registrar that records nothing externally.
func NewVirtualRegistrar(logger *slog.Logger) *VirtualRegistrar {
	return &VirtualRegistrar{logger: logger}
}

func (r *VirtualRegistrar) Register(ctx context.Context, proposalID, agent string) error {
	r.logger.InfoContext(ctx, "virtual stake registered",
		"agent", agent,
		"proposal_id", proposalID,
	)
	return nil
}

// MockRegistrar is a test double with injectable failures.
type MockRegistrar struct {
	mu    sync.Mutex
	Err   error
	calls []string
}

func (r *MockRegistrar) Register(_ context.Context, proposalID, agent string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, agent+":"+proposalID)
	return r.Err
}

// Calls returns the registration attempts seen so far.
func (r *MockRegistrar) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}
