package staking

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Ledger coordinates stake registration. A pair already present in the store
// is never re-registered, and concurrent attempts for the same pair collapse
// into a single registrar call.
type Ledger struct {
	registrar Registrar
	store     SetStore
	logger    *slog.Logger

	mu      sync.Mutex
	pending map[string]chan struct{}
}

// NewLedger creates a Ledger over the given registrar and store.
func NewLedger(registrar Registrar, store SetStore, logger *slog.Logger) *Ledger {
	return &Ledger{
		registrar: registrar,
		store:     store,
		logger:    logger,
		pending:   make(map[string]chan struct{}),
	}
}

// EnsureRegistered registers the agent's stake on the proposal unless it is
// already registered. A registrar failure is returned to the caller as-is;
// the agent is simply not recorded and no retry is attempted.
func (l *Ledger) EnsureRegistered(ctx context.Context, proposalID, agent string) error {
	registered, err := l.store.Contains(ctx, proposalID, agent)
	if err != nil {
		return fmt.Errorf("checking registration: %w", err)
	}
	if registered {
		return nil
	}

	key := proposalID + "\x00" + agent
	for {
		l.mu.Lock()
		wait, inFlight := l.pending[key]
		if !inFlight {
			done := make(chan struct{})
			l.pending[key] = done
			l.mu.Unlock()
			return l.register(ctx, proposalID, agent, key, done)
		}
		l.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}

		registered, err := l.store.Contains(ctx, proposalID, agent)
		if err != nil {
			return fmt.Errorf("checking registration: %w", err)
		}
		if registered {
			return nil
		}
		// The in-flight attempt failed; take our own turn.
	}
}

func (l *Ledger) register(ctx context.Context, proposalID, agent, key string, done chan struct{}) error {
	defer func() {
		l.mu.Lock()
		delete(l.pending, key)
		l.mu.Unlock()
		close(done)
	}()

	if err := l.registrar.Register(ctx, proposalID, agent); err != nil {
		l.logger.WarnContext(ctx, "stake registration failed, excluding agent",
			"agent", agent,
			"proposal_id", proposalID,
			"error", err,
		)
		return fmt.Errorf("registering stake: %w", err)
	}

	if _, err := l.store.Add(ctx, proposalID, agent); err != nil {
		return fmt.Errorf("recording registration: %w", err)
	}
	return nil
}

// Registered lists the agents currently registered for the proposal.
func (l *Ledger) Registered(ctx context.Context, proposalID string) ([]string, error) {
	return l.store.Members(ctx, proposalID)
}
