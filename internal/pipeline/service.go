// Package pipeline orchestrates the proposal evaluation flow: submission,
// relevance filtering, stake registration, parallel analysis, and weighted
// consensus.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"agora/internal/agent"
	"agora/internal/consensus"
	"agora/internal/domain"
	"agora/internal/events"
	"agora/internal/journal"
	"agora/internal/pipeline/metrics"
	"agora/internal/staking"
	"agora/internal/store"
	domainerrors "agora/pkg/domain-errors"
)

// Proposal sources, used for metrics labels.
const (
	SourceAPI   = "api"
	SourceChain = "chain"
	SourceDemo  = "demo"
)

// Evaluation is the result of running one proposal through the pipeline.
type Evaluation struct {
	Proposal     domain.Proposal
	Participants []string
	Analyses     []domain.AnalysisResult
	Outcome      domain.ConsensusOutcome
}

// Service runs the evaluation pipeline.
type Service struct {
	store     store.Store
	evaluator *agent.Evaluator
	roster    []agent.Agent
	ledger    *staking.Ledger
	journal   *journal.Journal
	events    events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithEvents sets the pipeline event publisher.
func WithEvents(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// New creates a pipeline Service.
func New(
	st store.Store,
	evaluator *agent.Evaluator,
	roster []agent.Agent,
	ledger *staking.Ledger,
	jrnl *journal.Journal,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		store:     st,
		evaluator: evaluator,
		roster:    roster,
		ledger:    ledger,
		journal:   jrnl,
		events:    events.NopPublisher{},
		logger:    logger,
		tracer:    otel.Tracer("agora/pipeline"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit accepts a proposal into the pipeline. A missing ID is assigned and
// a missing submission time is stamped; the proposal is persisted as-is
// otherwise.
func (s *Service) Submit(ctx context.Context, p domain.Proposal, source string) (domain.Proposal, error) {
	if p.Title == "" {
		return domain.Proposal{}, domainerrors.New(domainerrors.CodeBadRequest, "proposal title is required")
	}
	if p.Amount < 0 {
		return domain.Proposal{}, domainerrors.New(domainerrors.CodeBadRequest, "proposal amount cannot be negative")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.SubmittedAt.IsZero() {
		p.SubmittedAt = time.Now()
	}

	if err := s.store.SaveProposal(ctx, p); err != nil {
		return domain.Proposal{}, fmt.Errorf("saving proposal: %w", err)
	}

	s.metrics.IncProposalsSubmitted(source)
	s.journal.Infof("New proposal: %s (%g units)", p.Title, p.Amount)
	s.logger.InfoContext(ctx, "proposal submitted",
		"proposal_id", p.ID,
		"title", p.Title,
		"amount", p.Amount,
		"source", source,
	)
	s.events.Emit(ctx, events.Event{Type: events.TypeProposalSubmitted, ProposalID: p.ID})

	return p, nil
}

// Evaluate runs the full pipeline for a previously submitted proposal:
// relevance filtering across the roster, stake registration for the
// participants, parallel analysis, and consensus reduction. The outcome is
// persisted and returned. A round with no participants and nothing on record
// leaves the proposal unresolved: no outcome is computed or stored.
func (s *Service) Evaluate(ctx context.Context, proposalID string) (Evaluation, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.evaluate",
		trace.WithAttributes(attribute.String("proposal.id", proposalID)))
	defer span.End()

	start := time.Now()

	p, err := s.store.FindProposal(ctx, proposalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Evaluation{}, domainerrors.New(domainerrors.CodeNotFound, "proposal not found")
		}
		return Evaluation{}, fmt.Errorf("loading proposal: %w", err)
	}

	admitted := s.admit(ctx, p)
	s.metrics.ObserveParticipants(len(admitted))

	analyses, err := s.analyze(ctx, p, admitted)
	if err != nil {
		return Evaluation{}, err
	}

	// Reduce over everything on record for the proposal, so a re-evaluation
	// that changed the participant set still counts earlier rounds' results.
	recorded, err := s.store.ListAnalyses(ctx, p.ID)
	if err != nil {
		return Evaluation{}, fmt.Errorf("loading analyses: %w", err)
	}

	// Nobody joined and nothing was ever analyzed: the consensus step is
	// skipped and the proposal stays unresolved. The rejected-by-default rule
	// covers only an empty considered set after agents actually analyzed.
	if len(admitted) == 0 && len(recorded) == 0 {
		s.metrics.ObserveEvaluateDuration(time.Since(start))
		s.journal.Warnf("%s left unresolved: no analyses on record", p.Title)
		s.logger.InfoContext(ctx, "evaluation ended without participants",
			"proposal_id", p.ID,
		)
		return Evaluation{Proposal: p}, nil
	}

	outcome := consensus.Reduce(p.ID, recorded)
	if err := s.store.SaveOutcome(ctx, outcome); err != nil {
		return Evaluation{}, fmt.Errorf("saving outcome: %w", err)
	}

	s.metrics.IncEvaluations(string(outcome.Decision))
	s.metrics.ObserveEvaluateDuration(time.Since(start))
	s.journal.Infof("Consensus on %s: %s (%.0f%% approval, %d considered)",
		p.Title, outcome.Decision, outcome.ApprovalRate, outcome.Considered)
	s.logger.InfoContext(ctx, "evaluation complete",
		"proposal_id", p.ID,
		"decision", outcome.Decision,
		"approval_rate", outcome.ApprovalRate,
		"participants", len(admitted),
	)
	s.events.Emit(ctx, events.Event{
		Type:       events.TypeConsensusReached,
		ProposalID: p.ID,
		Decision:   string(outcome.Decision),
	})

	names := make([]string, len(admitted))
	for i, a := range admitted {
		names[i] = a.Name
	}
	return Evaluation{Proposal: p, Participants: names, Analyses: analyses, Outcome: outcome}, nil
}

// admit filters the roster by relevance in parallel, then registers stakes
// sequentially in roster order. A registration failure excludes that agent
// from the round and is not retried.
func (s *Service) admit(ctx context.Context, p domain.Proposal) []agent.Agent {
	ctx, span := s.tracer.Start(ctx, "pipeline.admit")
	defer span.End()

	relevant := make([]bool, len(s.roster))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range s.roster {
		g.Go(func() error {
			relevant[i] = s.evaluator.Relevance(gctx, a, p)
			return nil
		})
	}
	// Relevance never fails; degraded oracles fall back internally.
	_ = g.Wait()

	var admitted []agent.Agent
	for i, a := range s.roster {
		if !relevant[i] {
			continue
		}
		if err := s.ledger.EnsureRegistered(ctx, p.ID, a.Name); err != nil {
			s.journal.Warnf("%s excluded from %s: registration failed", a.Name, p.Title)
			continue
		}
		admitted = append(admitted, a)
		s.journal.Infof("%s joined evaluation of %s", a.Name, p.Title)
		s.events.Emit(ctx, events.Event{Type: events.TypeAgentRegistered, ProposalID: p.ID, Agent: a.Name})
	}

	if len(admitted) == 0 {
		s.journal.Warnf("No agents participating in %s", p.Title)
	}
	return admitted
}

// analyze fans the admitted agents out in parallel and records each result.
func (s *Service) analyze(ctx context.Context, p domain.Proposal, admitted []agent.Agent) ([]domain.AnalysisResult, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.analyze",
		trace.WithAttributes(attribute.Int("participants", len(admitted))))
	defer span.End()

	analyses := make([]domain.AnalysisResult, len(admitted))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range admitted {
		g.Go(func() error {
			res := s.evaluator.Analyze(gctx, a, p)
			if err := s.store.SaveAnalysis(gctx, res); err != nil {
				return fmt.Errorf("saving analysis from %s: %w", a.Name, err)
			}
			analyses[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, res := range analyses {
		s.journal.Infof("%s: %s (%.0f%% confidence)", res.Agent, res.Recommendation, res.Confidence)
		s.events.Emit(ctx, events.Event{Type: events.TypeAnalysisRecorded, ProposalID: p.ID, Agent: res.Agent})
	}
	return analyses, nil
}

// Consensus returns the recorded outcome for a proposal. When analyses exist
// but no outcome has been persisted yet, it is computed and stored on read.
func (s *Service) Consensus(ctx context.Context, proposalID string) (domain.ConsensusOutcome, error) {
	outcome, err := s.store.FindOutcome(ctx, proposalID)
	if err == nil {
		return outcome, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.ConsensusOutcome{}, fmt.Errorf("loading outcome: %w", err)
	}

	if _, err := s.store.FindProposal(ctx, proposalID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ConsensusOutcome{}, domainerrors.New(domainerrors.CodeNotFound, "proposal not found")
		}
		return domain.ConsensusOutcome{}, fmt.Errorf("loading proposal: %w", err)
	}

	recorded, err := s.store.ListAnalyses(ctx, proposalID)
	if err != nil {
		return domain.ConsensusOutcome{}, fmt.Errorf("loading analyses: %w", err)
	}
	if len(recorded) == 0 {
		return domain.ConsensusOutcome{}, domainerrors.New(domainerrors.CodeNotFound, "consensus not computed yet")
	}

	outcome = consensus.Reduce(proposalID, recorded)
	if err := s.store.SaveOutcome(ctx, outcome); err != nil {
		return domain.ConsensusOutcome{}, fmt.Errorf("saving outcome: %w", err)
	}
	return outcome, nil
}

// Proposal returns a submitted proposal with its recorded analyses.
func (s *Service) Proposal(ctx context.Context, proposalID string) (domain.Proposal, []domain.AnalysisResult, error) {
	p, err := s.store.FindProposal(ctx, proposalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Proposal{}, nil, domainerrors.New(domainerrors.CodeNotFound, "proposal not found")
		}
		return domain.Proposal{}, nil, fmt.Errorf("loading proposal: %w", err)
	}
	analyses, err := s.store.ListAnalyses(ctx, proposalID)
	if err != nil {
		return domain.Proposal{}, nil, fmt.Errorf("loading analyses: %w", err)
	}
	return p, analyses, nil
}

// Proposals lists all submitted proposals, newest first.
func (s *Service) Proposals(ctx context.Context) ([]domain.Proposal, error) {
	return s.store.ListProposals(ctx)
}

// Process submits and immediately evaluates a proposal. Used by the chain
// watcher and the demo seeder.
func (s *Service) Process(ctx context.Context, p domain.Proposal, source string) (Evaluation, error) {
	saved, err := s.Submit(ctx, p, source)
	if err != nil {
		return Evaluation{}, err
	}
	return s.Evaluate(ctx, saved.ID)
}

// Demo runs two canned proposals through the full pipeline.
func (s *Service) Demo(ctx context.Context) ([]Evaluation, error) {
	seeds := []domain.Proposal{
		{
			Title:       "Emergency Water Pump Repair",
			Description: "Replace the broken water pump serving the east village",
			Amount:      0.05,
			Category:    "infrastructure",
			Urgency:     "high",
		},
		{
			Title:       "Solar Panel Installation for School",
			Description: "Install rooftop solar panels on the primary school",
			Amount:      1.25,
			Category:    "energy",
			Urgency:     "normal",
		},
	}

	out := make([]Evaluation, 0, len(seeds))
	for _, seed := range seeds {
		ev, err := s.Process(ctx, seed, SourceDemo)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// Roster returns the configured agent panel.
func (s *Service) Roster() []agent.Agent {
	return s.roster
}
