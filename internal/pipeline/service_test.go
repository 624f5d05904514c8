package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"agora/internal/agent"
	"agora/internal/domain"
	"agora/internal/events"
	"agora/internal/journal"
	"agora/internal/staking"
	"agora/internal/store"
	domainerrors "agora/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite
	service   *Service
	store     *store.MemoryStore
	registrar *staking.MockRegistrar
	recorder  *events.Recorder
	journal   *journal.Journal
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.store = store.NewMemoryStore()
	s.registrar = &staking.MockRegistrar{}
	s.recorder = &events.Recorder{}
	s.journal = journal.New(100)

	ledger := staking.NewLedger(s.registrar, staking.NewMemorySetStore(), logger)
	evaluator := agent.NewEvaluator(nil, logger)

	s.service = New(
		s.store,
		evaluator,
		agent.DefaultRoster(),
		ledger,
		s.journal,
		logger,
		WithEvents(s.recorder),
	)
}

func (s *ServiceSuite) TestSubmitAssignsIDAndTimestamp() {
	ctx := context.Background()

	p, err := s.service.Submit(ctx, domain.Proposal{Title: "Well repair", Amount: 0.1}, SourceAPI)
	s.Require().NoError(err)
	s.NotEmpty(p.ID)
	s.False(p.SubmittedAt.IsZero())

	stored, err := s.store.FindProposal(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(p.Title, stored.Title)
}

func (s *ServiceSuite) TestSubmitKeepsProvidedID() {
	ctx := context.Background()

	p, err := s.service.Submit(ctx, domain.Proposal{ID: "chain-7", Title: "Well repair"}, SourceChain)
	s.Require().NoError(err)
	s.Equal("chain-7", p.ID)
}

func (s *ServiceSuite) TestSubmitValidation() {
	ctx := context.Background()

	s.Run("missing title", func() {
		_, err := s.service.Submit(ctx, domain.Proposal{Amount: 1}, SourceAPI)
		s.Equal(domainerrors.CodeBadRequest, domainerrors.CodeOf(err))
	})

	s.Run("negative amount", func() {
		_, err := s.service.Submit(ctx, domain.Proposal{Title: "x", Amount: -1}, SourceAPI)
		s.Equal(domainerrors.CodeBadRequest, domainerrors.CodeOf(err))
	})
}

func (s *ServiceSuite) TestEvaluateUnknownProposal() {
	_, err := s.service.Evaluate(context.Background(), "missing")
	s.Equal(domainerrors.CodeNotFound, domainerrors.CodeOf(err))
}

// An urgent, cheap repair touching water infrastructure draws in Risk,
// Community, and Technical and is approved unanimously.
func (s *ServiceSuite) TestEvaluateEmergencyRepairApproved() {
	ctx := context.Background()

	p, err := s.service.Submit(ctx, domain.Proposal{
		Title:       "Emergency Water Pump Repair",
		Description: "Replace the broken water pump serving the east village",
		Amount:      0.05,
	}, SourceAPI)
	s.Require().NoError(err)

	ev, err := s.service.Evaluate(ctx, p.ID)
	s.Require().NoError(err)

	s.ElementsMatch([]string{"RiskBot", "CommunityBot", "TechBot"}, ev.Participants)
	s.Len(ev.Analyses, 3)
	s.Equal(3, ev.Outcome.Considered)
	s.InDelta(100, ev.Outcome.ApprovalRate, 1e-9)
	s.Equal(domain.DecisionApproved, ev.Outcome.Decision)

	stored, err := s.store.FindOutcome(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(domain.DecisionApproved, stored.Decision)
}

// A large speculative project draws only Risk and Finance; Risk stays
// neutral and Finance rejects, so the weighted rate collapses to zero.
func (s *ServiceSuite) TestEvaluateExpensiveResearchRejected() {
	ctx := context.Background()

	p, err := s.service.Submit(ctx, domain.Proposal{
		Title:       "Advanced Quantum Computing Research Lab",
		Description: "A speculative computing facility",
		Amount:      5,
	}, SourceAPI)
	s.Require().NoError(err)

	ev, err := s.service.Evaluate(ctx, p.ID)
	s.Require().NoError(err)

	s.ElementsMatch([]string{"RiskBot", "FinanceBot"}, ev.Participants)
	s.Equal(1, ev.Outcome.Considered)
	s.InDelta(0, ev.Outcome.ApprovalRate, 1e-9)
	s.Equal(domain.DecisionRejected, ev.Outcome.Decision)
}

// When every registration fails, the round runs with no participants and the
// proposal is left unresolved: no outcome is persisted and no consensus event
// is emitted.
func (s *ServiceSuite) TestEvaluateAllRegistrationsFailing() {
	ctx := context.Background()
	s.registrar.Err = fmt.Errorf("chain unavailable")

	p, err := s.service.Submit(ctx, domain.Proposal{Title: "Emergency Water Pump Repair", Amount: 0.05}, SourceAPI)
	s.Require().NoError(err)

	ev, err := s.service.Evaluate(ctx, p.ID)
	s.Require().NoError(err)

	s.Empty(ev.Participants)
	s.Empty(ev.Analyses)
	s.Empty(ev.Outcome.Decision)

	_, err = s.store.FindOutcome(ctx, p.ID)
	s.ErrorIs(err, store.ErrNotFound)

	_, err = s.service.Consensus(ctx, p.ID)
	s.Equal(domainerrors.CodeNotFound, domainerrors.CodeOf(err))

	for _, e := range s.recorder.Recorded() {
		s.NotEqual(events.TypeConsensusReached, e.Type)
	}
}

// All-neutral analyses are a different case: agents did participate, so the
// empty considered set still reduces to a rejection.
func (s *ServiceSuite) TestEvaluateAllNeutralStillRejects() {
	ctx := context.Background()

	// No heuristic keywords and a mid-range amount: Risk and Finance join
	// but both land on neutral.
	p, err := s.service.Submit(ctx, domain.Proposal{Title: "Archive digitization", Amount: 0.75}, SourceAPI)
	s.Require().NoError(err)

	ev, err := s.service.Evaluate(ctx, p.ID)
	s.Require().NoError(err)

	s.NotEmpty(ev.Participants)
	s.Equal(0, ev.Outcome.Considered)
	s.Equal(0.0, ev.Outcome.ApprovalRate)
	s.Equal(domain.DecisionRejected, ev.Outcome.Decision)

	stored, err := s.store.FindOutcome(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(domain.DecisionRejected, stored.Decision)
}

// Re-evaluating the same proposal does not re-register stakes and replaces
// each agent's analysis instead of duplicating it.
func (s *ServiceSuite) TestEvaluateIdempotentRegistration() {
	ctx := context.Background()

	p, err := s.service.Submit(ctx, domain.Proposal{Title: "Emergency Water Pump Repair", Amount: 0.05}, SourceAPI)
	s.Require().NoError(err)

	_, err = s.service.Evaluate(ctx, p.ID)
	s.Require().NoError(err)
	firstCalls := len(s.registrar.Calls())

	ev, err := s.service.Evaluate(ctx, p.ID)
	s.Require().NoError(err)

	s.Equal(firstCalls, len(s.registrar.Calls()))
	s.Len(ev.Analyses, 3)

	recorded, err := s.store.ListAnalyses(ctx, p.ID)
	s.Require().NoError(err)
	s.Len(recorded, 3)
}

func (s *ServiceSuite) TestEvaluateEmitsEvents() {
	ctx := context.Background()

	p, err := s.service.Submit(ctx, domain.Proposal{Title: "Emergency Water Pump Repair", Amount: 0.05}, SourceAPI)
	s.Require().NoError(err)
	_, err = s.service.Evaluate(ctx, p.ID)
	s.Require().NoError(err)

	byType := map[string]int{}
	for _, e := range s.recorder.Recorded() {
		byType[e.Type]++
	}
	s.Equal(1, byType[events.TypeProposalSubmitted])
	s.Equal(3, byType[events.TypeAgentRegistered])
	s.Equal(3, byType[events.TypeAnalysisRecorded])
	s.Equal(1, byType[events.TypeConsensusReached])
}

func (s *ServiceSuite) TestConsensusBeforeAnalysis() {
	ctx := context.Background()

	p, err := s.service.Submit(ctx, domain.Proposal{Title: "Well repair"}, SourceAPI)
	s.Require().NoError(err)

	_, err = s.service.Consensus(ctx, p.ID)
	s.Equal(domainerrors.CodeNotFound, domainerrors.CodeOf(err))
}

func (s *ServiceSuite) TestConsensusUnknownProposal() {
	_, err := s.service.Consensus(context.Background(), "missing")
	s.Equal(domainerrors.CodeNotFound, domainerrors.CodeOf(err))
}

func (s *ServiceSuite) TestConsensusComputedOnReadFromRecordedAnalyses() {
	ctx := context.Background()

	p, err := s.service.Submit(ctx, domain.Proposal{Title: "Well repair"}, SourceAPI)
	s.Require().NoError(err)

	// Analyses on record without a persisted outcome.
	s.Require().NoError(s.store.SaveAnalysis(ctx, domain.AnalysisResult{
		ProposalID:     p.ID,
		Agent:          "RiskBot",
		Recommendation: domain.RecommendApprove,
		Confidence:     80,
	}))

	outcome, err := s.service.Consensus(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(domain.DecisionApproved, outcome.Decision)

	// Now persisted.
	stored, err := s.store.FindOutcome(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(outcome.Decision, stored.Decision)
}

func (s *ServiceSuite) TestDemoRunsBothSeeds() {
	ctx := context.Background()

	evs, err := s.service.Demo(ctx)
	s.Require().NoError(err)
	s.Require().Len(evs, 2)

	s.Equal("Emergency Water Pump Repair", evs[0].Proposal.Title)
	s.Equal(domain.DecisionApproved, evs[0].Outcome.Decision)
	s.Equal("Solar Panel Installation for School", evs[1].Proposal.Title)
	s.Equal(domain.DecisionApproved, evs[1].Outcome.Decision)

	s.Greater(s.journal.Len(), 0)
}

func (s *ServiceSuite) TestProposalWithAnalyses() {
	ctx := context.Background()

	p, err := s.service.Submit(ctx, domain.Proposal{Title: "Emergency Water Pump Repair", Amount: 0.05}, SourceAPI)
	s.Require().NoError(err)
	_, err = s.service.Evaluate(ctx, p.ID)
	s.Require().NoError(err)

	got, analyses, err := s.service.Proposal(ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(p.ID, got.ID)
	s.Len(analyses, 3)
}
