package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"agora/internal/domain"
)

// PostgresStore persists pipeline records in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the given database and returns a Store backed
// by it.
func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema creates the tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS proposals (
			id           TEXT PRIMARY KEY,
			title        TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			amount       DOUBLE PRECISION NOT NULL DEFAULT 0,
			category     TEXT NOT NULL DEFAULT '',
			urgency      TEXT NOT NULL DEFAULT '',
			submitter    TEXT NOT NULL DEFAULT '',
			recipient    TEXT NOT NULL DEFAULT '',
			submitted_at TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS analyses (
			proposal_id    TEXT NOT NULL REFERENCES proposals(id),
			agent          TEXT NOT NULL,
			specialization TEXT NOT NULL,
			recommendation INT NOT NULL,
			confidence     DOUBLE PRECISION NOT NULL,
			reasoning      TEXT NOT NULL DEFAULT '',
			analyzed_at    TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (proposal_id, agent)
		);

		CREATE TABLE IF NOT EXISTS outcomes (
			proposal_id   TEXT PRIMARY KEY REFERENCES proposals(id),
			considered    INT NOT NULL,
			approval_rate DOUBLE PRECISION NOT NULL,
			decision      TEXT NOT NULL,
			computed_at   TIMESTAMPTZ NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) SaveProposal(ctx context.Context, p domain.Proposal) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO proposals (id, title, description, amount, category, urgency, submitter, recipient, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			amount = EXCLUDED.amount,
			category = EXCLUDED.category,
			urgency = EXCLUDED.urgency,
			submitter = EXCLUDED.submitter,
			recipient = EXCLUDED.recipient,
			submitted_at = EXCLUDED.submitted_at
	`, p.ID, p.Title, p.Description, p.Amount, p.Category, p.Urgency, p.Submitter, p.Recipient, p.SubmittedAt)
	if err != nil {
		return fmt.Errorf("save proposal: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindProposal(ctx context.Context, id string) (domain.Proposal, error) {
	var p domain.Proposal
	err := s.pool.QueryRow(ctx, `
		SELECT id, title, description, amount, category, urgency, submitter, recipient, submitted_at
		FROM proposals WHERE id = $1
	`, id).Scan(&p.ID, &p.Title, &p.Description, &p.Amount, &p.Category, &p.Urgency, &p.Submitter, &p.Recipient, &p.SubmittedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Proposal{}, ErrNotFound
		}
		return domain.Proposal{}, fmt.Errorf("find proposal: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListProposals(ctx context.Context) ([]domain.Proposal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, description, amount, category, urgency, submitter, recipient, submitted_at
		FROM proposals ORDER BY submitted_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()

	var out []domain.Proposal
	for rows.Next() {
		var p domain.Proposal
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Amount, &p.Category, &p.Urgency, &p.Submitter, &p.Recipient, &p.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SaveAnalysis(ctx context.Context, r domain.AnalysisResult) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO analyses (proposal_id, agent, specialization, recommendation, confidence, reasoning, analyzed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (proposal_id, agent) DO UPDATE SET
			specialization = EXCLUDED.specialization,
			recommendation = EXCLUDED.recommendation,
			confidence = EXCLUDED.confidence,
			reasoning = EXCLUDED.reasoning,
			analyzed_at = EXCLUDED.analyzed_at
	`, r.ProposalID, r.Agent, r.Specialization, int(r.Recommendation), r.Confidence, r.Reasoning, r.AnalyzedAt)
	if err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAnalyses(ctx context.Context, proposalID string) ([]domain.AnalysisResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT proposal_id, agent, specialization, recommendation, confidence, reasoning, analyzed_at
		FROM analyses WHERE proposal_id = $1 ORDER BY agent
	`, proposalID)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var out []domain.AnalysisResult
	for rows.Next() {
		var (
			r   domain.AnalysisResult
			rec int
		)
		if err := rows.Scan(&r.ProposalID, &r.Agent, &r.Specialization, &rec, &r.Confidence, &r.Reasoning, &r.AnalyzedAt); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		r.Recommendation = domain.Recommendation(rec)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SaveOutcome(ctx context.Context, o domain.ConsensusOutcome) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO outcomes (proposal_id, considered, approval_rate, decision, computed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (proposal_id) DO UPDATE SET
			considered = EXCLUDED.considered,
			approval_rate = EXCLUDED.approval_rate,
			decision = EXCLUDED.decision,
			computed_at = EXCLUDED.computed_at
	`, o.ProposalID, o.Considered, o.ApprovalRate, string(o.Decision), o.ComputedAt)
	if err != nil {
		return fmt.Errorf("save outcome: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindOutcome(ctx context.Context, proposalID string) (domain.ConsensusOutcome, error) {
	var (
		o        domain.ConsensusOutcome
		decision string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT proposal_id, considered, approval_rate, decision, computed_at
		FROM outcomes WHERE proposal_id = $1
	`, proposalID).Scan(&o.ProposalID, &o.Considered, &o.ApprovalRate, &decision, &o.ComputedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ConsensusOutcome{}, ErrNotFound
		}
		return domain.ConsensusOutcome{}, fmt.Errorf("find outcome: %w", err)
	}
	o.Decision = domain.Decision(decision)
	return o, nil
}
