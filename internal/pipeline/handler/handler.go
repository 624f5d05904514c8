// Package handler exposes the evaluation pipeline over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"agora/internal/agent"
	"agora/internal/domain"
	"agora/internal/journal"
	"agora/internal/pipeline"
	domainerrors "agora/pkg/domain-errors"
	"agora/pkg/platform/httputil"
)

// Service defines the pipeline operations the handler depends on.
type Service interface {
	Submit(ctx context.Context, p domain.Proposal, source string) (domain.Proposal, error)
	Evaluate(ctx context.Context, proposalID string) (pipeline.Evaluation, error)
	Consensus(ctx context.Context, proposalID string) (domain.ConsensusOutcome, error)
	Proposal(ctx context.Context, proposalID string) (domain.Proposal, []domain.AnalysisResult, error)
	Proposals(ctx context.Context) ([]domain.Proposal, error)
	Demo(ctx context.Context) ([]pipeline.Evaluation, error)
	Roster() []agent.Agent
}

// Handler wires pipeline endpoints to the pipeline service.
type Handler struct {
	service Service
	journal *journal.Journal
	logger  *slog.Logger
	started time.Time
}

// New constructs a pipeline handler with its dependencies.
func New(service Service, jrnl *journal.Journal, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		journal: jrnl,
		logger:  logger,
		started: time.Now(),
	}
}

// Register mounts all pipeline endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	h.RegisterReads(r)
	h.RegisterWrites(r)
}

// RegisterReads mounts the read-only endpoints.
func (h *Handler) RegisterReads(r chi.Router) {
	r.Get("/proposals", h.HandleList)
	r.Get("/proposals/{id}", h.HandleGet)
	r.Get("/proposals/{id}/consensus", h.HandleConsensus)
	r.Get("/logs", h.HandleLogs)
	r.Get("/status", h.HandleStatus)
}

// RegisterWrites mounts the mutating endpoints, which may sit behind auth.
func (h *Handler) RegisterWrites(r chi.Router) {
	r.Post("/proposals", h.HandleSubmit)
	r.Post("/proposals/{id}/analyze", h.HandleAnalyze)
	r.Post("/demo", h.HandleDemo)
}

// HandleSubmit handles POST /proposals requests.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SubmitProposalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, domainerrors.New(domainerrors.CodeBadRequest, "invalid JSON body"))
		return
	}

	p, err := h.service.Submit(ctx, req.ToProposal(), pipeline.SourceAPI)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, fromProposal(p))
}

// HandleList handles GET /proposals requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	proposals, err := h.service.Proposals(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "listing proposals failed", "error", err)
		httputil.WriteError(w, err)
		return
	}

	out := make([]ProposalResponse, len(proposals))
	for i, p := range proposals {
		out[i] = fromProposal(p)
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleGet handles GET /proposals/{id} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, analyses, err := h.service.Proposal(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ProposalDetailResponse{
		Proposal: fromProposal(p),
		Analyses: fromAnalyses(analyses),
	})
}

// HandleAnalyze handles POST /proposals/{id}/analyze requests. It runs the
// full evaluation round and returns the resulting consensus.
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	start := time.Now()

	ev, err := h.service.Evaluate(ctx, id)
	if err != nil {
		h.logger.ErrorContext(ctx, "evaluation failed", "proposal_id", id, "error", err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "evaluation requested",
		"proposal_id", id,
		"decision", ev.Outcome.Decision,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, fromEvaluation(ev))
}

// HandleConsensus handles GET /proposals/{id}/consensus requests.
func (h *Handler) HandleConsensus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	outcome, err := h.service.Consensus(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, fromOutcome(outcome))
}

// HandleDemo handles POST /demo requests.
func (h *Handler) HandleDemo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	evs, err := h.service.Demo(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "demo run failed", "error", err)
		httputil.WriteError(w, err)
		return
	}

	out := make([]EvaluationResponse, len(evs))
	for i, ev := range evs {
		out[i] = fromEvaluation(ev)
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleLogs handles GET /logs requests. Supports ?limit=N and ?since=RFC3339.
func (h *Handler) HandleLogs(w http.ResponseWriter, r *http.Request) {
	var entries []journal.Entry

	if sinceStr := r.URL.Query().Get("since"); sinceStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			httputil.WriteError(w, domainerrors.New(domainerrors.CodeBadRequest, "since must be RFC3339"))
			return
		}
		entries = h.journal.Since(since)
	} else {
		limit := 0
		if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
			n, err := strconv.Atoi(limitStr)
			if err != nil || n < 0 {
				httputil.WriteError(w, domainerrors.New(domainerrors.CodeBadRequest, "limit must be a non-negative integer"))
				return
			}
			limit = n
		}
		entries = h.journal.Tail(limit)
	}

	httputil.WriteJSON(w, http.StatusOK, fromJournal(entries))
}

// HandleStatus handles GET /status requests.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	proposals, err := h.service.Proposals(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, StatusResponse{
		Status:    "running",
		Agents:    fromRoster(h.service.Roster()),
		Proposals: len(proposals),
		LogSize:   h.journal.Len(),
		UptimeSec: int64(time.Since(h.started).Seconds()),
	})
}
