package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agora/internal/agent"
	"agora/internal/journal"
	"agora/internal/pipeline"
	"agora/internal/pipeline/handler"
	"agora/internal/staking"
	"agora/internal/store"
)

func newTestRouter(t *testing.T) (*chi.Mux, *journal.Journal) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jrnl := journal.New(100)

	ledger := staking.NewLedger(staking.NewVirtualRegistrar(logger), staking.NewMemorySetStore(), logger)
	svc := pipeline.New(
		store.NewMemoryStore(),
		agent.NewEvaluator(nil, logger),
		agent.DefaultRoster(),
		ledger,
		jrnl,
		logger,
	)

	r := chi.NewRouter()
	handler.New(svc, jrnl, logger).Register(r)
	return r, jrnl
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSubmitProposal(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/proposals", handler.SubmitProposalRequest{
		Title:  "Emergency Water Pump Repair",
		Amount: 0.05,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp handler.ProposalResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "Emergency Water Pump Repair", resp.Title)
	assert.False(t, resp.SubmittedAt.IsZero())
}

func TestSubmitProposalInvalidBody(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/proposals", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitProposalMissingTitle(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/proposals", handler.SubmitProposalRequest{Amount: 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUnknownProposal(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/proposals/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyzeFlow(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/proposals", handler.SubmitProposalRequest{
		Title:  "Emergency Water Pump Repair",
		Amount: 0.05,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created handler.ProposalResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	// Consensus is unknown until an evaluation runs.
	rec = doJSON(t, router, http.MethodGet, "/proposals/"+created.ID+"/consensus", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/proposals/"+created.ID+"/analyze", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var ev handler.EvaluationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ev))
	require.NotNil(t, ev.Consensus)
	assert.Equal(t, "APPROVED", ev.Consensus.Decision)
	assert.Len(t, ev.Analyses, 3)
	assert.ElementsMatch(t, []string{"RiskBot", "CommunityBot", "TechBot"}, ev.Participants)

	rec = doJSON(t, router, http.MethodGet, "/proposals/"+created.ID+"/consensus", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var consensus handler.ConsensusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &consensus))
	assert.Equal(t, "APPROVED", consensus.Decision)
	assert.Equal(t, 3, consensus.Considered)

	rec = doJSON(t, router, http.MethodGet, "/proposals/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail handler.ProposalDetailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Len(t, detail.Analyses, 3)
}

func TestAnalyzeUnknownProposal(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/proposals/nope/analyze", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDemo(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/demo", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var evs []handler.EvaluationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &evs))
	require.Len(t, evs, 2)
	assert.Equal(t, "Emergency Water Pump Repair", evs[0].Proposal.Title)
	assert.Equal(t, "Solar Panel Installation for School", evs[1].Proposal.Title)
}

func TestLogs(t *testing.T) {
	router, jrnl := newTestRouter(t)
	jrnl.Infof("first")
	jrnl.Infof("second")
	jrnl.Infof("third")

	rec := doJSON(t, router, http.MethodGet, "/logs?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []handler.JournalEntryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].Message)
	assert.Equal(t, "third", entries[1].Message)
}

func TestLogsBadParams(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/logs?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/logs?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatus(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status handler.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "running", status.Status)
	assert.Len(t, status.Agents, 4)
}
