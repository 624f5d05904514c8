// Package chain polls an external proposal feed and pushes new proposals
// through the evaluation pipeline.
package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"agora/internal/domain"
)

// Feed exposes the on-chain proposal registry. IDs are sequential and
// 1-based; ProposalCount returns the newest ID.
type Feed interface {
	ProposalCount(ctx context.Context) (int, error)
	Proposal(ctx context.Context, id int) (domain.Proposal, error)
}

// HTTPFeed reads the registry over a JSON HTTP gateway.
type HTTPFeed struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPFeed creates a feed client for the given gateway base URL.
func NewHTTPFeed(baseURL string) *HTTPFeed {
	return &HTTPFeed{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (f *HTTPFeed) ProposalCount(ctx context.Context) (int, error) {
	var payload struct {
		Count int `json:"count"`
	}
	if err := f.getJSON(ctx, f.baseURL+"/proposals/count", &payload); err != nil {
		return 0, fmt.Errorf("fetch proposal count: %w", err)
	}
	return payload.Count, nil
}

func (f *HTTPFeed) Proposal(ctx context.Context, id int) (domain.Proposal, error) {
	var payload struct {
		Title       string  `json:"title"`
		Description string  `json:"description"`
		Amount      float64 `json:"amount"`
		Category    string  `json:"category"`
		Urgency     string  `json:"urgency"`
		Submitter   string  `json:"submitter"`
		Recipient   string  `json:"recipient"`
	}
	if err := f.getJSON(ctx, fmt.Sprintf("%s/proposals/%d", f.baseURL, id), &payload); err != nil {
		return domain.Proposal{}, fmt.Errorf("fetch proposal %d: %w", id, err)
	}
	return domain.Proposal{
		ID:          strconv.Itoa(id),
		Title:       payload.Title,
		Description: payload.Description,
		Amount:      payload.Amount,
		Category:    payload.Category,
		Urgency:     payload.Urgency,
		Submitter:   payload.Submitter,
		Recipient:   payload.Recipient,
	}, nil
}

func (f *HTTPFeed) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// MockFeed is an in-memory Feed for tests.
type MockFeed struct {
	mu        sync.Mutex
	count     int
	proposals map[int]domain.Proposal
	countErr  error
}

// NewMockFeed creates an empty mock feed.
func NewMockFeed() *MockFeed {
	return &MockFeed{proposals: make(map[int]domain.Proposal)}
}

// Append adds a proposal as the next sequential ID and returns that ID.
func (f *MockFeed) Append(p domain.Proposal) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count++
	p.ID = strconv.Itoa(f.count)
	f.proposals[f.count] = p
	return f.count
}

// FailCount makes ProposalCount return the given error.
func (f *MockFeed) FailCount(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countErr = err
}

func (f *MockFeed) ProposalCount(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.count, nil
}

func (f *MockFeed) Proposal(_ context.Context, id int) (domain.Proposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.proposals[id]
	if !ok {
		return domain.Proposal{}, fmt.Errorf("no proposal %d", id)
	}
	return p, nil
}
