package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"agora/internal/domain"
)

// relevanceThreshold is fixed: an agent participates only when its score is
// strictly greater than 6.
const relevanceThreshold = 6

// Relevance decides whether the agent should participate in evaluating the
// proposal. The oracle is asked for a single 1-10 score; any failure or
// unparseable reply degrades to the deterministic per-specialization rule.
// Pure apart from the oracle call: no side effects.
func (e *Evaluator) Relevance(ctx context.Context, a Agent, p domain.Proposal) bool {
	score := e.relevanceScore(ctx, a, p)
	e.metrics.ObserveRelevanceScore(string(a.Specialization), score)

	participate := score > relevanceThreshold
	e.logger.InfoContext(ctx, "relevance evaluated",
		"agent", a.Name,
		"proposal_id", p.ID,
		"score", score,
		"participate", participate,
	)
	return participate
}

func (e *Evaluator) relevanceScore(ctx context.Context, a Agent, p domain.Proposal) int {
	if e.oracle == nil {
		return fallbackRelevance(a.Specialization, p)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	system := fmt.Sprintf("You are a %s agent. Rate relevance 1-10. Reply only the number.", a.Specialization)
	reply, err := e.oracle.Complete(ctx, system, proposalSummary(p))
	if err != nil {
		e.logger.WarnContext(ctx, "oracle relevance call failed, using fallback",
			"agent", a.Name,
			"proposal_id", p.ID,
			"error", err,
		)
		e.metrics.IncOracleFallback("relevance")
		return fallbackRelevance(a.Specialization, p)
	}

	score, ok := parseLeadingInt(reply)
	if !ok {
		e.logger.WarnContext(ctx, "oracle relevance reply unparseable, using fallback",
			"agent", a.Name,
			"proposal_id", p.ID,
			"reply", reply,
		)
		e.metrics.IncOracleFallback("relevance")
		return fallbackRelevance(a.Specialization, p)
	}

	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}
	return score
}

// fallbackRelevance is the deterministic rule path. Scores are fixed per
// specialization and proposal content; no randomness.
func fallbackRelevance(spec domain.Specialization, p domain.Proposal) int {
	text := strings.ToLower(p.Title + " " + p.Description)
	switch spec {
	case domain.SpecializationRisk:
		// Risk is always relevant.
		return 8
	case domain.SpecializationFinancial:
		switch {
		case p.Amount > 1:
			return 9
		case p.Amount > 0.5:
			return 7
		default:
			return 5
		}
	case domain.SpecializationCommunity:
		if containsAny(text, "community", "water", "school", "education", "health", "power", "electric", "solar") {
			return 9
		}
		return 6
	case domain.SpecializationTechnical:
		if containsAny(text, "build", "repair", "install", "solar", "power", "electric", "maintenance") {
			return 9
		}
		return 4
	}
	return 5
}

// proposalSummary renders the fields the oracle sees.
func proposalSummary(p domain.Proposal) string {
	return fmt.Sprintf("Title: %s\nDescription: %s\nAmount: %g units", p.Title, p.Description, p.Amount)
}

// parseLeadingInt extracts a leading base-10 integer from a trimmed reply,
// tolerating trailing text like "8/10".
func parseLeadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
