package chain

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"agora/internal/domain"
	"agora/internal/pipeline"
)

// Processor runs a proposal through the evaluation pipeline.
type Processor interface {
	Process(ctx context.Context, p domain.Proposal, source string) (pipeline.Evaluation, error)
}

// Watcher polls the feed and evaluates newly appearing proposals. Only the
// newest proposal per polling window is processed; intermediate ones are
// skipped with a warning.
type Watcher struct {
	feed      Feed
	processor Processor
	interval  time.Duration
	logger    *slog.Logger

	lastSeen int
	busy     atomic.Bool
}

// NewWatcher creates a watcher over the given feed. A non-positive interval
// falls back to 5 seconds.
func NewWatcher(feed Feed, processor Processor, interval time.Duration, logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Watcher{
		feed:      feed,
		processor: processor,
		interval:  interval,
		logger:    logger,
	}
}

// Run polls until the context is cancelled. The first poll happens
// immediately so a proposal already on the feed at boot is picked up without
// waiting out an interval.
func (w *Watcher) Run(ctx context.Context) {
	w.logger.InfoContext(ctx, "chain watcher started", "interval", w.interval)
	w.Poll(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "chain watcher stopped")
			return
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Poll checks the feed once. A poll that finds an evaluation still running
// from the previous tick does nothing.
func (w *Watcher) Poll(ctx context.Context) {
	if !w.busy.CompareAndSwap(false, true) {
		w.logger.DebugContext(ctx, "previous evaluation still running, skipping poll")
		return
	}
	defer w.busy.Store(false)

	count, err := w.feed.ProposalCount(ctx)
	if err != nil {
		w.logger.WarnContext(ctx, "proposal count fetch failed", "error", err)
		return
	}
	if count <= w.lastSeen {
		return
	}

	if skipped := count - w.lastSeen - 1; skipped > 0 {
		w.logger.WarnContext(ctx, "skipping intermediate proposals",
			"skipped", skipped,
			"newest", count,
		)
	}
	w.lastSeen = count

	p, err := w.feed.Proposal(ctx, count)
	if err != nil {
		w.logger.WarnContext(ctx, "proposal fetch failed", "id", count, "error", err)
		return
	}

	if _, err := w.processor.Process(ctx, p, pipeline.SourceChain); err != nil {
		w.logger.ErrorContext(ctx, "chain proposal evaluation failed",
			"proposal_id", p.ID,
			"error", err,
		)
	}
}
