package chain

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agora/internal/domain"
	"agora/internal/pipeline"
)

type recordingProcessor struct {
	mu        sync.Mutex
	processed []domain.Proposal
	block     chan struct{}
	err       error
}

func (p *recordingProcessor) Process(_ context.Context, proposal domain.Proposal, _ string) (pipeline.Evaluation, error) {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processed = append(p.processed, proposal)
	return pipeline.Evaluation{}, p.err
}

func (p *recordingProcessor) Processed() []domain.Proposal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Proposal(nil), p.processed...)
}

func newTestWatcher(feed Feed, proc Processor) *Watcher {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWatcher(feed, proc, time.Second, logger)
}

func TestPollProcessesNewProposal(t *testing.T) {
	feed := NewMockFeed()
	proc := &recordingProcessor{}
	w := newTestWatcher(feed, proc)

	feed.Append(domain.Proposal{Title: "Well repair"})
	w.Poll(context.Background())

	processed := proc.Processed()
	require.Len(t, processed, 1)
	assert.Equal(t, "1", processed[0].ID)
	assert.Equal(t, "Well repair", processed[0].Title)
}

func TestPollIsIdempotentPerCount(t *testing.T) {
	feed := NewMockFeed()
	proc := &recordingProcessor{}
	w := newTestWatcher(feed, proc)

	feed.Append(domain.Proposal{Title: "Well repair"})
	w.Poll(context.Background())
	w.Poll(context.Background())
	w.Poll(context.Background())

	assert.Len(t, proc.Processed(), 1)
}

func TestPollProcessesOnlyNewestPerWindow(t *testing.T) {
	feed := NewMockFeed()
	proc := &recordingProcessor{}
	w := newTestWatcher(feed, proc)

	feed.Append(domain.Proposal{Title: "first"})
	feed.Append(domain.Proposal{Title: "second"})
	feed.Append(domain.Proposal{Title: "third"})
	w.Poll(context.Background())

	processed := proc.Processed()
	require.Len(t, processed, 1)
	assert.Equal(t, "third", processed[0].Title)

	// The skipped ones are not revisited later.
	feed.Append(domain.Proposal{Title: "fourth"})
	w.Poll(context.Background())
	processed = proc.Processed()
	require.Len(t, processed, 2)
	assert.Equal(t, "fourth", processed[1].Title)
}

func TestPollCountFailureIsTransient(t *testing.T) {
	feed := NewMockFeed()
	proc := &recordingProcessor{}
	w := newTestWatcher(feed, proc)

	feed.Append(domain.Proposal{Title: "Well repair"})
	feed.FailCount(fmt.Errorf("rpc unavailable"))
	w.Poll(context.Background())
	assert.Empty(t, proc.Processed())

	feed.FailCount(nil)
	w.Poll(context.Background())
	assert.Len(t, proc.Processed(), 1)
}

func TestPollSkipsWhileBusy(t *testing.T) {
	feed := NewMockFeed()
	proc := &recordingProcessor{block: make(chan struct{})}
	w := newTestWatcher(feed, proc)

	feed.Append(domain.Proposal{Title: "first"})

	done := make(chan struct{})
	go func() {
		w.Poll(context.Background())
		close(done)
	}()

	// Wait until the first poll is inside Process, then poll again.
	require.Eventually(t, func() bool { return w.busy.Load() }, time.Second, time.Millisecond)
	w.Poll(context.Background())

	close(proc.block)
	<-done

	assert.Len(t, proc.Processed(), 1)
}

func TestPollProcessErrorDoesNotStopWatcher(t *testing.T) {
	feed := NewMockFeed()
	proc := &recordingProcessor{err: fmt.Errorf("pipeline down")}
	w := newTestWatcher(feed, proc)

	feed.Append(domain.Proposal{Title: "first"})
	w.Poll(context.Background())

	proc.mu.Lock()
	proc.err = nil
	proc.mu.Unlock()

	feed.Append(domain.Proposal{Title: "second"})
	w.Poll(context.Background())

	assert.Len(t, proc.Processed(), 2)
}

func TestRunProcessesBacklogAtBoot(t *testing.T) {
	feed := NewMockFeed()
	proc := &recordingProcessor{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// A proposal already on the feed before the watcher starts. The interval
	// is far longer than the test, so only the boot poll can pick it up.
	feed.Append(domain.Proposal{Title: "pre-existing"})
	w := NewWatcher(feed, proc, time.Hour, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(proc.Processed()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, "pre-existing", proc.Processed()[0].Title)

	cancel()
	<-done
}

func TestRunStopsOnContextCancel(t *testing.T) {
	feed := NewMockFeed()
	proc := &recordingProcessor{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := NewWatcher(feed, proc, 10*time.Millisecond, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	feed.Append(domain.Proposal{Title: "Well repair"})
	require.Eventually(t, func() bool { return len(proc.Processed()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}
