// Package events emits pipeline lifecycle events to Kafka. Publishing is
// best-effort: a failed emit is logged and never blocks the pipeline.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Event is one pipeline lifecycle record.
type Event struct {
	Type       string    `json:"type"`
	ProposalID string    `json:"proposal_id"`
	Agent      string    `json:"agent,omitempty"`
	Decision   string    `json:"decision,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Event types emitted by the pipeline.
const (
	TypeProposalSubmitted = "proposal.submitted"
	TypeAgentRegistered   = "agent.registered"
	TypeAnalysisRecorded  = "analysis.recorded"
	TypeConsensusReached  = "consensus.reached"
)

// Publisher emits pipeline events.
type Publisher interface {
	Emit(ctx context.Context, e Event)
	Close()
}

// KafkaPublisher writes events to a single Kafka topic, keyed by proposal ID
// so per-proposal ordering is preserved.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafkaPublisher connects to the brokers and ensures the topic exists.
func NewKafkaPublisher(ctx context.Context, brokers []string, topic string, logger *slog.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	if _, err := admin.CreateTopics(ctx, 1, 1, nil, topic); err != nil {
		// Topic may already exist or auto-creation may be enabled.
		logger.WarnContext(ctx, "kafka topic creation failed", "topic", topic, "error", err)
	}

	return &KafkaPublisher{client: client, topic: topic, logger: logger}, nil
}

func (p *KafkaPublisher) Emit(ctx context.Context, e Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	value, err := json.Marshal(e)
	if err != nil {
		p.logger.ErrorContext(ctx, "marshal pipeline event", "type", e.Type, "error", err)
		return
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(e.ProposalID),
		Value: value,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("pipeline event publish failed",
				"type", e.Type,
				"proposal_id", e.ProposalID,
				"error", err,
			)
		}
	})
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}

// NopPublisher discards all events. Used when Kafka is not configured.
type NopPublisher struct{}

func (NopPublisher) Emit(context.Context, Event) {}
func (NopPublisher) Close()                      {}

// Recorder captures emitted events for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) Close() {}

// Recorded returns the events captured so far.
func (r *Recorder) Recorded() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
