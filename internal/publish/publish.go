// Package publish emits an event to Kafka for every completed analysis run.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"stockiq/internal/interfaces"
	"stockiq/internal/types"
)

const EventAnalysisCompleted = "ANALYSIS_COMPLETED"

// Event is the message value. The message key is the ticker so every run for
// one listing lands on the same partition.
type Event struct {
	EventType string                `json:"event_type"`
	RunID     string                `json:"run_id"`
	Ticker    string                `json:"ticker"`
	Result    *types.AnalysisResult `json:"result"`
	Timestamp time.Time             `json:"timestamp"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes analysis events to one topic.
type Producer struct {
	writer messageWriter
	topic  string
	now    func() time.Time
}

var _ interfaces.ResultPublisher = (*Producer)(nil)

func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &Producer{writer: writer, topic: topic, now: time.Now}
}

func (p *Producer) Publish(ctx context.Context, runID string, result *types.AnalysisResult) error {
	event := Event{
		EventType: EventAnalysisCompleted,
		RunID:     runID,
		Ticker:    result.Ticker,
		Result:    result,
		Timestamp: p.now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(result.Ticker),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventAnalysisCompleted)},
			{Key: "run_id", Value: []byte(runID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka topic %s: %w", p.topic, err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
