package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const eventSource = "autofix-api"

// Event is the envelope published for every notification fan-out message
type Event struct {
	EventID     string          `json:"event_id"`
	EventType   string          `json:"event_type"`
	AggregateID string          `json:"aggregate_id"`
	Version     int             `json:"version"`
	Timestamp   time.Time       `json:"timestamp"`
	Source      string          `json:"source"`
	Data        json.RawMessage `json:"data"`
}

// NewEvent wraps data in an envelope with a fresh ID and timestamp
func NewEvent(eventType string, aggregateID uint, data any) (*Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal event data: %w", err)
	}

	return &Event{
		EventID:     uuid.NewString(),
		EventType:   eventType,
		AggregateID: strconv.FormatUint(uint64(aggregateID), 10),
		Version:     1,
		Timestamp:   time.Now().UTC(),
		Source:      eventSource,
		Data:        payload,
	}, nil
}

// EventPublisher delivers events to the external push pipeline
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// messageWriter is the part of kafka.Writer the publisher uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes events to a single Kafka topic
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// NoopPublisher drops every event; used when no brokers are configured
type NoopPublisher struct{}

var eventPublisherInstance EventPublisher = NoopPublisher{}

// NewKafkaPublisher creates a synchronous publisher for topic
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			BatchTimeout:           10 * time.Millisecond,
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		topic: topic,
	}
}

// InitEventPublisher picks the Kafka publisher when brokers are configured
func InitEventPublisher(brokers []string, topic string) EventPublisher {
	if len(brokers) == 0 {
		eventPublisherInstance = NoopPublisher{}
	} else {
		eventPublisherInstance = NewKafkaPublisher(brokers, topic)
	}
	return eventPublisherInstance
}

// GetEventPublisher returns the initialized event publisher
func GetEventPublisher() EventPublisher {
	return eventPublisherInstance
}

// SetEventPublisher sets the event publisher instance (primarily for testing)
func SetEventPublisher(p EventPublisher) {
	eventPublisherInstance = p
}

// Publish writes the event keyed by aggregate so one recipient's events stay ordered
func (p *KafkaPublisher) Publish(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.AggregateID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "source", Value: []byte(event.Source)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish event to %s: %w", p.topic, err)
	}

	zap.L().Debug("event published",
		zap.String("topic", p.topic),
		zap.String("event_type", event.EventType),
		zap.String("aggregate_id", event.AggregateID),
	)
	return nil
}

// Close flushes and closes the underlying writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Publish does nothing
func (NoopPublisher) Publish(ctx context.Context, event *Event) error { return nil }

// Close does nothing
func (NoopPublisher) Close() error { return nil }
