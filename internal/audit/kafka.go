package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer the emitter uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the Kafka emitter.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	ClientID     string
	WriteTimeout time.Duration
}

// KafkaEmitter publishes events to a Kafka topic, one JSON message per
// event keyed by event id.
type KafkaEmitter struct {
	mu     sync.RWMutex
	writer messageWriter
	topic  string
	logger zerolog.Logger
}

// NewKafkaEmitter creates an emitter with a synchronous kafka.Writer.
func NewKafkaEmitter(cfg KafkaConfig, logger zerolog.Logger) (*KafkaEmitter, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("audit: kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("audit: kafka topic is required")
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchSize:    1,
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  5 * time.Second,
	}
	if cfg.ClientID != "" {
		writer.Transport = &kafka.Transport{ClientID: cfg.ClientID}
	}

	return newKafkaEmitter(writer, cfg.Topic, logger), nil
}

func newKafkaEmitter(writer messageWriter, topic string, logger zerolog.Logger) *KafkaEmitter {
	return &KafkaEmitter{
		writer: writer,
		topic:  topic,
		logger: logger.With().Str("component", "audit-kafka").Logger(),
	}
}

// Emit publishes the event.
func (e *KafkaEmitter) Emit(ctx context.Context, event Event) error {
	e.mu.RLock()
	writer := e.writer
	e.mu.RUnlock()
	if writer == nil {
		return errors.New("audit: kafka writer is closed")
	}

	event = event.Sealed()
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("audit: serialize event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.EventID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(event.Action)},
			{Key: "outcome", Value: []byte(event.Outcome)},
			{Key: "client_id", Value: []byte(event.ClientID)},
		},
		Time: event.CreatedAt,
	}
	if err := writer.WriteMessages(ctx, msg); err != nil {
		e.logger.Error().Err(err).
			Str("event_id", event.EventID.String()).
			Str("action", event.Action).
			Msg("failed to publish audit event")
		return fmt.Errorf("audit: publish event: %w", err)
	}

	e.logger.Debug().
		Str("event_id", event.EventID.String()).
		Str("topic", e.topic).
		Msg("audit event published")
	return nil
}

// Close flushes and closes the writer. Emit fails afterwards.
func (e *KafkaEmitter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.writer == nil {
		return nil
	}
	err := e.writer.Close()
	e.writer = nil
	return err
}
