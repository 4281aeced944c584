package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Shunyalabsai/rt-client-go/internal/metrics"
)

// TranscriptEvent is the payload published for each final transcript.
type TranscriptEvent struct {
	SessionID  string    `json:"session_id"`
	RequestID  string    `json:"request_id"`
	Final      bool      `json:"final"`
	Transcript string    `json:"transcript"`
	StartTime  float64   `json:"start_time"`
	EndTime    float64   `json:"end_time"`
	Language   string    `json:"language"`
	ReceivedAt time.Time `json:"received_at"`
}

// messageWriter is the part of kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher publishes transcript events to a Kafka topic. Messages are
// keyed by session so one session's transcripts stay ordered within a
// partition.
type Publisher struct {
	writer  messageWriter
	topic   string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Config configures the publisher.
type Config struct {
	Brokers []string
	Topic   string
}

// NewPublisher creates a Kafka-backed publisher.
func NewPublisher(cfg Config, logger *slog.Logger, m *metrics.Metrics) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers cannot be empty")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}

	return &Publisher{
		writer:  writer,
		topic:   cfg.Topic,
		logger:  logger,
		metrics: m,
	}, nil
}

// Publish sends one transcript event.
func (p *Publisher) Publish(ctx context.Context, event TranscriptEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.SessionID),
		Value: payload,
		Time:  event.ReceivedAt,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		if p.metrics != nil {
			p.metrics.RecordEventFailed()
		}
		p.logger.Error("failed to publish transcript event",
			slog.String("session_id", event.SessionID),
			slog.String("topic", p.topic),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to publish transcript event: %w", err)
	}

	if p.metrics != nil {
		p.metrics.RecordEventPublished()
	}
	p.logger.Debug("transcript event published",
		slog.String("session_id", event.SessionID),
		slog.String("topic", p.topic),
		slog.Bool("final", event.Final),
	)
	return nil
}

// Close releases the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
