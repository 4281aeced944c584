package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func testLogger() *slog.Logger {
	return slog.Default()
}

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestNewPublisherValidation(t *testing.T) {
	if _, err := NewPublisher(Config{Topic: "t"}, nil, nil); err == nil {
		t.Errorf("Expected error for missing brokers")
	}
	if _, err := NewPublisher(Config{Brokers: []string{"localhost:9092"}}, nil, nil); err == nil {
		t.Errorf("Expected error for missing topic")
	}
	p, err := NewPublisher(Config{Brokers: []string{"localhost:9092"}, Topic: "transcripts"}, nil, nil)
	if err != nil {
		t.Fatalf("Expected no error but got: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Expected no error on close but got: %v", err)
	}
}

func TestPublishKeysBySession(t *testing.T) {
	fake := &fakeWriter{}
	p := &Publisher{writer: fake, topic: "transcripts", logger: testLogger()}

	event := TranscriptEvent{
		SessionID:  "sess-1",
		RequestID:  "req-1",
		Final:      true,
		Transcript: "hello world",
		EndTime:    1.2,
		Language:   "en",
		ReceivedAt: time.Now(),
	}
	if err := p.Publish(context.Background(), event); err != nil {
		t.Fatalf("Expected no error but got: %v", err)
	}

	if len(fake.messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(fake.messages))
	}
	msg := fake.messages[0]
	if string(msg.Key) != "sess-1" {
		t.Errorf("Expected message keyed by session, got %q", string(msg.Key))
	}

	var decoded TranscriptEvent
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("Published payload is not valid JSON: %v", err)
	}
	if decoded.Transcript != "hello world" || !decoded.Final {
		t.Errorf("Expected payload to round-trip, got %+v", decoded)
	}
}

func TestPublishSurfacesWriteErrors(t *testing.T) {
	fake := &fakeWriter{err: errors.New("broker unavailable")}
	p := &Publisher{writer: fake, topic: "transcripts", logger: testLogger()}

	err := p.Publish(context.Background(), TranscriptEvent{SessionID: "sess-1"})
	if err == nil {
		t.Fatalf("Expected error but got none")
	}
	if !errors.Is(err, fake.err) {
		t.Errorf("Expected wrapped writer error, got %v", err)
	}
}
