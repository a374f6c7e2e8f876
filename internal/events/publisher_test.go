package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"

	"ai-speech-asr-service/internal/observability/metrics"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil", nil},
		{"disabled", &Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &Config{Enabled: true, Brokers: []string{}}},
		{"empty brokers", &Config{Enabled: true, Brokers: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			if p == nil {
				t.Fatal("expected non-nil publisher")
			}
			if p.enabled {
				t.Error("expected publisher to be disabled")
			}
			if p.writer != nil {
				t.Error("expected nil writer when disabled")
			}
		})
	}
}

func TestNew_ConfigValues(t *testing.T) {
	p := New(&Config{
		Enabled:   false,
		Brokers:   []string{"localhost:9092"},
		Topic:     "cltl.topic.text_in",
		Principal: "test-principal",
	})

	if p.principal != "test-principal" {
		t.Errorf("expected principal 'test-principal', got %s", p.principal)
	}
	if p.Topic() != "cltl.topic.text_in" {
		t.Errorf("expected topic 'cltl.topic.text_in', got %s", p.Topic())
	}
}

func TestPublisher_Publish_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false})

	err := p.Publish(context.Background(), "sc-1", "AsrTextSignalEvent", map[string]string{"text": "hi"})
	if err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_Publish_InvalidJSON(t *testing.T) {
	p := New(&Config{Enabled: false})

	err := p.Publish(context.Background(), "sc-1", "AsrTextSignalEvent", make(chan int))
	if err == nil {
		t.Error("expected error for unmarshalable event")
	}
}

func TestPublisher_Publish_WritesMessage(t *testing.T) {
	w := &recordingWriter{}
	m := metrics.NewMetrics(prometheus.NewRegistry())
	p := NewWithWriter(w, &Config{Topic: "asr", Principal: "svc-speech-asr"}, m)

	event := map[string]string{"text": "hello world"}
	if err := p.Publish(context.Background(), "sc-1", "AsrTextSignalEvent", event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "sc-1" {
		t.Errorf("expected key sc-1, got %s", msg.Key)
	}
	var got map[string]string
	if err := json.Unmarshal(msg.Value, &got); err != nil || got["text"] != "hello world" {
		t.Errorf("unexpected payload %s (%v)", msg.Value, err)
	}
	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["eventType"] != "AsrTextSignalEvent" || headers["principal"] != "svc-speech-asr" {
		t.Errorf("unexpected headers %v", headers)
	}
}

func TestPublisher_Publish_WriteError(t *testing.T) {
	boom := errors.New("leader not available")
	p := NewWithWriter(&recordingWriter{err: boom}, &Config{Topic: "asr"}, metrics.NewMetrics(prometheus.NewRegistry()))

	if err := p.Publish(context.Background(), "k", "AsrTextSignalEvent", struct{}{}); !errors.Is(err, boom) {
		t.Errorf("expected write error, got %v", err)
	}
}

func TestPublisher_Close(t *testing.T) {
	if err := New(&Config{Enabled: false}).Close(); err != nil {
		t.Errorf("expected no error closing disabled publisher, got %v", err)
	}

	w := &recordingWriter{}
	p := NewWithWriter(w, &Config{Topic: "asr"}, nil)
	if err := p.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !w.closed {
		t.Error("expected writer to be closed")
	}
}
