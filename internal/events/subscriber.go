package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"ai-speech-asr-service/internal/models"
)

// MessageReader is the subset of *kafka.Reader used by Subscriber.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// VadHandler receives decoded VAD events. A returned error stops the
// subscriber; the message is not committed.
type VadHandler func(ctx context.Context, ev *models.VadEvent) error

// Subscriber consumes VAD events from the inbound topic.
type Subscriber struct {
	reader  MessageReader
	topic   string
	enabled bool
}

// NewSubscriber creates a consumer-group reader for cfg.Topic. Without
// brokers the subscriber idles until its context is cancelled.
func NewSubscriber(cfg *Config) *Subscriber {
	if !cfg.active() {
		topic := ""
		if cfg != nil {
			topic = cfg.Topic
		}
		log.Info().Str("topic", topic).Msg("Kafka disabled, subscriber idle")
		return &Subscriber{topic: topic}
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.Topic,
		Dialer:         newDialer(),
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: 0,
	})

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Str("groupId", cfg.GroupID).
		Msg("Kafka subscriber initialized")

	return NewSubscriberWithReader(reader, cfg.Topic)
}

// NewSubscriberWithReader creates an enabled subscriber around reader.
func NewSubscriberWithReader(r MessageReader, topic string) *Subscriber {
	return &Subscriber{reader: r, topic: topic, enabled: true}
}

// Run fetches messages until ctx is cancelled. Each message is decoded and
// handed to h before its offset is committed. Undecodable messages are
// logged, committed and skipped.
func (s *Subscriber) Run(ctx context.Context, h VadHandler) error {
	if !s.enabled {
		<-ctx.Done()
		return nil
	}

	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		var ev models.VadEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			log.Warn().
				Err(err).
				Str("topic", s.topic).
				Int64("offset", msg.Offset).
				Msg("Skipping undecodable VAD event")
		} else if err := h(ctx, &ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := s.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// Close closes the Kafka reader.
func (s *Subscriber) Close() error {
	if s.reader == nil {
		return nil
	}
	return s.reader.Close()
}
