package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gopxl/beep/wav"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"ai-speech-asr-service/internal/events"
	"ai-speech-asr-service/internal/models"
	"ai-speech-asr-service/internal/service/segment"
	"ai-speech-asr-service/internal/storage"
)

const eventTypeVad = "VadEvent"

var publishCmd = &cobra.Command{
	Use:   "publish <file.wav>",
	Short: "Store a WAV file and publish VAD events for it",
	Long: `Upload a WAV file to the configured storage as a new audio container and
publish one VAD event per fixed-size segment to ASR_VAD_TOPIC, pacing the
events like a live detector would.

Examples:
  KAFKA_ENABLED=true KAFKA_BROKERS=localhost:9092 ASR_VAD_TOPIC=vad \
    asrctl publish sample.wav --segment 2s --interval 500ms`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		segLen, _ := cmd.Flags().GetDuration("segment")
		interval, _ := cmd.Flags().GetDuration("interval")
		container, _ := cmd.Flags().GetString("container")
		return publishFile(cmd, args[0], container, segLen, interval)
	},
}

func init() {
	publishCmd.Flags().Duration("segment", 2*time.Second, "Audio per VAD event")
	publishCmd.Flags().Duration("interval", 500*time.Millisecond, "Delay between events")
	publishCmd.Flags().String("container", "", "Container id (default: random)")
}

func publishFile(cmd *cobra.Command, path, containerID string, segLen, interval time.Duration) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := loadConfig()
	if cfg.ASR.VADTopic == "" {
		return errors.New("ASR_VAD_TOPIC is required")
	}
	if segLen <= 0 {
		return errors.New("--segment must be positive")
	}
	if containerID == "" {
		containerID = uuid.NewString()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	stream, format, err := wav.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	frames := stream.Len()
	stream.Close()

	store, err := storage.New(ctx, storage.Config{
		Backend:  cfg.Storage.Backend,
		Dir:      cfg.Storage.Dir,
		Bucket:   cfg.Storage.Bucket,
		Prefix:   cfg.Storage.Prefix,
		Region:   cfg.Storage.Region,
		Endpoint: cfg.Storage.Endpoint,
	})
	if err != nil {
		return err
	}
	if err := copyToStore(ctx, store, path, containerID); err != nil {
		return fmt.Errorf("store container: %w", err)
	}

	publisher := events.New(&events.Config{
		Enabled:   cfg.Kafka.Enabled,
		Brokers:   cfg.Kafka.Brokers,
		Topic:     cfg.ASR.VADTopic,
		Principal: cfg.Kafka.Principal,
	})
	defer publisher.Close()

	refs := segmentRefs(containerID, frames, format.SampleRate.N(segLen))
	log.Info().
		Str("containerId", containerID).
		Int("frames", frames).
		Int("sampleRate", int(format.SampleRate)).
		Int("events", len(refs)).
		Msg("Publishing VAD events")

	evs := vadEvents(containerID, refs)
	for i, ev := range evs {
		if err := publisher.Publish(ctx, containerID, eventTypeVad, ev); err != nil {
			return err
		}
		if i < len(evs)-1 {
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// vadEvents wraps each reference in a single-mention event. Mention ids are
// <containerID>-<n>, counting from 1.
func vadEvents(containerID string, refs []models.AudioSegmentReference) []models.VadEvent {
	ids := segment.NewSequence(containerID)
	evs := make([]models.VadEvent, 0, len(refs))
	for _, ref := range refs {
		evs = append(evs, models.VadEvent{Mentions: []models.Mention{{
			ID:      ids.Next(),
			Segment: []models.AudioSegmentReference{ref},
		}}})
	}
	return evs
}

// segmentRefs splits frames into consecutive references of size frames each.
func segmentRefs(containerID string, frames, size int) []models.AudioSegmentReference {
	if size <= 0 {
		return nil
	}
	var refs []models.AudioSegmentReference
	for start := 0; start < frames; start += size {
		refs = append(refs, models.AudioSegmentReference{
			ContainerID: containerID,
			Start:       uint(start),
			Stop:        uint(min(start+size, frames)),
		})
	}
	return refs
}
