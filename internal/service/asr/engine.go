// Package asr merges VAD segment transcripts into utterances. The Engine
// decides per event whether an utterance continues or is complete; the
// Worker serializes events and gap-timeout ticks into the engine.
package asr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ai-speech-asr-service/internal/models"
	"ai-speech-asr-service/internal/observability/logging"
	"ai-speech-asr-service/internal/observability/metrics"
	"ai-speech-asr-service/internal/service/audio"
	"ai-speech-asr-service/internal/service/sanitize"
	"ai-speech-asr-service/internal/service/scenario"
	"ai-speech-asr-service/internal/service/segment"
	"ai-speech-asr-service/internal/service/stt"
)

// DebounceWindow is the interval below which an invocation on an empty
// buffer is treated as a re-delivery of an event queued during the previous
// invocation.
const DebounceWindow = 10 * time.Millisecond

// Policy selects how fragments become utterances.
type Policy string

const (
	// PolicyMerge accumulates continued fragments until completion or
	// gap timeout.
	PolicyMerge Policy = "merge"
	// PolicyLegacy publishes every accepted fragment on its own.
	PolicyLegacy Policy = "legacy"
)

// Flush reasons reported in logs and metrics.
const (
	ReasonComplete = "complete"
	ReasonTimeout  = "timeout"
	ReasonShutdown = "shutdown"
	ReasonLegacy   = "legacy"
)

// ErrInvalidPayload is returned when a merged utterance fails schema
// validation. The buffered utterance is dropped.
var ErrInvalidPayload = errors.New("asr: invalid payload")

// Publisher delivers merged utterances.
type Publisher interface {
	Publish(ctx context.Context, key, eventType string, event any) error
}

// PayloadValidator checks an event before it is published.
type PayloadValidator interface {
	Validate(event any) error
}

// Options configures an Engine.
type Options struct {
	GapTimeout time.Duration // 0 disables continuation handling
	Policy     Policy
	Provider   string // STT provider name for metrics

	IDs       segment.IDGenerator // defaults to UUIDs
	Validator PayloadValidator    // optional
	Metrics   *metrics.Metrics    // defaults to metrics.DefaultMetrics
	Clock     func() time.Time    // defaults to time.Now
}

// Engine is the segmentation and merge state machine. It is not safe for
// concurrent use; a single Worker drives it.
type Engine struct {
	loader    audio.Loader
	stt       stt.Transcriber
	scenarios scenario.Lookup
	publisher Publisher

	gap       time.Duration
	policy    Policy
	provider  string
	ids       segment.IDGenerator
	validator PayloadValidator
	metrics   *metrics.Metrics
	now       func() time.Time

	buf     *segment.Buffer
	log     zerolog.Logger
	flushed uint64
}

// NewEngine creates an engine in the IDLE state.
func NewEngine(loader audio.Loader, transcriber stt.Transcriber, scenarios scenario.Lookup, publisher Publisher, opts Options) *Engine {
	if opts.Policy == "" {
		opts.Policy = PolicyMerge
	}
	if opts.Policy == PolicyLegacy {
		opts.GapTimeout = 0
	}
	if opts.IDs == nil {
		opts.IDs = segment.UUIDGenerator{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.DefaultMetrics
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Engine{
		loader:    loader,
		stt:       transcriber,
		scenarios: scenarios,
		publisher: publisher,
		gap:       opts.GapTimeout,
		policy:    opts.Policy,
		provider:  opts.Provider,
		ids:       opts.IDs,
		validator: opts.Validator,
		metrics:   opts.Metrics,
		now:       opts.Clock,
		buf:       segment.NewBuffer(),
		log:       logging.WithComponent("engine"),
	}
}

// GapTimeout returns the effective gap timeout; it is 0 under the legacy
// policy.
func (e *Engine) GapTimeout() time.Duration { return e.gap }

// State reports IDLE or ACCUMULATING.
func (e *Engine) State() segment.State { return e.buf.State() }

// Pending returns the number of buffered fragments.
func (e *Engine) Pending() int { return e.buf.Len() }

// LastActivity returns the end of the last non-debounced invocation.
func (e *Engine) LastActivity() time.Time { return e.buf.LastActivity() }

// Flushed returns the number of utterances published.
func (e *Engine) Flushed() uint64 { return e.flushed }

// Process handles one VAD event, or a gap-timeout tick when ev is nil.
//
// Errors from loading, transcription, scenario lookup or publishing are
// returned without retry. A failed transcription leaves the buffer
// unchanged; a failed flush keeps the buffered utterance for the next
// invocation.
func (e *Engine) Process(ctx context.Context, ev *models.VadEvent) error {
	tick := ev == nil
	start := e.now()

	if e.gap > 0 && e.buf.Empty() {
		if last := e.buf.LastActivity(); !last.IsZero() && start.Sub(last) < DebounceWindow {
			e.metrics.RecordDebounced()
			e.log.Debug().Bool("tick", tick).Dur("sinceLast", start.Sub(last)).Msg("Debounced invocation")
			return nil
		}
	}
	defer func() { e.buf.Touch(e.now()) }()

	var fragment string
	if !tick {
		e.metrics.RecordVadEvent()
		mention, _ := ev.FirstMention()

		var err error
		fragment, err = e.transcribe(ctx, ev)
		if err != nil {
			return err
		}
		e.buf.Append(fragment, mention)
	}

	switch {
	case e.buf.Empty():
		return nil
	case !tick && fragment == "":
		e.log.Debug().Int("pending", e.buf.Len()).Msg("No speech during utterance, waiting")
		return nil
	case !tick && e.gap > 0 && e.lastIsPartial():
		e.log.Debug().Int("pending", e.buf.Len()).Msg("Utterance continues, waiting")
		e.metrics.SetAccumulating(true)
		return nil
	}

	reason := ReasonComplete
	switch {
	case tick:
		reason = ReasonTimeout
	case e.policy == PolicyLegacy:
		reason = ReasonLegacy
	}
	return e.flush(ctx, reason)
}

// Flush publishes any buffered utterance. It is used on shutdown.
func (e *Engine) Flush(ctx context.Context, reason string) error {
	if e.buf.Empty() {
		return nil
	}
	return e.flush(ctx, reason)
}

func (e *Engine) lastIsPartial() bool {
	last, ok := e.buf.Last()
	return ok && stt.IsPartial(last)
}

// transcribe returns the accepted text of the event's first segment, or ""
// when there is no speech.
func (e *Engine) transcribe(ctx context.Context, ev *models.VadEvent) (string, error) {
	mention, _ := ev.FirstMention()
	seg, ok := ev.FirstSegment()
	if !ok || seg.IsEmpty() {
		e.metrics.RecordEmptySegment()
		e.log.Debug().Str("mentionId", mention.ID).Msg("Empty segment, no speech")
		return "", nil
	}
	log := logging.WithMention(e.log, mention.ID, seg.ContainerID)

	var samples []int16
	var rate int
	err := audio.WithSource(ctx, e.loader, seg, func(src audio.Source) error {
		chunks, err := src.Read()
		if err != nil {
			return err
		}
		samples, rate = concat(chunks), src.Rate()
		return nil
	})
	if err != nil {
		e.metrics.RecordInvocationError("load")
		return "", fmt.Errorf("load audio for mention %s: %w", mention.ID, err)
	}
	if len(samples) == 0 || rate <= 0 {
		e.metrics.RecordEmptySegment()
		return "", nil
	}

	duration := float64(len(samples)) / float64(rate)
	started := time.Now()
	text, err := e.stt.Transcribe(ctx, samples, rate)
	e.metrics.RecordTranscription(e.provider, err, time.Since(started).Seconds(), duration)
	if err != nil {
		e.metrics.RecordInvocationError("transcribe")
		return "", fmt.Errorf("transcribe mention %s: %w", mention.ID, err)
	}
	text = strings.TrimSpace(text)

	if e.policy == PolicyLegacy {
		if !sanitize.Accept(text) {
			log.Debug().Str("transcript", text).Msg("Transcript not accepted")
			return "", nil
		}
	} else if _, rule := sanitize.Filter(duration, text); rule != sanitize.RuleNone {
		e.metrics.RecordRejection(string(rule))
		return "", nil
	}

	if stt.StripMarker(text) == "" {
		return "", nil
	}
	log.Debug().Float64("durationSeconds", duration).Str("transcript", text).Msg("Transcribed segment")
	return text, nil
}

func (e *Engine) flush(ctx context.Context, reason string) error {
	mentions := e.buf.Mentions()

	scenarioID, err := e.scenarios.ScenarioFor(ctx, mentions[0].ID)
	if err != nil {
		e.metrics.RecordInvocationError("scenario")
		return fmt.Errorf("resolve scenario for mention %s: %w", mentions[0].ID, err)
	}

	text, segments := buildPayload(e.buf.Fragments(), mentions)
	ev := models.MergedUtteranceEvent{
		EventType:  models.EventTypeMergedUtterance,
		SignalID:   e.ids.Next(),
		ScenarioID: scenarioID,
		Modality:   models.ModalityText,
		Text:       text,
		Confidence: 1.0,
		Segments:   segments,
		Timestamp:  e.now().UnixMilli(),
	}
	log := logging.WithUtterance(e.log, ev.SignalID, scenarioID)

	if e.validator != nil {
		if err := e.validator.Validate(ev); err != nil {
			e.metrics.RecordInvocationError("validate")
			e.reset()
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	}

	if err := e.publisher.Publish(ctx, scenarioID, ev.EventType, ev); err != nil {
		e.metrics.RecordInvocationError("publish")
		return fmt.Errorf("publish utterance %s: %w", ev.SignalID, err)
	}

	e.flushed++
	e.metrics.RecordFlush(reason, len(mentions))
	log.Info().
		Str("reason", reason).
		Int("fragments", len(mentions)).
		Int("segments", len(segments)).
		Str("text", text).
		Msg("Published utterance")

	e.reset()
	return nil
}

func (e *Engine) reset() {
	e.buf.Reset()
	e.metrics.SetAccumulating(false)
}

func concat(chunks [][]int16) []int16 {
	if len(chunks) == 1 {
		return chunks[0]
	}
	n := 0
	for _, c := range chunks {
		n += len(c)
	}
	out := make([]int16, 0, n)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}
