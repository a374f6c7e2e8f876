// Package stt defines the interface for Speech-to-Text backends.
package stt

import (
	"context"
	"errors"
	"strings"
)

// ContinuationMarker ends a transcript that covers only part of an utterance;
// more audio is expected before the utterance is complete.
const ContinuationMarker = "..."

// Errors returned by backends on malformed input.
var (
	ErrEmptyAudio         = errors.New("stt: empty audio")
	ErrSampleRateMismatch = errors.New("stt: sample rate mismatch")
	ErrInvalidSampleRate  = errors.New("stt: invalid sample rate")
)

// Transcriber converts one slice of mono 16-bit PCM audio into text.
//
// The returned text may be empty (no speech recognized) or end with
// ContinuationMarker. Implementations return an error rather than a
// best-effort result when the input does not match what they support.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []int16, sampleRate int) (string, error)
}

// IsPartial reports whether text ends with the continuation marker.
func IsPartial(text string) bool {
	return strings.HasSuffix(strings.TrimSpace(text), ContinuationMarker)
}

// StripMarker removes the continuation marker from either end of text and
// trims the surrounding whitespace.
func StripMarker(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, ContinuationMarker)
	text = strings.TrimSuffix(text, ContinuationMarker)
	return strings.TrimSpace(text)
}

// ValidateInput performs the checks every backend shares.
func ValidateInput(samples []int16, sampleRate int) error {
	if sampleRate <= 0 {
		return ErrInvalidSampleRate
	}
	if len(samples) == 0 {
		return ErrEmptyAudio
	}
	return nil
}
