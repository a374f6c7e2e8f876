// Package segment holds the accumulation state of an in-progress utterance
// and the ids assigned to flushed utterances.
package segment

import (
	"fmt"
	"strings"
	"time"

	"ai-speech-asr-service/internal/models"
)

// State is the engine state derived from the buffer.
type State int

const (
	// StateIdle - nothing buffered.
	StateIdle State = iota
	// StateAccumulating - at least one fragment is waiting for a flush.
	StateAccumulating
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAccumulating:
		return "ACCUMULATING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// Buffer accumulates the fragments of one utterance together with the
// mentions they were transcribed from.
//
// Fragments and mentions are kept in one-to-one correspondence, in arrival
// order. Buffer is not safe for concurrent use; it is owned by a single
// engine.
type Buffer struct {
	fragments    []string
	mentions     []models.Mention
	lastActivity time.Time
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append adds a non-empty fragment and the mention it came from. Empty
// fragments are ignored and Append reports false.
func (b *Buffer) Append(fragment string, mention models.Mention) bool {
	if strings.TrimSpace(fragment) == "" {
		return false
	}
	b.fragments = append(b.fragments, fragment)
	b.mentions = append(b.mentions, mention)
	return true
}

// Fragments returns a copy of the buffered fragments.
func (b *Buffer) Fragments() []string {
	return append([]string(nil), b.fragments...)
}

// Mentions returns a copy of the buffered mentions.
func (b *Buffer) Mentions() []models.Mention {
	return append([]models.Mention(nil), b.mentions...)
}

// Last returns the most recently buffered fragment.
func (b *Buffer) Last() (string, bool) {
	if len(b.fragments) == 0 {
		return "", false
	}
	return b.fragments[len(b.fragments)-1], true
}

func (b *Buffer) Len() int { return len(b.fragments) }

func (b *Buffer) Empty() bool { return len(b.fragments) == 0 }

// State reports IDLE for an empty buffer and ACCUMULATING otherwise.
func (b *Buffer) State() State {
	if b.Empty() {
		return StateIdle
	}
	return StateAccumulating
}

// Reset drops all fragments and mentions. The activity timestamp is kept.
func (b *Buffer) Reset() {
	b.fragments = nil
	b.mentions = nil
}

// Touch records the end of an engine invocation.
func (b *Buffer) Touch(now time.Time) {
	b.lastActivity = now
}

// LastActivity returns the instant recorded by the last Touch, or the zero
// time if the engine has not run yet.
func (b *Buffer) LastActivity() time.Time {
	return b.lastActivity
}
