// Package mock provides a scripted STT backend for running the service and
// its tests without cloud credentials. Each call returns the next scripted
// fragment, so multi-segment utterances (fragments ending in the continuation
// marker) can be simulated.
package mock

import (
	"context"
	"sync"
	"time"

	"ai-speech-asr-service/internal/service/stt"
)

// Response is one scripted backend result.
type Response struct {
	Text  string
	Err   error
	Delay time.Duration // Simulated processing time
}

// DefaultScript simulates a short dialogue where the backend sometimes
// signals that the utterance continues in the next segment.
var DefaultScript = []Response{
	{Text: "I want to cancel ..."},
	{Text: "my subscription"},
	{Text: "Yes please go ahead"},
	{Text: "Can you help me ..."},
	{Text: "... with my account"},
	{Text: ""},
	{Text: "Thank you very much"},
}

// Call records the input of one Transcribe invocation.
type Call struct {
	Samples    int
	SampleRate int
}

// Adapter implements stt.Transcriber with scripted responses, cycling
// through the script when it is exhausted.
type Adapter struct {
	mu     sync.Mutex
	script []Response
	next   int
	calls  []Call
}

var _ stt.Transcriber = (*Adapter)(nil)

// New creates a mock backend. Without responses it uses DefaultScript.
func New(responses ...Response) *Adapter {
	if len(responses) == 0 {
		responses = DefaultScript
	}
	return &Adapter{script: responses}
}

// NewTexts creates a mock backend returning the given texts in order.
func NewTexts(texts ...string) *Adapter {
	responses := make([]Response, len(texts))
	for i, t := range texts {
		responses[i] = Response{Text: t}
	}
	return New(responses...)
}

// Transcribe returns the next scripted response.
func (a *Adapter) Transcribe(ctx context.Context, samples []int16, sampleRate int) (string, error) {
	if err := stt.ValidateInput(samples, sampleRate); err != nil {
		return "", err
	}

	a.mu.Lock()
	r := a.script[a.next%len(a.script)]
	a.next++
	a.calls = append(a.calls, Call{Samples: len(samples), SampleRate: sampleRate})
	a.mu.Unlock()

	if r.Delay > 0 {
		select {
		case <-time.After(r.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return r.Text, r.Err
}

// Calls returns a copy of all recorded invocations.
func (a *Adapter) Calls() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Call{}, a.calls...)
}
