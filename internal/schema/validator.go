// Package schema validates outbound events against the JSON schema derived
// from their Go types.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"ai-speech-asr-service/internal/models"
)

// Validator checks merged utterance events before they are published.
type Validator struct {
	schema   *jsonschema.Schema
	resolved *jsonschema.Resolved
}

// New derives the MergedUtteranceEvent schema and tightens it with the
// invariants every published event must satisfy.
func New() (*Validator, error) {
	s, err := jsonschema.For[models.MergedUtteranceEvent](nil)
	if err != nil {
		return nil, fmt.Errorf("schema: derive: %w", err)
	}

	for _, name := range []string{"eventType", "signalId", "text"} {
		if p := s.Properties[name]; p != nil {
			p.MinLength = intPtr(1)
		}
	}
	if p := s.Properties["modality"]; p != nil {
		p.Enum = []any{models.ModalityText}
	}
	if p := s.Properties["confidence"]; p != nil {
		p.Minimum = floatPtr(0)
		p.Maximum = floatPtr(1)
	}
	if p := s.Properties["segments"]; p != nil {
		p.Type, p.Types = "array", nil
		p.MinItems = intPtr(1)
	}

	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("schema: resolve: %w", err)
	}
	return &Validator{schema: s, resolved: resolved}, nil
}

// MustNew is like New but panics on error.
func MustNew() *Validator {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

// Validate checks the JSON form of event.
func (v *Validator) Validate(event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("schema: marshal: %w", err)
	}
	var instance map[string]any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("schema: event is not an object: %w", err)
	}
	if err := v.resolved.Validate(instance); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}

// JSON returns the schema document.
func (v *Validator) JSON() ([]byte, error) {
	return json.MarshalIndent(v.schema, "", "  ")
}

func intPtr(n int) *int { return &n }

func floatPtr(f float64) *float64 { return &f }
