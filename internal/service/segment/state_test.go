package segment

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"ai-speech-asr-service/internal/models"
)

func mention(id string) models.Mention {
	return models.Mention{ID: id, Segment: []models.AudioSegmentReference{{ContainerID: "c", Start: 0, Stop: 10}}}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "IDLE"},
		{StateAccumulating, "ACCUMULATING"},
		{State(7), "UNKNOWN(7)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}

func TestBuffer_InitialState(t *testing.T) {
	b := NewBuffer()

	if !b.Empty() || b.Len() != 0 {
		t.Error("expected empty buffer")
	}
	if b.State() != StateIdle {
		t.Errorf("expected StateIdle, got %v", b.State())
	}
	if _, ok := b.Last(); ok {
		t.Error("expected no last fragment")
	}
	if !b.LastActivity().IsZero() {
		t.Error("expected zero last activity")
	}
}

func TestBuffer_AppendKeepsCorrespondence(t *testing.T) {
	b := NewBuffer()

	b.Append("hello ...", mention("m1"))
	if ok := b.Append("   ", mention("m2")); ok {
		t.Error("expected blank fragment to be ignored")
	}
	b.Append("world", mention("m3"))

	if b.State() != StateAccumulating {
		t.Errorf("expected StateAccumulating, got %v", b.State())
	}
	if diff := cmp.Diff([]string{"hello ...", "world"}, b.Fragments()); diff != "" {
		t.Errorf("fragments mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]models.Mention{mention("m1"), mention("m3")}, b.Mentions()); diff != "" {
		t.Errorf("mentions mismatch (-want +got):\n%s", diff)
	}
	if last, _ := b.Last(); last != "world" {
		t.Errorf("expected last fragment 'world', got %q", last)
	}
}

func TestBuffer_ResetKeepsActivity(t *testing.T) {
	b := NewBuffer()
	now := time.Unix(100, 0)

	b.Append("hi", mention("m1"))
	b.Touch(now)
	b.Reset()

	if !b.Empty() || b.State() != StateIdle {
		t.Error("expected empty buffer after reset")
	}
	if !b.LastActivity().Equal(now) {
		t.Errorf("expected last activity %v, got %v", now, b.LastActivity())
	}
}

func TestBuffer_CopiesAreIndependent(t *testing.T) {
	b := NewBuffer()
	b.Append("a", mention("m1"))

	f := b.Fragments()
	f[0] = "changed"

	if got := b.Fragments()[0]; got != "a" {
		t.Errorf("buffer mutated through copy: %q", got)
	}
}
