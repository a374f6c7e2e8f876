package sanitize

import (
	"strings"
	"testing"
)

func TestSanitize_Density(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		length   int
		rejected bool
	}{
		{"short audio, 30 chars", 0.5, 30, false},
		{"short audio, 31 chars", 0.5, 31, true},
		{"one second, 31 chars", 1, 31, true},
		{"zero duration, long text", 0, 100, true},
		{"five seconds, 150 chars", 5, 150, false},
		{"five seconds, 151 chars", 5, 151, true},
		{"two seconds, 60 chars", 2, 60, false},
		{"two seconds, 61 chars", 2, 61, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transcript := strings.Repeat("a", tt.length)
			got := Sanitize(tt.duration, transcript)
			if tt.rejected && got != "" {
				t.Errorf("Sanitize(%v, %d chars) = %q, want empty", tt.duration, tt.length, got)
			}
			if !tt.rejected && got != transcript {
				t.Errorf("Sanitize(%v, %d chars) rejected, want unchanged", tt.duration, tt.length)
			}
		})
	}
}

func TestSanitize_DensityCountsCharacters(t *testing.T) {
	// 30 two-byte runes are still 30 characters.
	transcript := strings.Repeat("é", 30)
	if got := Sanitize(1, transcript); got != transcript {
		t.Errorf("expected multibyte transcript to pass, got %q", got)
	}
}

func TestSanitize_Patterns(t *testing.T) {
	tests := []struct {
		transcript string
		rule       Rule
	}{
		{"TV Gelderland", RuleBroadcaster},
		{"tv gelderland 2021", RuleBroadcaster},
		{"Ondertiteling door", RuleSubtitle},
		{"ONDERTITEL", RuleSubtitle},
		{"undertitel", RuleSubtitle},
		{"[laughs]", RuleAnnotation},
		{"(applause)", RuleAnnotation},
		{"*music*", RuleAnnotation},
		{"muziek muziek", RuleMusic},
		{"Muziek", RuleMusic},
		{"MUZIEK!  ...  muziek", RuleMusic},
	}

	for _, tt := range tests {
		t.Run(tt.transcript, func(t *testing.T) {
			for _, d := range []float64{0.5, 1, 3, 10} {
				if got := Sanitize(d, tt.transcript); got != "" {
					t.Errorf("Sanitize(%v, %q) = %q, want empty", d, tt.transcript, got)
				}
			}
			if got := Check(10, tt.transcript); got != tt.rule {
				t.Errorf("Check(%q) = %q, want %q", tt.transcript, got, tt.rule)
			}
		})
	}
}

func TestSanitize_KeepsRegularSpeech(t *testing.T) {
	tests := []string{
		"mooie muziek",
		"hello world",
		"I think so (maybe)",
		"hello ...",
		"",
	}

	for _, transcript := range tests {
		if got := Sanitize(3, transcript); got != transcript {
			t.Errorf("Sanitize(3, %q) = %q, want unchanged", transcript, got)
		}
		if got := Check(3, transcript); got != RuleNone {
			t.Errorf("Check(3, %q) = %q, want none", transcript, got)
		}
	}
}

func TestAccept(t *testing.T) {
	tests := []struct {
		transcript string
		want       bool
	}{
		{"", false},
		{"a", false},
		{".", false},
		{"i", true},
		{"I", true},
		{"ok", true},
		{"hello world", true},
	}

	for _, tt := range tests {
		if got := Accept(tt.transcript); got != tt.want {
			t.Errorf("Accept(%q) = %v, want %v", tt.transcript, got, tt.want)
		}
	}
}

func TestFilter_ReportsRule(t *testing.T) {
	tests := []struct {
		transcript string
		want       string
		rule       Rule
	}{
		{"hello there", "hello there", RuleNone},
		{"[muziek]", "", RuleAnnotation},
		{"MUZIEK MUZIEK", "", RuleMusic},
		{"Ondertiteling TV Gelderland", "", RuleBroadcaster},
		{strings.Repeat("x", 200), "", RuleDensity},
	}

	for _, tt := range tests {
		got, rule := Filter(2, tt.transcript)
		if got != tt.want || rule != tt.rule {
			t.Errorf("Filter(2, %q) = %q, %q, want %q, %q", tt.transcript, got, rule, tt.want, tt.rule)
		}
	}
}
