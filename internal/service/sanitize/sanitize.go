// Package sanitize rejects transcripts that are implausible for the audio they
// were produced from, or that match known hallucination patterns of
// Whisper-style backends.
package sanitize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// Rule identifies the check that rejected a transcript.
type Rule string

const (
	RuleNone        Rule = ""
	RuleDensity     Rule = "density"
	RuleBroadcaster Rule = "broadcaster"
	RuleSubtitle    Rule = "subtitle"
	RuleAnnotation  Rule = "annotation"
	RuleMusic       Rule = "music"
)

// maxCharsPerSecond is ~6 syllables/sec times 5 letters/syllable.
const maxCharsPerSecond = 30

var subtitleMarkers = []string{"ondertitel", "undertitel"}

// Check returns the first rule that rejects transcript, or RuleNone.
func Check(durationSeconds float64, transcript string) Rule {
	n := utf8.RuneCountInString(transcript)
	if durationSeconds <= 1 && n > maxCharsPerSecond {
		return RuleDensity
	}
	if durationSeconds > 1 && float64(n) > maxCharsPerSecond*durationSeconds {
		return RuleDensity
	}

	lower := strings.ToLower(transcript)
	if strings.Contains(lower, "tv gelderland") {
		return RuleBroadcaster
	}
	for _, m := range subtitleMarkers {
		if strings.Contains(lower, m) {
			return RuleSubtitle
		}
	}

	if strings.HasPrefix(transcript, "*") ||
		strings.HasPrefix(transcript, "[") ||
		strings.HasPrefix(transcript, "(") {
		return RuleAnnotation
	}

	if onlyMusic(transcript) {
		return RuleMusic
	}

	return RuleNone
}

// Sanitize returns transcript unchanged, or "" if it is judged to be a
// hallucination for audio of the given duration.
func Sanitize(durationSeconds float64, transcript string) string {
	out, _ := Filter(durationSeconds, transcript)
	return out
}

// Filter is Sanitize that also reports the rejecting rule. Rejections are
// logged at debug level.
func Filter(durationSeconds float64, transcript string) (string, Rule) {
	rule := Check(durationSeconds, transcript)
	if rule == RuleNone {
		return transcript, RuleNone
	}

	log.Debug().
		Str("component", "sanitizer").
		Str("rule", string(rule)).
		Float64("durationSeconds", durationSeconds).
		Str("transcript", transcript).
		Msg("Sanitized transcript")
	return "", rule
}

// Accept is the acceptance filter of the single-segment policy: anything
// longer than one character, plus the one-letter word "I".
func Accept(transcript string) bool {
	return utf8.RuneCountInString(transcript) > 1 || strings.ToLower(transcript) == "i"
}

// onlyMusic reports whether the token set of transcript is exactly {"MUZIEK"}.
func onlyMusic(transcript string) bool {
	tokens := strings.FieldsFunc(transcript, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	if len(tokens) == 0 {
		return false
	}
	for _, tok := range tokens {
		if strings.ToUpper(tok) != "MUZIEK" {
			return false
		}
	}
	return true
}
