package asr

import (
	"strings"

	"ai-speech-asr-service/internal/models"
	"ai-speech-asr-service/internal/service/stt"
)

// buildPayload joins the marker-stripped fragments with single spaces and
// flattens the segments of all contributing mentions in arrival order.
func buildPayload(fragments []string, mentions []models.Mention) (string, []models.AudioSegmentReference) {
	parts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		if s := stt.StripMarker(f); s != "" {
			parts = append(parts, s)
		}
	}

	var segments []models.AudioSegmentReference
	for _, m := range mentions {
		segments = append(segments, m.Segment...)
	}
	return strings.Join(parts, " "), segments
}
