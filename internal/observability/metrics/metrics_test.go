package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordVadEvent()
	m.RecordVadEvent()
	m.RecordDebounced()
	m.RecordTranscription("mock", nil, 0.1, 1.5)
	m.RecordTranscription("mock", errors.New("boom"), 0.1, 0)
	m.RecordRejection("density")
	m.RecordFlush("timeout", 3)
	m.SetAccumulating(true)
	m.RecordKafkaPublish("cltl.topic.text_in", "AsrTextSignalEvent", errors.New("down"), 0.01)

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"vad events", m.VadEventsReceived, 2},
		{"debounced", m.InvocationsDebounce, 1},
		{"transcriptions", m.Transcriptions, 2},
		{"stt errors", m.STTErrors.WithLabelValues("mock"), 1},
		{"rejections", m.Rejections.WithLabelValues("density"), 1},
		{"flushed", m.UtterancesFlushed.WithLabelValues("timeout"), 1},
		{"accumulating", m.UtterancesAccumulating, 1},
		{"kafka errors", m.KafkaPublishErrors.WithLabelValues("cltl.topic.text_in", "AsrTextSignalEvent"), 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNewMetrics_SeparateRegistries(t *testing.T) {
	a := NewMetrics(prometheus.NewRegistry())
	b := NewMetrics(prometheus.NewRegistry())

	a.RecordVadEvent()

	if got := testutil.ToFloat64(b.VadEventsReceived); got != 0 {
		t.Errorf("expected independent counters, got %v", got)
	}
}
