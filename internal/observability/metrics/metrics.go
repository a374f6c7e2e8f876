// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ai_speech_asr"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Inbound metrics
	VadEventsReceived   prometheus.Counter
	InvocationsDebounce prometheus.Counter
	EmptySegments       prometheus.Counter
	InvocationErrors    *prometheus.CounterVec
	QueueDepth          prometheus.Gauge

	// STT metrics
	Transcriptions prometheus.Counter
	STTLatency     *prometheus.HistogramVec
	STTErrors      *prometheus.CounterVec
	AudioSeconds   prometheus.Histogram

	// Sanitizer metrics
	Rejections *prometheus.CounterVec

	// Utterance metrics
	UtterancesFlushed      *prometheus.CounterVec
	FragmentsPerUtterance  prometheus.Histogram
	UtterancesAccumulating prometheus.Gauge

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// gRPC metrics
	GRPCCalls *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		VadEventsReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vad_events_received_total",
			Help:      "Total number of VAD events received",
		}),
		InvocationsDebounce: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_debounced_total",
			Help:      "Total number of invocations discarded as re-deliveries",
		}),
		EmptySegments: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_segments_total",
			Help:      "Total number of VAD events without audio",
		}),
		InvocationErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocation_errors_total",
			Help:      "Total number of failed engine invocations",
		}, []string{"stage"}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Number of VAD events waiting for the worker",
		}),

		Transcriptions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_total",
			Help:      "Total number of transcription calls",
		}),
		STTLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stt_latency_seconds",
			Help:      "Speech-to-text latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"provider"}),
		STTErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_errors_total",
			Help:      "Total number of STT errors",
		}, []string{"provider"}),
		AudioSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "segment_audio_seconds",
			Help:      "Duration of transcribed segments in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}),

		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sanitizer_rejections_total",
			Help:      "Total number of transcripts rejected as hallucinations",
		}, []string{"rule"}),

		UtterancesFlushed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "utterances_flushed_total",
			Help:      "Total number of merged utterances published",
		}, []string{"reason"}),
		FragmentsPerUtterance: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fragments_per_utterance",
			Help:      "Number of fragments merged into one utterance",
			Buckets:   []float64{1, 2, 3, 4, 6, 8, 12},
		}),
		UtterancesAccumulating: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "utterance_accumulating",
			Help:      "1 while an utterance is waiting for continuation",
		}),

		KafkaPublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		GRPCCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_calls_total",
			Help:      "Total number of gRPC calls",
		}, []string{"method", "code"}),
	}
}

// RecordVadEvent records an inbound VAD event.
func (m *Metrics) RecordVadEvent() {
	m.VadEventsReceived.Inc()
}

// RecordDebounced records an invocation discarded by the debounce guard.
func (m *Metrics) RecordDebounced() {
	m.InvocationsDebounce.Inc()
}

// RecordEmptySegment records an event that carried no audio.
func (m *Metrics) RecordEmptySegment() {
	m.EmptySegments.Inc()
}

// RecordInvocationError records a failed invocation at the given stage
// (load, transcribe, scenario, publish).
func (m *Metrics) RecordInvocationError(stage string) {
	m.InvocationErrors.WithLabelValues(stage).Inc()
}

// RecordTranscription records one STT call.
func (m *Metrics) RecordTranscription(provider string, err error, latencySeconds, audioSeconds float64) {
	m.Transcriptions.Inc()
	m.STTLatency.WithLabelValues(provider).Observe(latencySeconds)
	if err != nil {
		m.STTErrors.WithLabelValues(provider).Inc()
		return
	}
	m.AudioSeconds.Observe(audioSeconds)
}

// RecordRejection records a sanitizer rejection.
func (m *Metrics) RecordRejection(rule string) {
	m.Rejections.WithLabelValues(rule).Inc()
}

// RecordFlush records a published utterance.
func (m *Metrics) RecordFlush(reason string, fragments int) {
	m.UtterancesFlushed.WithLabelValues(reason).Inc()
	m.FragmentsPerUtterance.Observe(float64(fragments))
}

// SetAccumulating reports whether an utterance is in progress.
func (m *Metrics) SetAccumulating(accumulating bool) {
	if accumulating {
		m.UtterancesAccumulating.Set(1)
		return
	}
	m.UtterancesAccumulating.Set(0)
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordGRPCCall records a completed gRPC call.
func (m *Metrics) RecordGRPCCall(method, code string) {
	m.GRPCCalls.WithLabelValues(method, code).Inc()
}
