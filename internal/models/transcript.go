// Package models defines the data structures for VAD and transcript events.
package models

// EventTypeMergedUtterance is the eventType of every published utterance.
const EventTypeMergedUtterance = "AsrTextSignalEvent"

// ModalityText is the only modality emitted by the service.
const ModalityText = "TEXT"

// MergedUtteranceEvent represents one completed (or timed-out) utterance,
// merged from all contributing fragments in arrival order.
type MergedUtteranceEvent struct {
	EventType  string                  `json:"eventType"`
	SignalID   string                  `json:"signalId"`
	ScenarioID string                  `json:"scenarioId"`
	Modality   string                  `json:"modality"`
	Text       string                  `json:"text"`
	Confidence float64                 `json:"confidence"`
	Segments   []AudioSegmentReference `json:"segments"`
	Timestamp  int64                   `json:"timestamp"`
}
