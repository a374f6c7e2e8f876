package models

// AudioSegmentReference identifies a contiguous interval of samples inside a
// stored audio container. Stop == Start marks an empty (no-speech) detection.
type AudioSegmentReference struct {
	ContainerID string `json:"container_id"`
	Start       uint   `json:"start"`
	Stop        uint   `json:"stop"`
}

// Length returns the number of samples covered by the segment.
func (r AudioSegmentReference) Length() uint {
	if r.Stop < r.Start {
		return 0
	}
	return r.Stop - r.Start
}

// IsEmpty reports whether the segment carries no audio.
func (r AudioSegmentReference) IsEmpty() bool {
	return r.Stop <= r.Start
}

// Mention links a VAD detection to the audio it was detected in.
type Mention struct {
	ID      string                  `json:"id"`
	Segment []AudioSegmentReference `json:"segment"`
}

// VadEvent is one voice activity detection as delivered on the VAD topic.
type VadEvent struct {
	Mentions []Mention `json:"mentions"`
}

// FirstMention returns the mention the engine acts on.
func (e *VadEvent) FirstMention() (Mention, bool) {
	if e == nil || len(e.Mentions) == 0 {
		return Mention{}, false
	}
	return e.Mentions[0], true
}

// FirstSegment resolves the first segment of the first mention. Only this
// segment is transcribed; the engine handles one segment per event.
func (e *VadEvent) FirstSegment() (AudioSegmentReference, bool) {
	m, ok := e.FirstMention()
	if !ok || len(m.Segment) == 0 {
		return AudioSegmentReference{}, false
	}
	return m.Segment[0], true
}
