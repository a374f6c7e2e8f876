// Package audio loads the sample ranges referenced by VAD events from stored
// audio containers.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"

	"ai-speech-asr-service/internal/models"
	"ai-speech-asr-service/internal/storage"
)

// ChunkFrames is the number of frames returned per chunk by Source.Read.
const ChunkFrames = 4096

var (
	// ErrUnsupportedChannels is returned for containers with more than two
	// channels.
	ErrUnsupportedChannels = errors.New("audio: unsupported channel count")
	// ErrOutOfRange is returned when a segment starts beyond the container.
	ErrOutOfRange = errors.New("audio: segment out of range")
	// ErrSegmentTooLong is returned when a segment exceeds Limits.MaxDuration.
	ErrSegmentTooLong = errors.New("audio: segment too long")
)

// Source is an acquired audio segment. Close must be called once the samples
// have been read.
type Source interface {
	Rate() int
	// Read returns the segment as consecutive mono chunks.
	Read() ([][]int16, error)
	Close() error
}

// Loader acquires the audio for a segment reference.
type Loader interface {
	Load(ctx context.Context, ref models.AudioSegmentReference) (Source, error)
}

// WithSource acquires the segment, passes it to fn and releases it on every
// return path.
func WithSource(ctx context.Context, l Loader, ref models.AudioSegmentReference, fn func(Source) error) (err error) {
	src, err := l.Load(ctx, ref)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("release audio source: %w", cerr)
		}
	}()
	return fn(src)
}

// Limits guards against segments that would stall the worker.
type Limits struct {
	MaxDuration time.Duration // 0 disables the check
}

// DefaultLimits returns the limits used by the service.
func DefaultLimits() Limits {
	return Limits{MaxDuration: 5 * time.Minute}
}

// StoreLoader reads WAV containers from a storage.Store.
type StoreLoader struct {
	store  storage.Store
	limits Limits
}

var _ Loader = (*StoreLoader)(nil)

// NewStoreLoader creates a loader backed by store.
func NewStoreLoader(store storage.Store, limits Limits) *StoreLoader {
	return &StoreLoader{store: store, limits: limits}
}

// Load opens the container and positions a decoder at the segment start.
func (l *StoreLoader) Load(ctx context.Context, ref models.AudioSegmentReference) (Source, error) {
	rc, err := l.store.Open(ctx, storage.AudioPath(ref.ContainerID))
	if err != nil {
		return nil, fmt.Errorf("open container %s: %w", ref.ContainerID, err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("read container %s: %w", ref.ContainerID, err)
	}

	stream, format, err := wav.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode container %s: %w", ref.ContainerID, err)
	}

	src := &wavSource{stream: stream, format: format, length: int(ref.Length())}
	if err := l.check(ref, src); err != nil {
		src.Close()
		return nil, err
	}
	if err := stream.Seek(int(ref.Start)); err != nil {
		src.Close()
		return nil, fmt.Errorf("seek container %s to %d: %w", ref.ContainerID, ref.Start, err)
	}
	return src, nil
}

func (l *StoreLoader) check(ref models.AudioSegmentReference, src *wavSource) error {
	if src.format.NumChannels > 2 {
		return fmt.Errorf("%w: %d", ErrUnsupportedChannels, src.format.NumChannels)
	}
	if int(ref.Start) >= src.stream.Len() {
		return fmt.Errorf("%w: start %d, container has %d frames", ErrOutOfRange, ref.Start, src.stream.Len())
	}
	if l.limits.MaxDuration > 0 {
		if d := src.format.SampleRate.D(src.length); d > l.limits.MaxDuration {
			return fmt.Errorf("%w: %v > %v", ErrSegmentTooLong, d, l.limits.MaxDuration)
		}
	}
	return nil
}

type wavSource struct {
	stream beep.StreamSeekCloser
	format beep.Format
	length int

	once     sync.Once
	closeErr error
}

func (s *wavSource) Rate() int { return int(s.format.SampleRate) }

// Read streams up to length frames, downmixed to mono. A segment running past
// the end of the container is truncated.
func (s *wavSource) Read() ([][]int16, error) {
	var chunks [][]int16
	frames := make([][2]float64, ChunkFrames)
	remaining := s.length

	for remaining > 0 {
		want := min(remaining, ChunkFrames)
		n, ok := s.stream.Stream(frames[:want])
		if n > 0 {
			chunk := make([]int16, n)
			for i := 0; i < n; i++ {
				chunk[i] = toPCM((frames[i][0]+frames[i][1])/2, s.format.Precision)
			}
			chunks = append(chunks, chunk)
			remaining -= n
		}
		if !ok {
			break
		}
	}
	if err := s.stream.Err(); err != nil {
		return nil, err
	}
	return chunks, nil
}

func (s *wavSource) Close() error {
	s.once.Do(func() { s.closeErr = s.stream.Close() })
	return s.closeErr
}

// toPCM undoes the wav decoder's normalisation for the container's sample
// width and returns the sample at 16-bit scale.
func toPCM(v float64, precision int) int16 {
	var x float64
	switch precision {
	case 1:
		// unsigned, decoded as u/255*2-1
		u := math.Round((v + 1) * (1<<8 - 1) / 2)
		x = (u - 128) * (1 << 8)
	case 3:
		x = math.Floor(math.Round(v*(1<<24-1)) / (1 << 8))
	default:
		x = math.Round(v * (1<<16 - 1))
	}
	switch {
	case x > math.MaxInt16:
		return math.MaxInt16
	case x < math.MinInt16:
		return math.MinInt16
	}
	return int16(x)
}
