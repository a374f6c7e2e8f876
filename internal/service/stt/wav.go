package stt

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

// pcmStreamer streams mono int16 samples as beep stereo frames.
type pcmStreamer struct {
	samples []int16
	pos     int
}

func (s *pcmStreamer) Stream(frames [][2]float64) (int, bool) {
	if s.pos >= len(s.samples) {
		return 0, false
	}
	n := copy64(frames, s.samples[s.pos:])
	s.pos += n
	return n, true
}

func (s *pcmStreamer) Err() error { return nil }

func copy64(frames [][2]float64, samples []int16) int {
	n := len(frames)
	if len(samples) < n {
		n = len(samples)
	}
	for i := 0; i < n; i++ {
		v := pcmToFloat(samples[i])
		frames[i][0] = v
		frames[i][1] = v
	}
	return n
}

// pcmToFloat maps a sample onto beep's [-1, 1] range. The quarter step
// offset survives the encoder's truncation so samples round-trip exactly.
func pcmToFloat(s int16) float64 {
	switch {
	case s > 0:
		return (float64(s) + 0.25) / math.MaxInt16
	case s < 0:
		return (float64(s) - 0.25) / math.MaxInt16
	}
	return 0
}

// EncodeWAV writes samples as a mono 16-bit WAV file to w.
func EncodeWAV(w io.WriteSeeker, samples []int16, sampleRate int) error {
	format := beep.Format{
		SampleRate:  beep.SampleRate(sampleRate),
		NumChannels: 1,
		Precision:   2,
	}
	return wav.Encode(w, &pcmStreamer{samples: samples}, format)
}

// TempWAV stores samples in a WAV file below dir (os.TempDir() if empty) for
// backends that upload files. The returned cleanup removes the file unless
// keep is set.
func TempWAV(dir string, keep bool, samples []int16, sampleRate int) (path string, cleanup func(), err error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, err
	}
	f, err := os.Create(filepath.Join(dir, fmt.Sprintf("asr-%d.wav", time.Now().UnixNano())))
	if err != nil {
		return "", nil, err
	}
	path = f.Name()
	cleanup = func() {
		if !keep {
			os.Remove(path)
		}
	}

	if err := EncodeWAV(f, samples, sampleRate); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}
