// Package google provides a Google Cloud Speech-to-Text backend.
package google

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"

	"ai-speech-asr-service/internal/service/stt"
)

// MaxAlternatives is the number of alternatives requested per result.
const MaxAlternatives = 10

// Config holds Google STT configuration.
type Config struct {
	LanguageCode string
	SampleRateHz int      // The only sample rate accepted by the backend
	Hints        []string // Phrases recognition should be extra sensitive to
}

// DefaultConfig returns the default Google STT configuration.
func DefaultConfig() Config {
	return Config{
		LanguageCode: "en-US",
		SampleRateHz: 16000,
	}
}

// RecognizeClient is the subset of the speech client used by Adapter.
// The [speech.Client] type satisfies this interface.
type RecognizeClient interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
	Close() error
}

// Adapter implements stt.Transcriber using synchronous recognition.
type Adapter struct {
	client RecognizeClient
	cfg    Config
}

var _ stt.Transcriber = (*Adapter)(nil)

// New creates a new Google STT adapter.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return NewWithClient(c, cfg), nil
}

// NewWithClient creates an adapter around an existing client.
func NewWithClient(client RecognizeClient, cfg Config) *Adapter {
	if cfg.SampleRateHz == 0 {
		cfg.SampleRateHz = DefaultConfig().SampleRateHz
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = DefaultConfig().LanguageCode
	}
	return &Adapter{client: client, cfg: cfg}
}

// Transcribe recognizes samples and joins the most confident alternative of
// every result.
func (a *Adapter) Transcribe(ctx context.Context, samples []int16, sampleRate int) (string, error) {
	if err := stt.ValidateInput(samples, sampleRate); err != nil {
		return "", err
	}
	if sampleRate != a.cfg.SampleRateHz {
		return "", fmt.Errorf("%w: got %d, expected %d", stt.ErrSampleRateMismatch, sampleRate, a.cfg.SampleRateHz)
	}

	resp, err := a.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: a.recognitionConfig(),
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: encodeLinear16(samples)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("google recognize: %w", err)
	}

	parts := make([]string, 0, len(resp.GetResults()))
	for _, r := range resp.GetResults() {
		parts = append(parts, bestTranscript(r.GetAlternatives()))
	}
	return strings.TrimSpace(strings.Join(parts, " ")), nil
}

// Close releases the underlying client.
func (a *Adapter) Close() error {
	return a.client.Close()
}

func (a *Adapter) recognitionConfig() *speechpb.RecognitionConfig {
	cfg := &speechpb.RecognitionConfig{
		Encoding:                   speechpb.RecognitionConfig_LINEAR16,
		SampleRateHertz:            int32(a.cfg.SampleRateHz),
		LanguageCode:               a.cfg.LanguageCode,
		MaxAlternatives:            MaxAlternatives,
		EnableAutomaticPunctuation: true,
	}
	if len(a.cfg.Hints) > 0 {
		cfg.SpeechContexts = []*speechpb.SpeechContext{{Phrases: a.cfg.Hints}}
	}
	return cfg
}

func bestTranscript(alts []*speechpb.SpeechRecognitionAlternative) string {
	if len(alts) == 0 {
		return ""
	}
	sorted := append([]*speechpb.SpeechRecognitionAlternative{}, alts...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].GetConfidence() > sorted[j].GetConfidence()
	})
	return sorted[0].GetTranscript()
}

func encodeLinear16(samples []int16) []byte {
	buf := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(s))
	}
	return buf
}
