// Package whisperapi provides a backend for the OpenAI audio transcription
// API (or any OpenAI-compatible server).
package whisperapi

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"

	"ai-speech-asr-service/internal/service/stt"
)

// Config holds Whisper API configuration.
type Config struct {
	APIKey   string
	BaseURL  string // Optional, for OpenAI-compatible servers
	Model    string
	Language string
	Storage  string // Directory for WAV uploads; files are kept when set
}

// Adapter implements stt.Transcriber via /audio/transcriptions.
type Adapter struct {
	client openai.Client
	cfg    Config
}

var _ stt.Transcriber = (*Adapter)(nil)

// New creates a Whisper API adapter. Requests are never retried.
func New(cfg Config) *Adapter {
	if cfg.Model == "" {
		cfg.Model = string(openai.AudioModelWhisper1)
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Adapter{
		client: openai.NewClient(opts...),
		cfg:    cfg,
	}
}

// Transcribe uploads samples as a WAV file and returns the trimmed text.
func (a *Adapter) Transcribe(ctx context.Context, samples []int16, sampleRate int) (string, error) {
	if err := stt.ValidateInput(samples, sampleRate); err != nil {
		return "", err
	}

	path, cleanup, err := stt.TempWAV(a.cfg.Storage, a.cfg.Storage != "", samples, sampleRate)
	if err != nil {
		return "", err
	}
	defer cleanup()

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	start := time.Now()
	resp, err := a.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:     f,
		Model:    openai.AudioModel(a.cfg.Model),
		Language: openai.String(a.cfg.Language),
	})
	if err != nil {
		return "", fmt.Errorf("whisper api: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	log.Debug().
		Str("component", "whisperapi").
		Float64("audioSeconds", float64(len(samples))/float64(sampleRate)).
		Dur("took", time.Since(start)).
		Str("text", text).
		Msg("Transcribed audio")
	return text, nil
}
