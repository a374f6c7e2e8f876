// Package whispercpp provides a backend for the whisper.cpp HTTP server
// (/inference endpoint).
package whispercpp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"ai-speech-asr-service/internal/service/stt"
)

// DefaultURL is the inference endpoint of a locally running server.
const DefaultURL = "http://127.0.0.1:8989/inference"

// Config holds whisper.cpp server configuration.
type Config struct {
	URL      string
	Language string
	Storage  string        // Directory for WAV uploads; files are kept when set
	Timeout  time.Duration // HTTP timeout per request
}

// Adapter implements stt.Transcriber against a whisper.cpp server.
type Adapter struct {
	cfg Config
	hc  *http.Client
}

var _ stt.Transcriber = (*Adapter)(nil)

type inferenceResponse struct {
	Text string `json:"text"`
}

// New creates a whisper.cpp adapter.
func New(cfg Config) *Adapter {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Adapter{cfg: cfg, hc: &http.Client{Timeout: cfg.Timeout}}
}

// Transcribe posts samples as a WAV form upload and returns the trimmed text.
func (a *Adapter) Transcribe(ctx context.Context, samples []int16, sampleRate int) (string, error) {
	if err := stt.ValidateInput(samples, sampleRate); err != nil {
		return "", err
	}

	path, cleanup, err := stt.TempWAV(a.cfg.Storage, a.cfg.Storage != "", samples, sampleRate)
	if err != nil {
		return "", err
	}
	defer cleanup()

	body, contentType, err := a.form(path)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.URL, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := a.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper.cpp request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("whisper.cpp http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("whisper.cpp decode: %w", err)
	}

	text := strings.TrimSpace(out.Text)
	log.Debug().
		Str("component", "whispercpp").
		Float64("audioSeconds", float64(len(samples))/float64(sampleRate)).
		Dur("took", time.Since(start)).
		Str("text", text).
		Msg("Transcribed audio")
	return text, nil
}

func (a *Adapter) form(path string) (*bytes.Buffer, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("language", a.cfg.Language); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &body, mw.FormDataContentType(), nil
}
