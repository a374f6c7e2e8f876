// Package config loads service configuration from the environment and an
// optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog/log"
)

// Engine policies.
const (
	PolicyMerge  = "merge"
	PolicyLegacy = "legacy"
)

// STT providers.
const (
	ProviderMock       = "mock"
	ProviderGoogle     = "google"
	ProviderWhisperAPI = "whisperapi"
	ProviderWhisperCpp = "whispercpp"
)

// Configuration holds all service settings.
type Configuration struct {
	Service       ServiceConfig
	ASR           ASRConfig
	Kafka         KafkaConfig
	STT           STTConfig
	Storage       StorageConfig
	Scenario      ScenarioConfig
	SegmentLimits SegmentLimitsConfig
	Observability ObservabilityConfig

	fileErr error
}

type ServiceConfig struct {
	Principal string
	GRPCPort  string
	HTTPPort  string
}

// ASRConfig holds the engine options.
type ASRConfig struct {
	VADTopic   string
	ASRTopic   string
	GapTimeout time.Duration // 0 disables continuation handling
	Buffer     int           // inbound queue depth
	Policy     string
}

type KafkaConfig struct {
	Enabled   bool
	Brokers   []string
	GroupID   string
	Principal string
}

type STTConfig struct {
	Provider     string
	LanguageCode string
	SampleRateHz int
	Model        string
	APIKey       string
	BaseURL      string // OpenAI-compatible endpoint for whisperapi
	URL          string // whisper.cpp inference endpoint
	Hints        []string
	StorageDir   string // keeps uploaded WAV files when set
}

// Language returns the primary subtag of LanguageCode ("en-US" -> "en"),
// the form expected by Whisper backends.
func (c STTConfig) Language() string {
	lang, _, _ := strings.Cut(c.LanguageCode, "-")
	return strings.ToLower(lang)
}

type StorageConfig struct {
	Backend  string
	Dir      string
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
}

type ScenarioConfig struct {
	Backend     string
	ID          string
	BadgerDir   string
	DatabaseURL string
}

type SegmentLimitsConfig struct {
	MaxDuration time.Duration
}

type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string
	SentryDSN string
}

// fileConfig is the layout of ASR_CONFIG_FILE. The keys match the option
// names used by the rest of the pipeline.
type fileConfig struct {
	ASR struct {
		VADTopic   string `yaml:"vad_topic"`
		ASRTopic   string `yaml:"asr_topic"`
		GapTimeout *int   `yaml:"gap_timeout"`
		Buffer     *int   `yaml:"buffer"`
		Policy     string `yaml:"policy"`
	} `yaml:"asr"`
}

// Load builds the configuration: defaults, then ASR_CONFIG_FILE, then
// environment variables. Unparseable values fall back to the previous layer.
// A broken config file is reported by Validate.
func Load() *Configuration {
	cfg := defaults()

	if path := os.Getenv("ASR_CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			log.Error().Err(err).Str("path", path).Msg("Failed to load config file")
			cfg.fileErr = err
		}
	}

	principal := envOrDefault("SERVICE_PRINCIPAL", cfg.Service.Principal)
	cfg.Service = ServiceConfig{
		Principal: principal,
		GRPCPort:  envOrDefault("GRPC_PORT", cfg.Service.GRPCPort),
		HTTPPort:  envOrDefault("HTTP_PORT", cfg.Service.HTTPPort),
	}

	cfg.ASR = ASRConfig{
		VADTopic:   envOrDefault("ASR_VAD_TOPIC", cfg.ASR.VADTopic),
		ASRTopic:   envOrDefault("ASR_ASR_TOPIC", cfg.ASR.ASRTopic),
		GapTimeout: time.Duration(envOrDefaultInt("ASR_GAP_TIMEOUT", int(cfg.ASR.GapTimeout/time.Millisecond))) * time.Millisecond,
		Buffer:     envOrDefaultInt("ASR_BUFFER", cfg.ASR.Buffer),
		Policy:     strings.ToLower(envOrDefault("ASR_POLICY", cfg.ASR.Policy)),
	}

	cfg.Kafka = KafkaConfig{
		Enabled:   envOrDefaultBool("KAFKA_ENABLED", false),
		Brokers:   envOrDefaultList("KAFKA_BROKERS", nil),
		GroupID:   envOrDefault("KAFKA_GROUP_ID", principal),
		Principal: envOrDefault("KAFKA_PRINCIPAL", principal),
	}

	cfg.STT = STTConfig{
		Provider:     strings.ToLower(envOrDefault("STT_PROVIDER", cfg.STT.Provider)),
		LanguageCode: envOrDefault("STT_LANGUAGE_CODE", cfg.STT.LanguageCode),
		SampleRateHz: envOrDefaultInt("STT_SAMPLE_RATE_HZ", cfg.STT.SampleRateHz),
		Model:        envOrDefault("STT_MODEL", cfg.STT.Model),
		APIKey:       envOrDefault("STT_API_KEY", os.Getenv("OPENAI_API_KEY")),
		BaseURL:      envOrDefault("STT_BASE_URL", ""),
		URL:          envOrDefault("STT_URL", cfg.STT.URL),
		Hints:        envOrDefaultList("STT_HINTS", nil),
		StorageDir:   envOrDefault("STT_STORAGE_DIR", ""),
	}

	cfg.Storage = StorageConfig{
		Backend:  envOrDefault("STORAGE_BACKEND", cfg.Storage.Backend),
		Dir:      envOrDefault("STORAGE_DIR", cfg.Storage.Dir),
		Bucket:   envOrDefault("STORAGE_BUCKET", ""),
		Prefix:   envOrDefault("STORAGE_PREFIX", ""),
		Region:   envOrDefault("STORAGE_REGION", os.Getenv("AWS_REGION")),
		Endpoint: envOrDefault("STORAGE_ENDPOINT", ""),
	}

	cfg.Scenario = ScenarioConfig{
		Backend:     envOrDefault("SCENARIO_BACKEND", cfg.Scenario.Backend),
		ID:          envOrDefault("SCENARIO_ID", ""),
		BadgerDir:   envOrDefault("SCENARIO_BADGER_DIR", cfg.Scenario.BadgerDir),
		DatabaseURL: envOrDefault("DATABASE_URL", ""),
	}

	cfg.SegmentLimits = SegmentLimitsConfig{
		MaxDuration: envOrDefaultDuration("SEGMENT_MAX_DURATION", cfg.SegmentLimits.MaxDuration),
	}

	cfg.Observability = ObservabilityConfig{
		LogLevel:  envOrDefault("LOG_LEVEL", cfg.Observability.LogLevel),
		LogFormat: envOrDefault("LOG_FORMAT", cfg.Observability.LogFormat),
		SentryDSN: envOrDefault("SENTRY_DSN", ""),
	}

	return cfg
}

func defaults() *Configuration {
	return &Configuration{
		Service: ServiceConfig{
			Principal: "svc-speech-asr",
			GRPCPort:  "50051",
			HTTPPort:  "8080",
		},
		ASR: ASRConfig{
			Policy: PolicyMerge,
		},
		STT: STTConfig{
			Provider:     ProviderMock,
			LanguageCode: "en-US",
			SampleRateHz: 16000,
			Model:        "whisper-1",
			URL:          "http://127.0.0.1:8989/inference",
		},
		Storage: StorageConfig{
			Backend: "local",
			Dir:     "./storage",
		},
		Scenario: ScenarioConfig{
			Backend:   "static",
			BadgerDir: "./scenario-db",
		},
		SegmentLimits: SegmentLimitsConfig{
			MaxDuration: 5 * time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}

func (c *Configuration) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	if fc.ASR.VADTopic != "" {
		c.ASR.VADTopic = fc.ASR.VADTopic
	}
	if fc.ASR.ASRTopic != "" {
		c.ASR.ASRTopic = fc.ASR.ASRTopic
	}
	if fc.ASR.GapTimeout != nil {
		c.ASR.GapTimeout = time.Duration(*fc.ASR.GapTimeout) * time.Millisecond
	}
	if fc.ASR.Buffer != nil {
		c.ASR.Buffer = *fc.ASR.Buffer
	}
	if fc.ASR.Policy != "" {
		c.ASR.Policy = strings.ToLower(fc.ASR.Policy)
	}
	return nil
}

// Validate reports configuration errors that prevent the service from
// starting.
func (c *Configuration) Validate() error {
	var errs []error
	if c.fileErr != nil {
		errs = append(errs, c.fileErr)
	}
	if c.ASR.VADTopic == "" {
		errs = append(errs, errors.New("vad_topic is required (ASR_VAD_TOPIC)"))
	}
	if c.ASR.ASRTopic == "" {
		errs = append(errs, errors.New("asr_topic is required (ASR_ASR_TOPIC)"))
	}
	if c.ASR.GapTimeout < 0 {
		errs = append(errs, fmt.Errorf("gap_timeout must not be negative, got %v", c.ASR.GapTimeout))
	}
	switch c.ASR.Policy {
	case PolicyMerge, PolicyLegacy:
	default:
		errs = append(errs, fmt.Errorf("unknown policy %q", c.ASR.Policy))
	}
	switch c.STT.Provider {
	case ProviderMock, ProviderGoogle, ProviderWhisperAPI, ProviderWhisperCpp:
	default:
		errs = append(errs, fmt.Errorf("unknown STT provider %q", c.STT.Provider))
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS is required when Kafka is enabled"))
	}
	return errors.Join(errs...)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
