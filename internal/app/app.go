// Package app wires the service together: storage, STT backend, scenario
// lookup, the merge engine and its worker, and the Kafka subscriber and
// publisher.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"

	"ai-speech-asr-service/internal/config"
	"ai-speech-asr-service/internal/events"
	"ai-speech-asr-service/internal/observability/logging"
	"ai-speech-asr-service/internal/observability/metrics"
	"ai-speech-asr-service/internal/schema"
	"ai-speech-asr-service/internal/service/asr"
	"ai-speech-asr-service/internal/service/audio"
	"ai-speech-asr-service/internal/service/scenario"
	"ai-speech-asr-service/internal/service/segment"
	"ai-speech-asr-service/internal/service/stt"
	"ai-speech-asr-service/internal/service/stt/google"
	"ai-speech-asr-service/internal/service/stt/mock"
	"ai-speech-asr-service/internal/service/stt/whisperapi"
	"ai-speech-asr-service/internal/service/stt/whispercpp"
	"ai-speech-asr-service/internal/storage"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration

	Worker    *asr.Worker
	Validator *schema.Validator
	Metrics   *metrics.Metrics

	publisher  *events.Publisher
	subscriber *events.Subscriber
	closers    []func() error

	consuming atomic.Bool
	failed    chan error

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var (
	errWorkerStopped = errors.New("worker not running")
	errNotConsuming  = errors.New("VAD subscriber not running")
)

// NewTranscriber builds the configured STT backend. The returned close
// function is never nil.
func NewTranscriber(ctx context.Context, cfg config.STTConfig) (stt.Transcriber, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Provider {
	case config.ProviderMock, "":
		return mock.New(), noop, nil
	case config.ProviderGoogle:
		a, err := google.New(ctx, google.Config{
			LanguageCode: cfg.LanguageCode,
			SampleRateHz: cfg.SampleRateHz,
			Hints:        cfg.Hints,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("google stt: %w", err)
		}
		return a, a.Close, nil
	case config.ProviderWhisperAPI:
		return whisperapi.New(whisperapi.Config{
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
			Model:    cfg.Model,
			Language: cfg.Language(),
			Storage:  cfg.StorageDir,
		}), noop, nil
	case config.ProviderWhisperCpp:
		return whispercpp.New(whispercpp.Config{
			URL:      cfg.URL,
			Language: cfg.Language(),
			Storage:  cfg.StorageDir,
		}), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown stt provider %q", cfg.Provider)
	}
}

// New constructs the Application from the provided configuration.
func New(ctx context.Context, cfg *config.Configuration) (*Application, error) {
	a := &Application{
		Cfg:     cfg,
		Logger:  logging.WithComponent("application"),
		Metrics: metrics.DefaultMetrics,
		failed:  make(chan error, 1),
	}

	if err := a.setupSentry(); err != nil {
		a.Logger.Warn().Err(err).Msg("Sentry init failed, error reporting disabled")
	}

	validator, err := schema.New()
	if err != nil {
		return nil, fmt.Errorf("build payload schema: %w", err)
	}
	a.Validator = validator

	store, err := storage.New(ctx, storage.Config{
		Backend:  cfg.Storage.Backend,
		Dir:      cfg.Storage.Dir,
		Bucket:   cfg.Storage.Bucket,
		Prefix:   cfg.Storage.Prefix,
		Region:   cfg.Storage.Region,
		Endpoint: cfg.Storage.Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	transcriber, closeSTT, err := NewTranscriber(ctx, cfg.STT)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeSTT)

	scenarios, closeScenarios, err := scenario.Open(ctx, scenario.Config{
		Backend:     cfg.Scenario.Backend,
		StaticID:    cfg.Scenario.ID,
		BadgerDir:   cfg.Scenario.BadgerDir,
		DatabaseURL: cfg.Scenario.DatabaseURL,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open scenario lookup: %w", err)
	}
	a.closers = append(a.closers, func() error { closeScenarios(); return nil })

	a.publisher = events.New(&events.Config{
		Enabled:   cfg.Kafka.Enabled,
		Brokers:   cfg.Kafka.Brokers,
		Topic:     cfg.ASR.ASRTopic,
		Principal: cfg.Kafka.Principal,
	})
	a.closers = append(a.closers, a.publisher.Close)

	a.subscriber = events.NewSubscriber(&events.Config{
		Enabled:   cfg.Kafka.Enabled,
		Brokers:   cfg.Kafka.Brokers,
		Topic:     cfg.ASR.VADTopic,
		GroupID:   cfg.Kafka.GroupID,
		Principal: cfg.Kafka.Principal,
	})
	a.closers = append(a.closers, a.subscriber.Close)

	loader := audio.NewStoreLoader(store, audio.Limits{MaxDuration: cfg.SegmentLimits.MaxDuration})
	engine := asr.NewEngine(loader, transcriber, scenarios, a.publisher, asr.Options{
		GapTimeout: cfg.ASR.GapTimeout,
		Policy:     asr.Policy(cfg.ASR.Policy),
		Provider:   cfg.STT.Provider,
		IDs:        segment.UUIDGenerator{},
		Validator:  validator,
		Metrics:    a.Metrics,
	})
	a.Worker = asr.NewWorker(engine, asr.QueueSize(cfg.ASR.Buffer, engine.GapTimeout()), a.Metrics)
	a.Worker.OnError = func(err error) { sentry.CaptureException(err) }

	a.Logger.Info().
		Str("vadTopic", cfg.ASR.VADTopic).
		Str("asrTopic", cfg.ASR.ASRTopic).
		Str("policy", cfg.ASR.Policy).
		Dur("gapTimeout", engine.GapTimeout()).
		Str("sttProvider", cfg.STT.Provider).
		Str("storage", cfg.Storage.Backend).
		Str("scenario", cfg.Scenario.Backend).
		Msg("AI Speech ASR service application created")
	return a, nil
}

func (a *Application) setupSentry() error {
	dsn := a.Cfg.Observability.SentryDSN
	if dsn == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:        dsn,
		ServerName: a.Cfg.Service.Principal,
	})
}

// Start launches the worker and begins consuming VAD events.
func (a *Application) Start(ctx context.Context) error {
	a.StartupTime = time.Now().UTC()

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.Worker.Start(runCtx)

	a.consuming.Store(true)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		err := a.subscriber.Run(runCtx, a.Worker.Submit)
		a.consuming.Store(false)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, asr.ErrStopped) {
			a.Logger.Error().Err(err).Msg("VAD subscriber stopped")
			sentry.CaptureException(err)
			select {
			case a.failed <- err:
			default:
			}
		}
	}()

	a.Logger.Info().
		Time("startupTime", a.StartupTime).
		Msg("AI Speech ASR service starting")
	return nil
}

// Ready returns nil while the worker runs and VAD events are being consumed.
func (a *Application) Ready() error {
	switch {
	case !a.Worker.Running():
		return errWorkerStopped
	case !a.consuming.Load():
		return errNotConsuming
	}
	return nil
}

// Status reports the worker state.
func (a *Application) Status() asr.Status { return a.Worker.Status() }

// Failed delivers the error that stopped the VAD subscriber. The service
// no longer consumes events once it fires and should be restarted.
func (a *Application) Failed() <-chan error { return a.failed }

// Shutdown stops intake, flushes the pending utterance and releases all
// resources.
func (a *Application) Shutdown(ctx context.Context) {
	a.Logger.Info().Msg("AI Speech ASR service shutting down")

	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	if err := a.Worker.Stop(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("Worker did not stop cleanly")
	}
	a.close()
	sentry.Flush(2 * time.Second)
}

func (a *Application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn().Err(err).Msg("Close failed")
		}
	}
	a.closers = nil
}
