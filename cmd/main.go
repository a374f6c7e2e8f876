package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	grpcapi "ai-speech-asr-service/internal/api/grpc"
	"ai-speech-asr-service/internal/app"
	"ai-speech-asr-service/internal/config"
	httpapi "ai-speech-asr-service/internal/http"
	"ai-speech-asr-service/internal/observability"
	"ai-speech-asr-service/internal/observability/logging"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.Load()

	logging.Init(logging.Config{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
	})

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	httpServer := observability.NewServer(":"+cfg.Service.HTTPPort, httpapi.NewRouter(application))
	if err := httpServer.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start HTTP server")
	}

	grpcServer := grpcapi.New(":"+cfg.Service.GRPCPort, application.Metrics)
	if err := grpcServer.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start gRPC server")
	}

	if err := application.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}
	grpcServer.SetServing(true)

	log.Info().
		Str("httpAddr", httpServer.Addr()).
		Str("grpcAddr", grpcServer.Addr()).
		Msg("Speech ASR Service started")

	exitCode := 0
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case err := <-application.Failed():
		log.Error().Err(err).Msg("VAD intake failed, shutting down")
		exitCode = 1
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	grpcServer.SetServing(false)
	application.Shutdown(shutdownCtx)
	grpcServer.Shutdown(shutdownCtx)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	cancel()
	os.Exit(exitCode)
}
