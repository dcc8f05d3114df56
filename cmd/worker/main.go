package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"vigil-worker-go/internal/config"
	"vigil-worker-go/internal/logging"
	"vigil-worker-go/internal/services"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load configuration
	cfg := config.Load()

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("Invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Optionally tee logs into the embedded Logdy viewer
	if cfg.LogdyEnabled {
		if w, url, err := logging.StartLogdy(cfg); err == nil {
			log.Logger = log.Output(io.MultiWriter(zerolog.ConsoleWriter{Out: os.Stderr}, w))
			log.Info().Str("url", url).Msg("Log tee enabled")
		} else {
			log.Warn().Err(err).Msg("Failed to start Logdy, continuing without it")
		}
	}

	log.Info().
		Str("worker_id", cfg.WorkerID).
		Str("version", cfg.Version).
		Str("environment", cfg.Environment).
		Bool("nats_enabled", cfg.NatsEnabled).
		Bool("tts_enabled", cfg.TTSEnabled).
		Bool("vision_judge_enabled", cfg.JudgeVisionEnabled).
		Msg("Starting Vigil loss-prevention worker")

	container, err := services.NewServiceContainer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutdown signal received")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := container.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Services forced to shutdown")
	} else {
		log.Info().Msg("Shutdown complete")
	}
}
