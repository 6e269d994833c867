// Package main is the entry point for the Adtalos mediation bridge
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thenexusengine/tne_adtalos/internal/config"
	"github.com/thenexusengine/tne_adtalos/pkg/logger"
)

func main() {
	cfg, err := ParseConfig()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		TimeFormat: time.RFC3339,
	})
	log := logger.Log

	server, err := NewServer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}
}
