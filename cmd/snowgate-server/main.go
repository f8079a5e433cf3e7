// Package main is the entrypoint for the SnowGate license authority.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/glaciersoft/snowgate/internal/api"
	"github.com/glaciersoft/snowgate/internal/config"
	"github.com/glaciersoft/snowgate/internal/db"
	"github.com/glaciersoft/snowgate/internal/ledger"
	"github.com/glaciersoft/snowgate/internal/license"
	"github.com/glaciersoft/snowgate/internal/metrics"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	logger.Info().
		Str("version", version).
		Str("environment", string(cfg.Environment)).
		Msg("starting snowgate license authority")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	database, err := db.New(ctx, db.DefaultConfig(cfg.DatabaseURL), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	m := metrics.New()
	seatLedger := ledger.New(database, m, logger)

	sweeper := ledger.NewSweeper(seatLedger, logger)
	if err := sweeper.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start sweeper")
	}
	defer sweeper.Stop()

	secret := []byte(cfg.LicenseSecret)
	router, err := api.NewRouter(api.Deps{
		Config:  cfg,
		DB:      database,
		Ledger:  seatLedger,
		Codec:   license.NewCodec(secret),
		Signer:  license.NewSigner(secret),
		Metrics: m,
		Logger:  logger,
		Version: version,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build router")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown failed")
	}
	logger.Info().Msg("shutdown complete")
}

func newLogger(cfg *config.ServerConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	if cfg.Environment == config.EnvDevelopment {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			Level(level).
			With().
			Timestamp().
			Logger()
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}
