package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"tradejoy/internal/cli"
	"tradejoy/internal/config"
	apphttp "tradejoy/internal/http"
	"tradejoy/internal/log"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(os.Stdout, cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	journal, err := cli.OpenJournal(cfg, logger)
	if err != nil {
		logger.Error("Failed to open journal", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	var ready func(context.Context) error
	if journal != nil {
		defer journal.Close()
		ready = journal.Ping
	}

	publisher, err := cli.OpenPublisher(cfg, logger)
	if err != nil {
		// Events are best effort; the ledger keeps working without them.
		logger.Warn("AMQP publisher unavailable, ledger events disabled", log.FieldError, err)
	}
	if publisher != nil {
		defer publisher.Close()
	}

	ledger, err := cli.BuildLedger(ctx, cfg, logger, journal, publisher)
	if err != nil {
		logger.Error("Failed to initialize ledger", log.FieldError, err)
		os.Exit(1)
	}

	voice, err := cli.LedgerInterpreter(cfg)
	if err != nil {
		logger.Error("Failed to load ledger keywords", log.FieldError, err, "path", cfg.LedgerKeywordsFile)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Ledger:             ledger,
		Voice:              voice,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Ready:              ready,
	})

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	}()

	logger.Info("Starting tradejoy server",
		log.FieldOperation, log.OpStartup,
		"port", cfg.Port, "backend", cfg.DataBackend, "transactions", ledger.Len())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	<-shutdownDone
	logger.Info("Server stopped gracefully")
}
