package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"tradejoy/internal/cli"
	"tradejoy/internal/config"
	"tradejoy/internal/log"
	gsheet "tradejoy/internal/sheets/google"
	"tradejoy/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(os.Stdout, cfg)
	if err := cfg.ValidateWorker(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Starting tradejoy-worker", log.FieldOperation, log.OpStartup)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	sheetsClient, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsFile: cfg.GoogleCredentialsFile,
		CredentialsJSON: cfg.GoogleCredentialsJSON,
		Logger:          logger,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := cli.OpenPublisher(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	mirror := worker.NewMirrorWorker(sheetsClient, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeEvents(gctx, mirror.HandleEvent)
	})

	if cfg.WorkerBackfill {
		g.Go(func() error {
			return backfill(gctx, cfg, logger, mirror)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

// backfill mirrors journal transactions the sheet does not have yet, covering
// events published while the worker was down.
func backfill(ctx context.Context, cfg *config.Config, logger *log.Logger, mirror *worker.MirrorWorker) error {
	journal, err := cli.OpenJournal(cfg, logger)
	if err != nil {
		return err
	}
	defer journal.Close()

	txs, err := journal.LoadAll(ctx)
	if err != nil {
		return err
	}
	synced, failed, err := mirror.Backfill(ctx, txs)
	if err != nil {
		return err
	}
	logger.Info("Backfill complete", log.FieldOperation, log.OpSync, "synced", synced, "failed", failed)
	return nil
}
