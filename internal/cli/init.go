// Package cli provides common initialization shared by cmd/tradejoy,
// cmd/tradejoy-worker and the tradejoy command line tool.
package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"tradejoy/internal/amqp"
	"tradejoy/internal/config"
	"tradejoy/internal/intent"
	"tradejoy/internal/ledger"
	"tradejoy/internal/log"
	"tradejoy/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default. Invalid values fall back to info/text;
// Validate reports them.
func SetupLogger(w io.Writer, cfg *config.Config) *log.Logger {
	level, _ := log.ParseLevel(cfg.LogLevel)
	logger := log.New(log.Config{
		Level:     level,
		Component: log.ComponentApp,
		Handler:   log.NewHandler(w, cfg.LogFormat, level),
	})
	log.SetDefault(logger)
	return logger
}

// OpenJournal opens the SQLite journal when DATA_BACKEND is sqlite and
// returns nil otherwise.
func OpenJournal(cfg *config.Config, logger *log.Logger) (*storage.SQLiteJournal, error) {
	if cfg.DataBackend != config.BackendSQLite {
		return nil, nil
	}
	j, err := storage.NewSQLiteJournal(cfg.SQLiteDBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", cfg.SQLiteDBPath, err)
	}
	return j, nil
}

// OpenPublisher connects to RabbitMQ when AMQP_URL is set and returns nil
// otherwise.
func OpenPublisher(cfg *config.Config, logger *log.Logger) (*amqp.Client, error) {
	if cfg.AMQPURL == "" {
		return nil, nil
	}
	c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to AMQP: %w", err)
	}
	return c, nil
}

// LedgerInterpreter returns the ledger-mode interpreter, with the keyword
// file applied when one is configured.
func LedgerInterpreter(cfg *config.Config) (*intent.Interpreter, error) {
	k := intent.DefaultKeywords()
	if cfg.LedgerKeywordsFile != "" {
		loaded, err := intent.LoadKeywords(cfg.LedgerKeywordsFile)
		if err != nil {
			return nil, err
		}
		k = loaded
	}
	return intent.NewLedger(k), nil
}

// BuildLedger creates the ledger, replays the journal and seeds demo data
// when enabled and nothing was restored. journal and publisher may be nil.
func BuildLedger(ctx context.Context, cfg *config.Config, logger *log.Logger, journal *storage.SQLiteJournal, publisher *amqp.Client) (*ledger.Ledger, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	opts := ledger.Options{Location: loc, Logger: logger}
	if journal != nil {
		opts.Journal = journal
		opts.Profiles = journal
	}
	if publisher != nil {
		opts.Publisher = publisher
	}
	l := ledger.New(opts)

	restored, err := l.Restore(ctx)
	if err != nil {
		return nil, err
	}
	if restored == 0 && cfg.LedgerSeedDemo {
		if _, err := l.Seed(ctx); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)
	}()
	return ctx, stop
}
