package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tradejoy/internal/config"
	"tradejoy/internal/ledger"
	"tradejoy/internal/log"
	"tradejoy/internal/storage"
)

// app holds what the subcommands share. Fields left nil are built from the
// environment on first use.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	ledger  *ledger.Ledger
	journal *storage.SQLiteJournal
}

// Execute runs the tradejoy command line tool.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// NewRootCommand builds the tradejoy command tree configured from the
// environment.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{})
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "tradejoy",
		Short: "Voice command interpreter and sales/expense ledger",
		Long: `tradejoy turns short spoken phrases into trading and ledger commands.

Example Usage:
  tradejoy interpret "buy 10 AAPL"
  tradejoy interpret --mode ledger "sold bread for 120"
  tradejoy assistant --mode ledger
  tradejoy stats --days 14
  tradejoy export --out ledger.xlsx
  tradejoy profile --name "Mama's Kitchen" --daily-target 800`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	root.AddCommand(
		newInterpretCommand(a),
		newAssistantCommand(a),
		newStatsCommand(a),
		newExportCommand(a),
		newProfileCommand(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	if a.cfg == nil {
		LoadEnvFile()
		cfg := config.Load()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		a.cfg = cfg
	}
	if a.logger == nil {
		a.logger = SetupLogger(cmd.ErrOrStderr(), a.cfg)
	}
	a.logger = a.logger.WithComponent(log.ComponentCLI)
	return nil
}

// loadLedger builds the ledger on first use, replaying the journal when
// DATA_BACKEND is sqlite. The CLI never publishes events.
func (a *app) loadLedger(ctx context.Context) (*ledger.Ledger, error) {
	if a.ledger != nil {
		return a.ledger, nil
	}
	journal, err := OpenJournal(a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	a.journal = journal

	l, err := BuildLedger(ctx, a.cfg, a.logger, journal, nil)
	if err != nil {
		return nil, err
	}
	a.ledger = l
	return l, nil
}

func (a *app) close() error {
	if a.journal == nil {
		return nil
	}
	err := a.journal.Close()
	a.journal = nil
	return err
}
