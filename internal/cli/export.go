package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tradejoy/internal/export"
	"tradejoy/internal/log"
)

func newExportCommand(a *app) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the ledger to an XLSX workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.loadLedger(cmd.Context())
			if err != nil {
				return err
			}

			loc, err := a.cfg.Location()
			if err != nil {
				return err
			}
			now := time.Now().In(loc)
			if out == "" {
				out = export.Filename(now)
			}
			report := export.Report{
				Transactions: l.List(0),
				Totals:       l.Totals(),
				Categories:   l.SalesByCategory(),
				GeneratedAt:  now,
			}
			if err := export.WriteFile(out, report); err != nil {
				return err
			}

			a.logger.Info("Ledger exported", log.FieldOperation, log.OpExport, "path", out, "count", len(report.Transactions))
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d transactions to %s\n", len(report.Transactions), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (default tradejoy-YYYY-MM-DD.xlsx)")
	return cmd
}
