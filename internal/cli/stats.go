package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tradejoy/internal/ledger"
)

func newStatsCommand(a *app) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print ledger totals, a daily breakdown and a coaching tip",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 || days > 365 {
				return fmt.Errorf("--days must be between 1 and 365, got %d", days)
			}
			l, err := a.loadLedger(cmd.Context())
			if err != nil {
				return err
			}

			totals := l.Totals()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)

			fmt.Fprintln(w, "\tSales\tExpenses\tProfit\t")
			fmt.Fprintf(w, "Today\t%s\t%s\t%s\t\n", totals.TodaySales, totals.TodayExpenses, totals.TodayProfit)
			fmt.Fprintf(w, "All time\t%s\t%s\t%s\t\n", totals.TotalSales, totals.TotalExpenses, totals.NetProfit)
			fmt.Fprintln(w, "\t\t\t\t")
			for _, d := range l.Daily(days) {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", d.Date, d.Sales, d.Expenses, d.Profit)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if cats := l.SalesByCategory(); len(cats) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Sales by category:")
				for _, c := range cats {
					fmt.Fprintf(out, "  %s: %s\n", c.Category, c.Amount)
				}
			}
			fmt.Fprintf(out, "\nTransactions: %d\n", totals.TotalTransactions)
			fmt.Fprintf(out, "Tip: %s\n", ledger.DefaultCoach().ForProfile(l.Profile()).Tip(totals))
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "number of days in the daily breakdown")
	return cmd
}
