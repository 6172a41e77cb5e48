package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"tradejoy/internal/core"
)

func newProfileCommand(a *app) *cobra.Command {
	var (
		name, kind    string
		daily, weekly string
	)

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or update the business profile",
		Long: `profile prints the business profile. Any flag given updates that field;
the daily target is what the coaching tip measures today's profit against.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.loadLedger(cmd.Context())
			if err != nil {
				return err
			}

			p := l.Profile()
			flags := cmd.Flags()
			if flags.Changed("name") {
				p.BusinessName = name
			}
			if flags.Changed("type") {
				p.BusinessType = kind
			}
			for _, t := range []struct {
				flag, value string
				dst         *core.Money
			}{
				{"daily-target", daily, &p.DailyTarget},
				{"weekly-target", weekly, &p.WeeklyTarget},
			} {
				if !flags.Changed(t.flag) {
					continue
				}
				cents, err := core.ParseDecimalToCents(t.value)
				if err != nil {
					return fmt.Errorf("--%s: %w", t.flag, err)
				}
				*t.dst = core.Money{Cents: cents}
			}

			if p != l.Profile() {
				if p, err = l.UpdateProfile(cmd.Context(), p); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Business name: %s\n", p.BusinessName)
			fmt.Fprintf(out, "Business type: %s\n", p.BusinessType)
			fmt.Fprintf(out, "Daily target:  %s\n", p.DailyTarget)
			fmt.Fprintf(out, "Weekly target: %s\n", p.WeeklyTarget)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "business name")
	cmd.Flags().StringVar(&kind, "type", "", "business type")
	cmd.Flags().StringVar(&daily, "daily-target", "", "daily profit target")
	cmd.Flags().StringVar(&weekly, "weekly-target", "", "weekly profit target")
	return cmd
}
