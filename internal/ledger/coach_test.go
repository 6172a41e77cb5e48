package ledger

import (
	"strings"
	"testing"

	"tradejoy/internal/core"
)

func TestCoach_Tip(t *testing.T) {
	c := DefaultCoach()

	tests := []struct {
		name   string
		totals core.Totals
		prefix string
	}{
		{"empty ledger", core.Totals{}, "Welcome!"},
		{"above target", core.Totals{TotalTransactions: 3, TodayProfit: core.MustMoney("650"), NetProfit: core.MustMoney("650")}, "Excellent! You're ₹650.00"},
		{"exactly target is not above", core.Totals{TotalTransactions: 3, TodayProfit: core.MustMoney("500")}, "Good work! You're ₹500.00"},
		{"positive net only", core.Totals{TotalTransactions: 2, NetProfit: core.MustMoney("75")}, "Overall, you're ₹75.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Tip(tt.totals)
			if !strings.HasPrefix(got, tt.prefix) {
				t.Fatalf("Tip()=%q, want prefix %q", got, tt.prefix)
			}
		})
	}
}

func TestCoach_GeneralTipRotates(t *testing.T) {
	c := DefaultCoach()
	loss := core.Money{Cents: -100}

	first := c.Tip(core.Totals{TotalTransactions: 1, NetProfit: loss, TodayProfit: loss})
	second := c.Tip(core.Totals{TotalTransactions: 2, NetProfit: loss, TodayProfit: loss})
	if first == second {
		t.Fatalf("expected different general tips, got %q twice", first)
	}
	if first != generalTips[1] {
		t.Fatalf("got %q, want %q", first, generalTips[1])
	}
}

func TestCoach_ForProfile(t *testing.T) {
	today := core.Totals{TotalTransactions: 3, TodayProfit: core.MustMoney("650"), NetProfit: core.MustMoney("650")}

	c := DefaultCoach().ForProfile(core.Profile{DailyTarget: core.MustMoney("1000")})
	if got := c.Tip(today); !strings.HasPrefix(got, "Good work!") {
		t.Fatalf("650 is below a 1000 target, got %q", got)
	}

	c = DefaultCoach().ForProfile(core.Profile{DailyTarget: core.MustMoney("200")})
	if got := c.Tip(today); !strings.HasPrefix(got, "Excellent!") {
		t.Fatalf("650 exceeds a 200 target, got %q", got)
	}

	c = DefaultCoach().ForProfile(core.Profile{})
	if c.DailyTarget != DefaultCoach().DailyTarget {
		t.Fatalf("a profile without a target keeps the default, got %v", c.DailyTarget)
	}
}
