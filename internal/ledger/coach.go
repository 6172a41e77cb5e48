package ledger

import (
	"fmt"

	"tradejoy/internal/core"
)

var generalTips = []string{
	"Track every small transaction - they add up quickly!",
	"Try using voice commands for faster data entry.",
	"Set a daily target to stay motivated.",
	"Review your expenses weekly to find savings.",
	"Celebrate small wins to stay motivated!",
}

// Coach turns totals into a short business tip.
type Coach struct {
	DailyTarget core.Money
	Currency    string
}

func DefaultCoach() Coach {
	return Coach{DailyTarget: core.DefaultProfile().DailyTarget, Currency: "₹"}
}

// ForProfile returns c measuring against the profile's daily target.
func (c Coach) ForProfile(p core.Profile) Coach {
	if p.DailyTarget.IsPositive() {
		c.DailyTarget = p.DailyTarget
	}
	return c
}

// Tip picks the most relevant message for t. When no figure stands out a
// general tip is chosen, rotating with the number of transactions.
func (c Coach) Tip(t core.Totals) string {
	switch {
	case t.TotalTransactions == 0:
		return "Welcome! Start by recording your first sale or expense to begin tracking your business."
	case t.TodayProfit.Cents > c.DailyTarget.Cents:
		return fmt.Sprintf("Excellent! You're %s%s in profit today. You're exceeding your daily target!", c.Currency, t.TodayProfit)
	case t.TodayProfit.IsPositive():
		return fmt.Sprintf("Good work! You're %s%s in profit today. Keep it up!", c.Currency, t.TodayProfit)
	case t.NetProfit.IsPositive():
		return fmt.Sprintf("Overall, you're %s%s in profit. Focus on increasing daily sales!", c.Currency, t.NetProfit)
	}
	return generalTips[t.TotalTransactions%len(generalTips)]
}
