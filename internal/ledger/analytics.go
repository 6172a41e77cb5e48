package ledger

import (
	"sort"

	"tradejoy/internal/core"
)

// Daily returns per-day sales, expenses and profit for the days days ending
// at today, oldest first. Days without transactions are reported as zero.
func Daily(txs []core.Transaction, today core.Date, days int) []core.DailyTotals {
	if days < 1 {
		days = 1
	}
	out := make([]core.DailyTotals, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		d := core.Date{Time: today.AddDate(0, 0, i-days+1)}
		out[i].Date = d
		index[d.String()] = i
	}

	for _, tx := range txs {
		i, ok := index[tx.Date.String()]
		if !ok {
			continue
		}
		switch tx.Kind {
		case core.KindSale:
			out[i].Sales = out[i].Sales.Add(tx.Amount)
		case core.KindExpense:
			out[i].Expenses = out[i].Expenses.Add(tx.Amount)
		}
	}
	for i := range out {
		out[i].Profit = out[i].Sales.Sub(out[i].Expenses)
	}
	return out
}

// SalesByCategory sums sales per category, largest first.
func SalesByCategory(txs []core.Transaction) []core.CategoryAmount {
	sums := map[core.Category]core.Money{}
	for _, tx := range txs {
		if tx.Kind == core.KindSale {
			sums[tx.Category] = sums[tx.Category].Add(tx.Amount)
		}
	}

	out := make([]core.CategoryAmount, 0, len(sums))
	for c, m := range sums {
		out = append(out, core.CategoryAmount{Category: c, Amount: m})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Category < out[j].Category
	})
	return out
}
