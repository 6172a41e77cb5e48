// Package ledger owns the in-memory transaction list of the voice ledger and
// derives its totals.
package ledger

import "tradejoy/internal/core"

// Aggregate computes totals over txs with a full rescan. Transactions whose
// record-time date equals today also count towards the Today fields.
// txs is not modified.
func Aggregate(txs []core.Transaction, today core.Date) core.Totals {
	var t core.Totals
	for _, tx := range txs {
		isToday := tx.Date.Same(today)
		switch tx.Kind {
		case core.KindSale:
			t.TotalSales = t.TotalSales.Add(tx.Amount)
			if isToday {
				t.TodaySales = t.TodaySales.Add(tx.Amount)
			}
		case core.KindExpense:
			t.TotalExpenses = t.TotalExpenses.Add(tx.Amount)
			if isToday {
				t.TodayExpenses = t.TodayExpenses.Add(tx.Amount)
			}
		}
	}
	t.NetProfit = t.TotalSales.Sub(t.TotalExpenses)
	t.TodayProfit = t.TodaySales.Sub(t.TodayExpenses)
	t.TotalTransactions = len(txs)
	return t
}
