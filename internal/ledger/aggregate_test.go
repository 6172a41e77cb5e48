package ledger

import (
	"reflect"
	"testing"
	"time"

	"tradejoy/internal/core"
)

func tx(id int64, kind core.Kind, amount string, day core.Date) core.Transaction {
	cat := kind.DefaultCategory()
	return core.Transaction{
		ID:          id,
		Kind:        kind,
		Amount:      core.MustMoney(amount),
		Description: "item",
		Category:    cat,
		OccurredAt:  day.Add(9 * time.Hour),
		Date:        day,
	}
}

func TestAggregate_Empty(t *testing.T) {
	got := Aggregate(nil, core.NewDate(2025, 3, 10))
	if got != (core.Totals{}) {
		t.Fatalf("want zero totals, got %+v", got)
	}
}

func TestAggregate_Totals(t *testing.T) {
	today := core.NewDate(2025, 3, 10)
	yesterday := core.NewDate(2025, 3, 9)
	txs := []core.Transaction{
		tx(4, core.KindExpense, "30", today),
		tx(3, core.KindSale, "120.50", today),
		tx(2, core.KindExpense, "50", yesterday),
		tx(1, core.KindSale, "200", yesterday),
	}

	got := Aggregate(txs, today)
	want := core.Totals{
		TotalSales:        core.MustMoney("320.50"),
		TotalExpenses:     core.MustMoney("80"),
		NetProfit:         core.MustMoney("240.50"),
		TodaySales:        core.MustMoney("120.50"),
		TodayExpenses:     core.MustMoney("30"),
		TodayProfit:       core.MustMoney("90.50"),
		TotalTransactions: 4,
	}
	if got != want {
		t.Fatalf("got %+v\nwant %+v", got, want)
	}
}

func TestAggregate_NegativeProfit(t *testing.T) {
	today := core.NewDate(2025, 3, 10)
	got := Aggregate([]core.Transaction{tx(1, core.KindExpense, "45", today)}, today)
	if got.NetProfit.Cents != -4500 || got.TodayProfit.Cents != -4500 {
		t.Fatalf("unexpected profit: %+v", got)
	}
}

func TestAggregate_PrependAdjustsNetProfit(t *testing.T) {
	today := core.NewDate(2025, 3, 10)
	base := []core.Transaction{
		tx(2, core.KindExpense, "12.25", today),
		tx(1, core.KindSale, "99.99", today),
	}
	before := Aggregate(base, today)

	for _, added := range []core.Transaction{
		tx(3, core.KindSale, "10.01", today),
		tx(3, core.KindExpense, "500", today),
	} {
		after := Aggregate(append([]core.Transaction{added}, base...), today)
		if after.NetProfit != before.NetProfit.Add(added.Signed()) {
			t.Fatalf("net profit %s after adding %s %s, before %s", after.NetProfit, added.Kind, added.Amount, before.NetProfit)
		}
		if after.TotalTransactions != before.TotalTransactions+1 {
			t.Fatalf("count %d, want %d", after.TotalTransactions, before.TotalTransactions+1)
		}
	}
}

func TestAggregate_IdempotentAndPure(t *testing.T) {
	today := core.NewDate(2025, 3, 10)
	txs := []core.Transaction{
		tx(2, core.KindSale, "10", today),
		tx(1, core.KindExpense, "4", core.NewDate(2025, 3, 1)),
	}
	snapshot := append([]core.Transaction(nil), txs...)

	first := Aggregate(txs, today)
	second := Aggregate(txs, today)
	if first != second {
		t.Fatalf("aggregate not idempotent: %+v vs %+v", first, second)
	}
	if !reflect.DeepEqual(txs, snapshot) {
		t.Fatalf("aggregate mutated its input")
	}
}
