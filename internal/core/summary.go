package core

// Totals is the derived view of a transaction list.
type Totals struct {
	TotalSales        Money `json:"total_sales"`
	TotalExpenses     Money `json:"total_expenses"`
	NetProfit         Money `json:"net_profit"`
	TodaySales        Money `json:"today_sales"`
	TodayExpenses     Money `json:"today_expenses"`
	TodayProfit       Money `json:"today_profit"`
	TotalTransactions int   `json:"total_transactions"`
}

// DailyTotals holds sales and expenses for one calendar day.
type DailyTotals struct {
	Date     Date  `json:"date"`
	Sales    Money `json:"sales"`
	Expenses Money `json:"expenses"`
	Profit   Money `json:"profit"`
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Category Category `json:"category"`
	Amount   Money    `json:"amount"`
}
