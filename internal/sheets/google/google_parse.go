package google

import (
	"fmt"
	"strconv"
	"strings"

	"tradejoy/internal/core"
)

// transactionRow renders tx in column order id, date, kind, category,
// description, amount.
func transactionRow(tx core.Transaction) []any {
	return []any{
		tx.ID,
		tx.Date.String(),
		tx.Kind.String(),
		string(tx.Category),
		tx.Description,
		tx.Amount.Float(),
	}
}

// indexRows maps the id in the first cell of each row to its 1-based row
// number. Header, blank and cleared rows are skipped.
func indexRows(values [][]interface{}) map[int64]int {
	out := make(map[int64]int, len(values))
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		id, ok := parseID(row[0])
		if !ok {
			continue
		}
		out[id] = i + 1
	}
	return out
}

// parseID accepts ids rendered as integers or as whole floats.
func parseID(v interface{}) (int64, bool) {
	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "" {
		return 0, false
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil && id > 0 {
		return id, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 || f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}
