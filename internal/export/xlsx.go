// Package export renders the ledger as an XLSX workbook.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"tradejoy/internal/core"
)

const (
	SheetTransactions = "Transactions"
	SheetSummary      = "Summary"

	// ContentType is the media type of the workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	numFmtTwoDecimals = 2 // built-in "0.00"
)

var transactionHeader = []any{"ID", "Date", "Time", "Type", "Category", "Description", "Amount"}

// Report is everything one export contains.
type Report struct {
	Transactions []core.Transaction // newest first
	Totals       core.Totals
	Categories   []core.CategoryAmount
	GeneratedAt  time.Time
}

// Filename is the suggested download name for a report generated at t.
func Filename(t time.Time) string {
	return fmt.Sprintf("tradejoy-%s.xlsx", t.Format("2006-01-02"))
}

// Workbook builds the workbook for r. The caller closes the file.
func Workbook(r Report) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetTransactions); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetSummary); err != nil {
		f.Close()
		return nil, fmt.Errorf("create summary sheet: %w", err)
	}

	styles, err := newStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := writeTransactions(f, styles, r.Transactions); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSummary(f, styles, r); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// Write streams the workbook for r to w.
func Write(w io.Writer, r Report) error {
	f, err := Workbook(r)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// WriteFile saves the workbook for r at path.
func WriteFile(path string, r Report) error {
	f, err := Workbook(r)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

type styles struct {
	header int
	amount int
}

func newStyles(f *excelize.File) (styles, error) {
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#E2EFDA"}},
	})
	if err != nil {
		return styles{}, fmt.Errorf("header style: %w", err)
	}
	amount, err := f.NewStyle(&excelize.Style{NumFmt: numFmtTwoDecimals})
	if err != nil {
		return styles{}, fmt.Errorf("amount style: %w", err)
	}
	return styles{header: header, amount: amount}, nil
}

func writeTransactions(f *excelize.File, st styles, txs []core.Transaction) error {
	sheet := SheetTransactions
	if err := f.SetSheetRow(sheet, "A1", &transactionHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", "G1", st.header); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, tx := range txs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			tx.ID,
			tx.Date.String(),
			tx.OccurredAt.Format("15:04:05"),
			tx.Kind.String(),
			string(tx.Category),
			tx.Description,
			tx.Amount.Float(),
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write transaction %d: %w", tx.ID, err)
		}
	}

	if len(txs) > 0 {
		last, err := excelize.CoordinatesToCellName(7, len(txs)+1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, "G2", last, st.amount); err != nil {
			return fmt.Errorf("style amounts: %w", err)
		}
	}

	if err := f.SetColWidth(sheet, "F", "F", 40); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeSummary(f *excelize.File, st styles, r Report) error {
	sheet := SheetSummary
	t := r.Totals
	rows := [][]any{
		{"Metric", "Value"},
		{"Total sales", t.TotalSales.Float()},
		{"Total expenses", t.TotalExpenses.Float()},
		{"Net profit", t.NetProfit.Float()},
		{"Today's sales", t.TodaySales.Float()},
		{"Today's expenses", t.TodayExpenses.Float()},
		{"Today's profit", t.TodayProfit.Float()},
		{"Transactions", t.TotalTransactions},
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}
	if err := f.SetCellStyle(sheet, "A1", "B1", st.header); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "B2", "B7", st.amount); err != nil {
		return err
	}

	next := len(rows) + 2
	header := []any{"Sales by category", "Amount"}
	cell, _ := excelize.CoordinatesToCellName(1, next)
	if err := f.SetSheetRow(sheet, cell, &header); err != nil {
		return err
	}
	end, _ := excelize.CoordinatesToCellName(2, next)
	if err := f.SetCellStyle(sheet, cell, end, st.header); err != nil {
		return err
	}
	for i, c := range r.Categories {
		row := []any{string(c.Category), c.Amount.Float()}
		cell, _ := excelize.CoordinatesToCellName(1, next+1+i)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write category %s: %w", c.Category, err)
		}
		amt, _ := excelize.CoordinatesToCellName(2, next+1+i)
		if err := f.SetCellStyle(sheet, amt, amt, st.amount); err != nil {
			return err
		}
	}

	if !r.GeneratedAt.IsZero() {
		row := []any{"Generated at", r.GeneratedAt.Format(time.RFC3339)}
		cell, _ := excelize.CoordinatesToCellName(1, next+len(r.Categories)+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	return f.SetColWidth(sheet, "A", "A", 22)
}
