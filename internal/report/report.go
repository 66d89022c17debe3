// Package report renders monthly ledger workbooks.
package report

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"cashbook/internal/aggregate"
	"cashbook/internal/core"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	expensesSheet = "Expenses"
	summarySheet  = "Daily Summary"
	cashSheet     = "Cash"
)

// Source is the read side of the ledger a report is built from.
type Source interface {
	MonthExpenses(ctx context.Context, year, month int) ([]core.Expense, error)
	CashHistory(ctx context.Context, year, month int) ([]core.CashSnapshot, error)
}

// Filename is the attachment name for a month's workbook.
func Filename(year, month int) string {
	return fmt.Sprintf("expenses-%04d-%02d.xlsx", year, month)
}

// Monthly builds a workbook with the month's itemised expenses, the per-day
// totals and the cash snapshots recorded in that month.
func Monthly(ctx context.Context, src Source, year, month int) (*excelize.File, error) {
	expenses, err := src.MonthExpenses(ctx, year, month)
	if err != nil {
		return nil, fmt.Errorf("load month expenses: %w", err)
	}
	cash, err := src.CashHistory(ctx, year, month)
	if err != nil {
		return nil, fmt.Errorf("load cash history: %w", err)
	}
	summary := aggregate.MonthlyExpenseSummary(year, time.Month(month), expenses)

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", expensesSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename default sheet: %w", err)
	}
	for _, name := range []string{summarySheet, cashSheet} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	w := &sheetWriter{f: f}
	w.row(expensesSheet, 1, "Date", "Expense ID", "Amount", "Purpose", "Spender Type", "Spender ID", "Receipt", "Submitted At", "Moved At")
	for i, e := range expenses {
		moved := ""
		if e.MovedAt != nil {
			moved = e.MovedAt.UTC().Format(time.RFC3339)
		}
		w.row(expensesSheet, i+2,
			string(e.Date), e.ID, e.Amount, e.Purpose,
			string(e.Spender.Kind()), e.Spender.StaffID(), e.ReceiptImg,
			e.SubmittedAt.UTC().Format(time.RFC3339), moved)
	}

	count := 0
	w.row(summarySheet, 1, "Date", "Count", "Total")
	for i, d := range summary {
		count += d.Count
		w.row(summarySheet, i+2, string(d.Date), d.Count, d.TotalAmount)
	}
	w.row(summarySheet, len(summary)+2, "Month Total", count, aggregate.MonthTotal(summary))

	w.row(cashSheet, 1, "Date", "Amount", "Updated At")
	for i, s := range cash {
		w.row(cashSheet, i+2, string(s.Date), s.Amount, s.UpdatedAt.UTC().Format(time.RFC3339))
	}

	if w.err != nil {
		f.Close()
		return nil, w.err
	}

	slog.InfoContext(ctx, "Built monthly report",
		"year", year,
		"month", month,
		"expenses", len(expenses),
		"days", len(summary),
		"cash_snapshots", len(cash))
	return f, nil
}

// WriteMonthly streams the month's workbook to out.
func WriteMonthly(ctx context.Context, out io.Writer, src Source, year, month int) error {
	f, err := Monthly(ctx, src, year, month)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// sheetWriter keeps the first error so rows can be written without
// checking each call. decimal.Decimal values are written exactly.
type sheetWriter struct {
	f   *excelize.File
	err error
}

func (w *sheetWriter) row(sheet string, n int, values ...any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		w.err = fmt.Errorf("cell name for row %d: %w", n, err)
		return
	}
	if err := w.f.SetSheetRow(sheet, cell, &values); err != nil {
		w.err = fmt.Errorf("write %s row %d: %w", sheet, n, err)
		return
	}
	// Amounts go in as numeric cells holding the exact decimal text.
	for i, v := range values {
		d, ok := v.(decimal.Decimal)
		if !ok {
			continue
		}
		cell, _ = excelize.CoordinatesToCellName(i+1, n)
		if err := w.f.SetCellDefault(sheet, cell, d.String()); err != nil {
			w.err = fmt.Errorf("write %s amount %s: %w", sheet, cell, err)
			return
		}
	}
}
