package report

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"cashbook/internal/core"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

type fakeSource struct {
	expenses []core.Expense
	cash     []core.CashSnapshot
	err      error
}

func (f *fakeSource) MonthExpenses(context.Context, int, int) ([]core.Expense, error) {
	return f.expenses, f.err
}

func (f *fakeSource) CashHistory(context.Context, int, int) ([]core.CashSnapshot, error) {
	return f.cash, nil
}

func expense(id string, date core.DateKey, amount string) core.Expense {
	return core.Expense{
		ID:          id,
		Amount:      decimal.RequireFromString(amount),
		Purpose:     "fuel",
		Date:        date,
		Spender:     core.CSO{ID: "c-1"},
		ReceiptImg:  "r.jpg",
		SubmittedAt: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
	}
}

func TestWriteMonthly(t *testing.T) {
	src := &fakeSource{
		expenses: []core.Expense{
			expense("e-1", "2024-03-04", "1000"),
			expense("e-2", "2024-03-04", "250.50"),
			expense("e-3", "2024-03-05", "125.90"),
		},
		cash: []core.CashSnapshot{
			{Date: "2024-03-05", Amount: decimal.NewFromInt(750), UpdatedAt: time.Date(2024, 3, 5, 18, 0, 0, 0, time.UTC)},
			{Date: "2024-03-04", Amount: decimal.NewFromInt(500), UpdatedAt: time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC)},
		},
	}

	var buf bytes.Buffer
	if err := WriteMonthly(context.Background(), &buf, src, 2024, 3); err != nil {
		t.Fatalf("WriteMonthly() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	if got := f.GetSheetList(); len(got) != 3 || got[0] != expensesSheet {
		t.Fatalf("sheets = %v", got)
	}

	tests := []struct {
		sheet, cell, want string
	}{
		{expensesSheet, "A1", "Date"},
		{expensesSheet, "B2", "e-1"},
		{expensesSheet, "E4", "cso"},
		{expensesSheet, "F4", "c-1"},
		{summarySheet, "A2", "2024-03-05"},
		{summarySheet, "C2", "125.9"},
		{summarySheet, "A3", "2024-03-04"},
		{summarySheet, "B3", "2"},
		{summarySheet, "C3", "1250.5"},
		{summarySheet, "A4", "Month Total"},
		{summarySheet, "B4", "3"},
		{summarySheet, "C4", "1376.4"},
		{cashSheet, "A2", "2024-03-05"},
		{cashSheet, "B3", "500"},
	}
	for _, tt := range tests {
		t.Run(tt.sheet+"!"+tt.cell, func(t *testing.T) {
			got, err := f.GetCellValue(tt.sheet, tt.cell)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("%s!%s = %q, want %q", tt.sheet, tt.cell, got, tt.want)
			}
		})
	}
}

func TestMonthly_EmptyMonth(t *testing.T) {
	f, err := Monthly(context.Background(), &fakeSource{}, 2024, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	got, _ := f.GetCellValue(summarySheet, "A2")
	if got != "Month Total" {
		t.Fatalf("summary A2 = %q, want Month Total", got)
	}
	total, _ := f.GetCellValue(summarySheet, "C2")
	if total != "0" {
		t.Fatalf("month total = %q, want 0", total)
	}
}

func TestMonthly_ExactAmounts(t *testing.T) {
	src := &fakeSource{expenses: []core.Expense{
		expense("e-1", "2024-03-04", "1000.005"),
		expense("e-2", "2024-03-04", "0.001"),
	}}
	f, err := Monthly(context.Background(), src, 2024, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	raw := excelize.Options{RawCellValue: true}
	tests := []struct {
		sheet, cell, want string
	}{
		{expensesSheet, "C2", "1000.005"},
		{expensesSheet, "C3", "0.001"},
		{summarySheet, "C2", "1000.006"},
		{summarySheet, "C3", "1000.006"},
	}
	for _, tt := range tests {
		got, err := f.GetCellValue(tt.sheet, tt.cell, raw)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("%s!%s = %q, want %q", tt.sheet, tt.cell, got, tt.want)
		}
		typ, err := f.GetCellType(tt.sheet, tt.cell)
		if err != nil {
			t.Fatal(err)
		}
		if typ == excelize.CellTypeInlineString || typ == excelize.CellTypeSharedString {
			t.Errorf("%s!%s stored as text, want a number", tt.sheet, tt.cell)
		}
	}
}

func TestMonthly_SourceError(t *testing.T) {
	boom := errors.New("db down")
	if _, err := Monthly(context.Background(), &fakeSource{err: boom}, 2024, 3); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped source error, got %v", err)
	}
}

func TestFilename(t *testing.T) {
	if got := Filename(2024, 3); got != "expenses-2024-03.xlsx" {
		t.Fatalf("Filename() = %s", got)
	}
}
