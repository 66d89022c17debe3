// Package storagetest holds behaviour tests shared by every storage.Store
// implementation.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"cashbook/internal/core"
	"cashbook/internal/storage"

	"github.com/shopspring/decimal"
)

// Run exercises store contract behaviour against fresh stores from newStore.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("expense round trip", func(t *testing.T) { testExpenseRoundTrip(t, newStore(t)) })
	t.Run("expense ranges", func(t *testing.T) { testExpenseRanges(t, newStore(t)) })
	t.Run("move expense", func(t *testing.T) { testMoveExpense(t, newStore(t)) })
	t.Run("move history order", func(t *testing.T) { testMoveHistoryOrder(t, newStore(t)) })
	t.Run("cash upsert", func(t *testing.T) { testCashUpsert(t, newStore(t)) })
	t.Run("cash ranges", func(t *testing.T) { testCashRanges(t, newStore(t)) })
	t.Run("holidays", func(t *testing.T) { testHolidays(t, newStore(t)) })
	t.Run("not found", func(t *testing.T) { testNotFound(t, newStore(t)) })
}

var base = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func sampleExpense(id string, date core.DateKey, amount string, offset time.Duration) core.Expense {
	return core.Expense{
		ID:          id,
		Amount:      decimal.RequireFromString(amount),
		Purpose:     "fuel",
		Date:        date,
		Spender:     core.Admin{ID: "a-1"},
		ReceiptImg:  "receipts/" + id + ".jpg",
		SubmittedAt: base.Add(offset),
	}
}

func testExpenseRoundTrip(t *testing.T, s storage.Store) {
	ctx := context.Background()
	want := sampleExpense("e1", "2024-03-04", "1000.50", 0)
	want.Spender = core.CSO{ID: "c-7"}
	if err := s.InsertExpense(ctx, want); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := s.GetExpense(ctx, "e1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != want.ID || got.Date != want.Date || got.Purpose != want.Purpose || got.ReceiptImg != want.ReceiptImg {
		t.Fatalf("mismatch: got %+v want %+v", got, want)
	}
	if !got.Amount.Equal(want.Amount) {
		t.Fatalf("amount mismatch: got %s want %s", got.Amount, want.Amount)
	}
	if got.Spender != want.Spender {
		t.Fatalf("spender mismatch: got %#v want %#v", got.Spender, want.Spender)
	}
	if !got.SubmittedAt.Equal(want.SubmittedAt) {
		t.Fatalf("submittedAt mismatch: got %v want %v", got.SubmittedAt, want.SubmittedAt)
	}
	if got.MovedAt != nil {
		t.Fatalf("new expense should not carry movedAt, got %v", got.MovedAt)
	}
	n, err := s.CountExpenses(ctx)
	if err != nil || n != 1 {
		t.Fatalf("count = %d, %v; want 1", n, err)
	}
}

func testExpenseRanges(t *testing.T, s storage.Store) {
	ctx := context.Background()
	for i, e := range []core.Expense{
		sampleExpense("a", "2024-03-04", "10", 2*time.Minute),
		sampleExpense("b", "2024-03-04", "20", time.Minute),
		sampleExpense("c", "2024-03-05", "30", 0),
		sampleExpense("d", "2024-04-01", "40", 0),
	} {
		if err := s.InsertExpense(ctx, e); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	day, err := s.ListExpensesByDate(ctx, "2024-03-04")
	if err != nil {
		t.Fatalf("list by date: %v", err)
	}
	if len(day) != 2 {
		t.Fatalf("expected 2 expenses on 2024-03-04, got %d", len(day))
	}

	month, err := s.ListExpensesBetween(ctx, "2024-03-01", "2024-03-31")
	if err != nil {
		t.Fatalf("list between: %v", err)
	}
	if len(month) != 3 {
		t.Fatalf("expected 3 March expenses, got %d", len(month))
	}
	for i := 1; i < len(month); i++ {
		if month[i-1].Date > month[i].Date {
			t.Fatalf("range not ordered by date: %s before %s", month[i-1].Date, month[i].Date)
		}
	}

	empty, err := s.ListExpensesByDate(ctx, "2024-03-06")
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected no expenses, got %d (%v)", len(empty), err)
	}
}

func testMoveExpense(t *testing.T, s storage.Store) {
	ctx := context.Background()
	if err := s.InsertExpense(ctx, sampleExpense("e1", "2024-03-04", "1000", 0)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	first := base.Add(time.Hour)
	moved, err := s.MoveExpense(ctx, core.ExpenseMove{ID: "m1", ExpenseID: "e1", ToDate: "2024-03-05", MovedAt: first})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if moved.Date != "2024-03-05" || moved.MovedAt == nil || !moved.MovedAt.Equal(first) {
		t.Fatalf("unexpected moved expense: %+v", moved)
	}

	second := base.Add(2 * time.Hour)
	if _, err := s.MoveExpense(ctx, core.ExpenseMove{ID: "m2", ExpenseID: "e1", ToDate: "2024-03-05", MovedAt: second}); err != nil {
		t.Fatalf("same-date move: %v", err)
	}

	got, err := s.GetExpense(ctx, "e1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Date != "2024-03-05" || got.MovedAt == nil || !got.MovedAt.Equal(second) {
		t.Fatalf("same-date move should restamp movedAt, got %+v", got)
	}

	old, _ := s.ListExpensesByDate(ctx, "2024-03-04")
	if len(old) != 0 {
		t.Fatalf("expense still listed on old date")
	}

	moves, err := s.ListExpenseMoves(ctx, "e1")
	if err != nil {
		t.Fatalf("list moves: %v", err)
	}
	if len(moves) != 2 {
		t.Fatalf("expected 2 moves, got %d", len(moves))
	}
	if moves[0].FromDate != "2024-03-04" || moves[0].ToDate != "2024-03-05" {
		t.Fatalf("unexpected first move: %+v", moves[0])
	}
	if moves[1].FromDate != "2024-03-05" || moves[1].ToDate != "2024-03-05" {
		t.Fatalf("unexpected second move: %+v", moves[1])
	}
}

func testMoveHistoryOrder(t *testing.T, s storage.Store) {
	ctx := context.Background()
	if err := s.InsertExpense(ctx, sampleExpense("e1", "2024-03-04", "1000", 0)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	at := base.Add(time.Hour)
	offsets := []time.Duration{0, 5 * time.Millisecond, 120 * time.Millisecond, 123 * time.Millisecond, time.Second}
	targets := []core.DateKey{"2024-03-05", "2024-03-06", "2024-03-07", "2024-03-08", "2024-03-11"}
	for i, off := range offsets {
		move := core.ExpenseMove{ID: fmt.Sprintf("m%d", i), ExpenseID: "e1", ToDate: targets[i], MovedAt: at.Add(off)}
		if _, err := s.MoveExpense(ctx, move); err != nil {
			t.Fatalf("move %d: %v", i, err)
		}
	}

	moves, err := s.ListExpenseMoves(ctx, "e1")
	if err != nil {
		t.Fatalf("list moves: %v", err)
	}
	if len(moves) != len(offsets) {
		t.Fatalf("expected %d moves, got %d", len(offsets), len(moves))
	}
	for i, m := range moves {
		if m.ToDate != targets[i] || !m.MovedAt.Equal(at.Add(offsets[i])) {
			t.Fatalf("move %d out of order: %+v", i, m)
		}
	}
}

func testCashUpsert(t *testing.T, s storage.Store) {
	ctx := context.Background()
	if _, err := s.UpsertCashSnapshot(ctx, core.CashSnapshot{Date: "2024-03-04", Amount: decimal.NewFromInt(500), UpdatedAt: base}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	later := base.Add(time.Hour)
	if _, err := s.UpsertCashSnapshot(ctx, core.CashSnapshot{Date: "2024-03-04", Amount: decimal.NewFromInt(750), UpdatedAt: later}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := s.GetCashSnapshot(ctx, "2024-03-04")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Amount.Equal(decimal.NewFromInt(750)) || !got.UpdatedAt.Equal(later) {
		t.Fatalf("expected 750 at %v, got %+v", later, got)
	}

	all, err := s.ListCashSnapshotsBetween(ctx, "2024-03-01", "2024-03-31")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected exactly one snapshot for the date, got %d", len(all))
	}
}

func testCashRanges(t *testing.T, s storage.Store) {
	ctx := context.Background()
	for _, d := range []core.DateKey{"2024-02-29", "2024-03-01", "2024-03-16", "2024-03-31", "2024-04-01"} {
		if _, err := s.UpsertCashSnapshot(ctx, core.CashSnapshot{Date: d, Amount: decimal.NewFromInt(1), UpdatedAt: base}); err != nil {
			t.Fatalf("upsert %s: %v", d, err)
		}
	}
	got, err := s.ListCashSnapshotsBetween(ctx, "2024-03-01", "2024-03-31")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 || got[0].Date != "2024-03-31" || got[2].Date != "2024-03-01" {
		t.Fatalf("unexpected March snapshots: %+v", got)
	}
}

func testHolidays(t *testing.T, s storage.Store) {
	ctx := context.Background()
	hs := []core.Holiday{
		{ID: "h2", Holiday: "2024-03-29", Reason: "Good Friday"},
		{ID: "h1", Holiday: "2000-12-25", Reason: "Christmas", IsRecurring: true},
	}
	for _, h := range hs {
		if err := s.InsertHoliday(ctx, h); err != nil {
			t.Fatalf("insert %s: %v", h.ID, err)
		}
	}
	got, err := s.GetHoliday(ctx, "h1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != hs[1] {
		t.Fatalf("got %+v, want %+v", got, hs[1])
	}

	list, err := s.ListHolidays(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 holidays, got %d", len(list))
	}

	if err := s.DeleteHoliday(ctx, "h2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteHoliday(ctx, "h2"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete should be NotFound, got %v", err)
	}
	list, _ = s.ListHolidays(ctx)
	if len(list) != 1 || list[0].ID != "h1" {
		t.Fatalf("unexpected holidays after delete: %+v", list)
	}
}

func testNotFound(t *testing.T, s storage.Store) {
	ctx := context.Background()
	if _, err := s.GetExpense(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("GetExpense: expected NotFound, got %v", err)
	}
	if _, err := s.MoveExpense(ctx, core.ExpenseMove{ID: "m", ExpenseID: "missing", ToDate: "2024-03-05", MovedAt: base}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("MoveExpense: expected NotFound, got %v", err)
	}
	if _, err := s.GetCashSnapshot(ctx, "2024-03-04"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("GetCashSnapshot: expected NotFound, got %v", err)
	}
	if _, err := s.GetHoliday(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("GetHoliday: expected NotFound, got %v", err)
	}
	if err := s.DeleteHoliday(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("DeleteHoliday: expected NotFound, got %v", err)
	}
}
