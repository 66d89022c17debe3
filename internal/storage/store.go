package storage

import (
	"context"

	"cashbook/internal/core"
)

// Store is the durable home of every ledger record. Writes are committed
// before the call returns. Lookups of unknown ids or dates return an error
// wrapping core.ErrNotFound.
type Store interface {
	InsertExpense(ctx context.Context, e core.Expense) error
	GetExpense(ctx context.Context, id string) (core.Expense, error)
	// MoveExpense sets the expense date and moved-at stamp and appends the
	// move to the audit history in one transaction. FromDate is filled in
	// by the store.
	MoveExpense(ctx context.Context, move core.ExpenseMove) (core.Expense, error)
	ListExpensesByDate(ctx context.Context, date core.DateKey) ([]core.Expense, error)
	// ListExpensesBetween returns expenses dated within [from, to].
	ListExpensesBetween(ctx context.Context, from, to core.DateKey) ([]core.Expense, error)
	CountExpenses(ctx context.Context) (int, error)
	ListExpenseMoves(ctx context.Context, expenseID string) ([]core.ExpenseMove, error)

	// UpsertCashSnapshot replaces any snapshot already stored for the date.
	UpsertCashSnapshot(ctx context.Context, s core.CashSnapshot) (core.CashSnapshot, error)
	GetCashSnapshot(ctx context.Context, date core.DateKey) (core.CashSnapshot, error)
	// ListCashSnapshotsBetween returns snapshots within [from, to], newest first.
	ListCashSnapshotsBetween(ctx context.Context, from, to core.DateKey) ([]core.CashSnapshot, error)

	InsertHoliday(ctx context.Context, h core.Holiday) error
	GetHoliday(ctx context.Context, id string) (core.Holiday, error)
	DeleteHoliday(ctx context.Context, id string) error
	ListHolidays(ctx context.Context) ([]core.Holiday, error)

	Close() error
}
