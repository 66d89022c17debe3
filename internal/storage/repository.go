package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cashbook/internal/core"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// timeLayout keeps nine fractional digits so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRepository is the Store backed by a single SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

var _ Store = (*SQLiteRepository)(nil)

// NewSQLiteRepository opens dbPath, creating its directory, and applies
// pending migrations.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if _, err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; one connection serialises writes
	// without SQLITE_BUSY retries.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection. LedgerService.Ready prefers it over a
// table count.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const expenseColumns = `id, amount, purpose, date, spender_type, spender_id, receipt_img, submitted_at, moved_at`

func (r *SQLiteRepository) InsertExpense(ctx context.Context, e core.Expense) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Amount.String(), e.Purpose, string(e.Date),
		string(e.Spender.Kind()), e.Spender.StaffID(), e.ReceiptImg,
		formatTime(e.SubmittedAt), formatTimePtr(e.MovedAt))
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"date", e.Date,
		"amount", e.Amount.String(),
		"spender_type", e.Spender.Kind())
	return nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) MoveExpense(ctx context.Context, move core.ExpenseMove) (core.Expense, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Expense{}, fmt.Errorf("begin move: %w", err)
	}
	defer tx.Rollback()

	e, err := scanExpense(tx.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, move.ExpenseID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %s: %w", move.ExpenseID, core.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("read expense for move: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE expenses SET date = ?, moved_at = ? WHERE id = ?`,
		string(move.ToDate), formatTime(move.MovedAt), move.ExpenseID); err != nil {
		return core.Expense{}, fmt.Errorf("update expense date: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO expense_moves (id, expense_id, from_date, to_date, moved_at) VALUES (?, ?, ?, ?, ?)`,
		move.ID, move.ExpenseID, string(e.Date), string(move.ToDate), formatTime(move.MovedAt)); err != nil {
		return core.Expense{}, fmt.Errorf("record expense move: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.Expense{}, fmt.Errorf("commit move: %w", err)
	}

	slog.InfoContext(ctx, "Expense move saved to SQLite",
		"id", move.ID,
		"expense_id", move.ExpenseID)

	movedAt := move.MovedAt
	e.Date = move.ToDate
	e.MovedAt = &movedAt
	return e, nil
}

func (r *SQLiteRepository) ListExpensesByDate(ctx context.Context, date core.DateKey) ([]core.Expense, error) {
	return r.ListExpensesBetween(ctx, date, date)
}

func (r *SQLiteRepository) ListExpensesBetween(ctx context.Context, from, to core.DateKey) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE date BETWEEN ? AND ? ORDER BY date, submitted_at`,
		string(from), string(to))
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) CountExpenses(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM expenses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count expenses: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) ListExpenseMoves(ctx context.Context, expenseID string) ([]core.ExpenseMove, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, expense_id, from_date, to_date, moved_at FROM expense_moves WHERE expense_id = ? ORDER BY moved_at, rowid`,
		expenseID)
	if err != nil {
		return nil, fmt.Errorf("list expense moves: %w", err)
	}
	defer rows.Close()

	var out []core.ExpenseMove
	for rows.Next() {
		var (
			m        core.ExpenseMove
			from, to string
			movedAt  string
		)
		if err := rows.Scan(&m.ID, &m.ExpenseID, &from, &to, &movedAt); err != nil {
			return nil, fmt.Errorf("scan expense move: %w", err)
		}
		m.FromDate, m.ToDate = core.DateKey(from), core.DateKey(to)
		if m.MovedAt, err = parseTime(movedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expense moves: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) UpsertCashSnapshot(ctx context.Context, s core.CashSnapshot) (core.CashSnapshot, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO cash_snapshots (date, amount, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(date) DO UPDATE SET amount = excluded.amount, updated_at = excluded.updated_at`,
		string(s.Date), s.Amount.String(), formatTime(s.UpdatedAt))
	if err != nil {
		return core.CashSnapshot{}, fmt.Errorf("upsert cash snapshot: %w", err)
	}

	slog.InfoContext(ctx, "Cash snapshot saved to SQLite",
		"date", s.Date,
		"amount", s.Amount.String())
	return s, nil
}

func (r *SQLiteRepository) GetCashSnapshot(ctx context.Context, date core.DateKey) (core.CashSnapshot, error) {
	var amount, updatedAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT amount, updated_at FROM cash_snapshots WHERE date = ?`, string(date)).Scan(&amount, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CashSnapshot{}, fmt.Errorf("cash snapshot %s: %w", date, core.ErrNotFound)
	}
	if err != nil {
		return core.CashSnapshot{}, fmt.Errorf("get cash snapshot: %w", err)
	}
	return buildSnapshot(string(date), amount, updatedAt)
}

func (r *SQLiteRepository) ListCashSnapshotsBetween(ctx context.Context, from, to core.DateKey) ([]core.CashSnapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date, amount, updated_at FROM cash_snapshots WHERE date BETWEEN ? AND ? ORDER BY date DESC`,
		string(from), string(to))
	if err != nil {
		return nil, fmt.Errorf("list cash snapshots: %w", err)
	}
	defer rows.Close()

	var out []core.CashSnapshot
	for rows.Next() {
		var date, amount, updatedAt string
		if err := rows.Scan(&date, &amount, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan cash snapshot: %w", err)
		}
		s, err := buildSnapshot(date, amount, updatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cash snapshots: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) InsertHoliday(ctx context.Context, h core.Holiday) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO holidays (id, holiday, reason, is_recurring) VALUES (?, ?, ?, ?)`,
		h.ID, string(h.Holiday), h.Reason, h.IsRecurring)
	if err != nil {
		return fmt.Errorf("insert holiday: %w", err)
	}

	slog.InfoContext(ctx, "Holiday saved to SQLite",
		"id", h.ID,
		"holiday", h.Holiday,
		"recurring", h.IsRecurring)
	return nil
}

func (r *SQLiteRepository) GetHoliday(ctx context.Context, id string) (core.Holiday, error) {
	var (
		h    core.Holiday
		date string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, holiday, reason, is_recurring FROM holidays WHERE id = ?`, id).
		Scan(&h.ID, &date, &h.Reason, &h.IsRecurring)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Holiday{}, fmt.Errorf("holiday %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Holiday{}, fmt.Errorf("get holiday: %w", err)
	}
	h.Holiday = core.DateKey(date)
	return h, nil
}

func (r *SQLiteRepository) DeleteHoliday(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM holidays WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete holiday: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete holiday: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("holiday %s: %w", id, core.ErrNotFound)
	}

	slog.InfoContext(ctx, "Holiday deleted from SQLite", "id", id)
	return nil
}

func (r *SQLiteRepository) ListHolidays(ctx context.Context) ([]core.Holiday, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, holiday, reason, is_recurring FROM holidays ORDER BY holiday`)
	if err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	defer rows.Close()

	var out []core.Holiday
	for rows.Next() {
		var (
			h    core.Holiday
			date string
		)
		if err := rows.Scan(&h.ID, &date, &h.Reason, &h.IsRecurring); err != nil {
			return nil, fmt.Errorf("scan holiday: %w", err)
		}
		h.Holiday = core.DateKey(date)
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate holidays: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e                    core.Expense
		amount, date         string
		spenderType, spender string
		submittedAt          string
		movedAt              sql.NullString
	)
	if err := row.Scan(&e.ID, &amount, &e.Purpose, &date, &spenderType, &spender, &e.ReceiptImg, &submittedAt, &movedAt); err != nil {
		return core.Expense{}, err
	}

	var err error
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return core.Expense{}, fmt.Errorf("parse amount of expense %s: %w", e.ID, err)
	}
	if e.Spender, err = core.NewSpender(spenderType, spender); err != nil {
		return core.Expense{}, fmt.Errorf("parse spender of expense %s: %w", e.ID, err)
	}
	if e.SubmittedAt, err = parseTime(submittedAt); err != nil {
		return core.Expense{}, err
	}
	if movedAt.Valid {
		t, err := parseTime(movedAt.String)
		if err != nil {
			return core.Expense{}, err
		}
		e.MovedAt = &t
	}
	e.Date = core.DateKey(date)
	return e, nil
}

func buildSnapshot(date, amount, updatedAt string) (core.CashSnapshot, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return core.CashSnapshot{}, fmt.Errorf("parse cash amount for %s: %w", date, err)
	}
	t, err := parseTime(updatedAt)
	if err != nil {
		return core.CashSnapshot{}, err
	}
	return core.CashSnapshot{Date: core.DateKey(date), Amount: d, UpdatedAt: t}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
