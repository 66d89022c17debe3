// Package memory is an in-process ledger store for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cashbook/internal/core"
	"cashbook/internal/storage"
)

// Store keeps everything in maps guarded by one lock. Reads return copies.
type Store struct {
	mu       sync.RWMutex
	expenses map[string]core.Expense
	order    []string
	moves    map[string][]core.ExpenseMove
	cash     map[core.DateKey]core.CashSnapshot
	holidays map[string]core.Holiday
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		expenses: make(map[string]core.Expense),
		moves:    make(map[string][]core.ExpenseMove),
		cash:     make(map[core.DateKey]core.CashSnapshot),
		holidays: make(map[string]core.Holiday),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) InsertExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.expenses[e.ID]; exists {
		return fmt.Errorf("insert expense: duplicate id %s", e.ID)
	}
	s.expenses[e.ID] = copyExpense(e)
	s.order = append(s.order, e.ID)
	return nil
}

func (s *Store) GetExpense(_ context.Context, id string) (core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.expenses[id]
	if !ok {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, core.ErrNotFound)
	}
	return copyExpense(e), nil
}

func (s *Store) MoveExpense(_ context.Context, move core.ExpenseMove) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.expenses[move.ExpenseID]
	if !ok {
		return core.Expense{}, fmt.Errorf("expense %s: %w", move.ExpenseID, core.ErrNotFound)
	}
	move.FromDate = e.Date
	movedAt := move.MovedAt
	e.Date = move.ToDate
	e.MovedAt = &movedAt
	s.expenses[e.ID] = e
	s.moves[e.ID] = append(s.moves[e.ID], move)
	return copyExpense(e), nil
}

func (s *Store) ListExpensesByDate(ctx context.Context, date core.DateKey) ([]core.Expense, error) {
	return s.ListExpensesBetween(ctx, date, date)
}

func (s *Store) ListExpensesBetween(_ context.Context, from, to core.DateKey) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Expense
	for _, id := range s.order {
		e := s.expenses[id]
		if e.Date >= from && e.Date <= to {
			out = append(out, copyExpense(e))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *Store) CountExpenses(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.expenses), nil
}

func (s *Store) ListExpenseMoves(_ context.Context, expenseID string) ([]core.ExpenseMove, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	moves := append([]core.ExpenseMove(nil), s.moves[expenseID]...)
	sort.SliceStable(moves, func(i, j int) bool { return moves[i].MovedAt.Before(moves[j].MovedAt) })
	return moves, nil
}

func (s *Store) UpsertCashSnapshot(_ context.Context, snap core.CashSnapshot) (core.CashSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cash[snap.Date] = snap
	return snap, nil
}

func (s *Store) GetCashSnapshot(_ context.Context, date core.DateKey) (core.CashSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.cash[date]
	if !ok {
		return core.CashSnapshot{}, fmt.Errorf("cash snapshot %s: %w", date, core.ErrNotFound)
	}
	return snap, nil
}

func (s *Store) ListCashSnapshotsBetween(_ context.Context, from, to core.DateKey) ([]core.CashSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.CashSnapshot
	for date, snap := range s.cash {
		if date >= from && date <= to {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

func (s *Store) InsertHoliday(_ context.Context, h core.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.holidays[h.ID]; exists {
		return fmt.Errorf("insert holiday: duplicate id %s", h.ID)
	}
	s.holidays[h.ID] = h
	return nil
}

func (s *Store) GetHoliday(_ context.Context, id string) (core.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.holidays[id]
	if !ok {
		return core.Holiday{}, fmt.Errorf("holiday %s: %w", id, core.ErrNotFound)
	}
	return h, nil
}

func (s *Store) DeleteHoliday(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.holidays[id]; !ok {
		return fmt.Errorf("holiday %s: %w", id, core.ErrNotFound)
	}
	delete(s.holidays, id)
	return nil
}

func (s *Store) ListHolidays(context.Context) ([]core.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Holiday, 0, len(s.holidays))
	for _, h := range s.holidays {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Holiday < out[j].Holiday })
	return out, nil
}

func copyExpense(e core.Expense) core.Expense {
	if e.MovedAt != nil {
		t := *e.MovedAt
		e.MovedAt = &t
	}
	return e
}
