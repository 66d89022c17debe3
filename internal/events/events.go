// Package events describes the notifications emitted after ledger writes
// commit. Delivery is best effort: a failed publish never undoes a write.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cashbook/internal/core"

	"github.com/google/uuid"
)

type Kind string

const (
	ExpenseCreated  Kind = "expense.created"
	ExpenseMoved    Kind = "expense.moved"
	CashSnapshotSet Kind = "cash.snapshot_set"
	HolidayCreated  Kind = "holiday.created"
	HolidayDeleted  Kind = "holiday.deleted"
)

// Event carries the committed record so consumers need no read-back.
type Event struct {
	ID         string             `json:"id"`
	Kind       Kind               `json:"kind"`
	OccurredAt time.Time          `json:"occurredAt"`
	Expense    *core.Expense      `json:"expense,omitempty"`
	Move       *core.ExpenseMove  `json:"move,omitempty"`
	Cash       *core.CashSnapshot `json:"cash,omitempty"`
	Holiday    *core.Holiday      `json:"holiday,omitempty"`
}

func newEvent(kind Kind, at time.Time) Event {
	return Event{ID: uuid.NewString(), Kind: kind, OccurredAt: at.UTC()}
}

func NewExpenseCreated(e core.Expense, at time.Time) Event {
	ev := newEvent(ExpenseCreated, at)
	ev.Expense = &e
	return ev
}

func NewExpenseMoved(e core.Expense, m core.ExpenseMove) Event {
	ev := newEvent(ExpenseMoved, m.MovedAt)
	ev.Expense = &e
	ev.Move = &m
	return ev
}

func NewCashSnapshotSet(s core.CashSnapshot) Event {
	ev := newEvent(CashSnapshotSet, s.UpdatedAt)
	ev.Cash = &s
	return ev
}

func NewHolidayCreated(h core.Holiday, at time.Time) Event {
	ev := newEvent(HolidayCreated, at)
	ev.Holiday = &h
	return ev
}

func NewHolidayDeleted(h core.Holiday, at time.Time) Event {
	ev := newEvent(HolidayDeleted, at)
	ev.Holiday = &h
	return ev
}

// Key groups events about the same record, for partitioning and ordering.
func (e Event) Key() string {
	switch {
	case e.Expense != nil:
		return "expense:" + e.Expense.ID
	case e.Cash != nil:
		return "cash:" + string(e.Cash.Date)
	case e.Holiday != nil:
		return "holiday:" + e.Holiday.ID
	default:
		return e.ID
	}
}

func (e Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("event without id")
	}
	switch e.Kind {
	case ExpenseCreated:
		if e.Expense == nil {
			return fmt.Errorf("%s event without expense", e.Kind)
		}
	case ExpenseMoved:
		if e.Expense == nil || e.Move == nil {
			return fmt.Errorf("%s event without expense or move", e.Kind)
		}
	case CashSnapshotSet:
		if e.Cash == nil {
			return fmt.Errorf("%s event without snapshot", e.Kind)
		}
	case HolidayCreated, HolidayDeleted:
		if e.Holiday == nil {
			return fmt.Errorf("%s event without holiday", e.Kind)
		}
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	return nil
}

func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func FromJSON(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards events. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(ctx context.Context, e Event) error {
	slog.DebugContext(ctx, "Event publishing disabled, dropping event", "kind", e.Kind, "key", e.Key())
	return nil
}

func (Nop) Close() error { return nil }

// Recorder keeps published events in memory. Err, when set, is returned
// from every Publish.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *Recorder) Close() error { return nil }
