package sheets

import (
	"fmt"
	"time"

	"cashbook/internal/core"
	"cashbook/internal/events"
)

// Column headers of the mirrored sheets. Column A always holds the event id
// so redelivered events can be recognised.
var (
	ExpenseHeader = []any{"Event ID", "Kind", "Expense ID", "Date", "Amount", "Purpose", "Spender Type", "Spender ID", "Receipt", "At", "Moved From"}
	CashHeader    = []any{"Event ID", "Date", "Amount", "Updated At"}
)

const timestampLayout = "2006-01-02 15:04:05"

// ExpenseRow renders an expense event as one sheet row.
func ExpenseRow(ev events.Event) ([]any, error) {
	if ev.Expense == nil {
		return nil, fmt.Errorf("%s event %s has no expense", ev.Kind, ev.ID)
	}
	e := ev.Expense
	at := e.SubmittedAt
	from := ""
	if ev.Move != nil {
		at = ev.Move.MovedAt
		from = string(ev.Move.FromDate)
	}
	return []any{
		ev.ID,
		string(ev.Kind),
		e.ID,
		string(e.Date),
		core.FormatAmount(e.Amount),
		e.Purpose,
		string(e.Spender.Kind()),
		e.Spender.StaffID(),
		e.ReceiptImg,
		stamp(at),
		from,
	}, nil
}

// CashRow renders a cash snapshot event as one sheet row.
func CashRow(ev events.Event) ([]any, error) {
	if ev.Cash == nil {
		return nil, fmt.Errorf("%s event %s has no snapshot", ev.Kind, ev.ID)
	}
	return []any{
		ev.ID,
		string(ev.Cash.Date),
		core.FormatAmount(ev.Cash.Amount),
		stamp(ev.Cash.UpdatedAt),
	}, nil
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}
