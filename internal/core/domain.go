package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical calendar-day form used for every stored key.
const DateLayout = "2006-01-02"

type (
	// DateKey is a calendar day in the business timezone, formatted YYYY-MM-DD.
	// Lexicographic order of keys matches chronological order.
	DateKey string

	// Expense is money paid out of the office cash on a business day. Its
	// JSON form flattens Spender into spenderType and spenderId.
	Expense struct {
		ID          string
		Amount      decimal.Decimal
		Purpose     string
		Date        DateKey
		Spender     Spender
		ReceiptImg  string
		SubmittedAt time.Time
		MovedAt     *time.Time
	}

	// CashSnapshot is the cash counted at hand on a day. One per day; a
	// later write replaces the amount.
	CashSnapshot struct {
		Date      DateKey         `json:"date"`
		Amount    decimal.Decimal `json:"amount"`
		UpdatedAt time.Time       `json:"updatedAt"`
	}

	// Holiday marks a closed day. For recurring holidays only month and day
	// of Holiday are meaningful.
	Holiday struct {
		ID          string  `json:"id"`
		Holiday     DateKey `json:"holiday"`
		Reason      string  `json:"reason,omitempty"`
		IsRecurring bool    `json:"isRecurring"`
	}

	// ExpenseMove records one relocation of an expense between days.
	ExpenseMove struct {
		ID        string    `json:"id"`
		ExpenseID string    `json:"expenseId"`
		FromDate  DateKey   `json:"fromDate"`
		ToDate    DateKey   `json:"toDate"`
		MovedAt   time.Time `json:"movedAt"`
	}
)

// Sentinel errors. Callers match them with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidTargetDate = errors.New("target date is not a business day")
	ErrNotFound          = errors.New("not found")
)

// ValidationError describes a rule-violating input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ParseDateKey accepts only the canonical YYYY-MM-DD form.
func ParseDateKey(s string) (DateKey, error) {
	s = strings.TrimSpace(s)
	if len(s) != len(DateLayout) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	if _, err := time.Parse(DateLayout, s); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateKey(s), nil
}

// NewDateKey builds a key from calendar parts. Out-of-range parts are
// normalised the way time.Date does.
func NewDateKey(year int, month time.Month, day int) DateKey {
	return DateKey(time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Format(DateLayout))
}

func (k DateKey) String() string { return string(k) }

// Time returns midnight UTC of the day. Only the calendar parts are meaningful.
func (k DateKey) Time() time.Time {
	t, _ := time.Parse(DateLayout, string(k))
	return t
}

func (k DateKey) Year() int             { return k.Time().Year() }
func (k DateKey) Month() time.Month     { return k.Time().Month() }
func (k DateKey) Day() int              { return k.Time().Day() }
func (k DateKey) Weekday() time.Weekday { return k.Time().Weekday() }

// MonthDay returns the "MM-DD" suffix used to match recurring holidays.
func (k DateKey) MonthDay() string {
	if len(k) != len(DateLayout) {
		return ""
	}
	return string(k[5:])
}

// InMonth reports whether the key falls in the given year and month.
func (k DateKey) InMonth(year int, month time.Month) bool {
	return strings.HasPrefix(string(k), MonthPrefix(year, month))
}

// MonthPrefix returns the "YYYY-MM-" prefix shared by all keys of a month.
func MonthPrefix(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d-", year, int(month))
}

// MonthBounds returns the first and last keys of a month.
func MonthBounds(year int, month time.Month) (DateKey, DateKey) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return DateKey(first.Format(DateLayout)), DateKey(last.Format(DateLayout))
}

// ValidatePeriod checks a year and month taken from caller input.
func ValidatePeriod(year, month int) error {
	if year < 1 || year > 9999 {
		return invalid("year", "must be between 1 and 9999")
	}
	if month < 1 || month > 12 {
		return invalid("month", "must be between 1 and 12")
	}
	return nil
}

func (k DateKey) Validate() error {
	if _, err := ParseDateKey(string(k)); err != nil {
		return err
	}
	return nil
}

func (e Expense) Validate() error {
	if e.Amount.Sign() <= 0 {
		return invalid("amount", "must be greater than zero")
	}
	if strings.TrimSpace(e.Purpose) == "" {
		return invalid("purpose", "cannot be empty")
	}
	if strings.TrimSpace(e.ReceiptImg) == "" {
		return invalid("receiptImg", "is required")
	}
	if e.Spender == nil {
		return invalid("spenderType", "is required")
	}
	if err := ValidateSpender(e.Spender); err != nil {
		return err
	}
	if err := e.Date.Validate(); err != nil {
		return invalid("date", err.Error())
	}
	return nil
}

func (c CashSnapshot) Validate() error {
	if c.Amount.Sign() < 0 {
		return invalid("amount", "cannot be negative")
	}
	if err := c.Date.Validate(); err != nil {
		return invalid("date", err.Error())
	}
	return nil
}

func (h Holiday) Validate() error {
	if err := h.Holiday.Validate(); err != nil {
		return invalid("date", err.Error())
	}
	if len(h.Reason) > 200 {
		return invalid("reason", "too long (max 200 characters)")
	}
	return nil
}

// Matches reports whether the holiday closes the given day.
func (h Holiday) Matches(k DateKey) bool {
	if h.IsRecurring {
		return h.Holiday.MonthDay() == k.MonthDay()
	}
	return h.Holiday == k
}
