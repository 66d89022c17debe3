// Package calendar decides which days accept ledger entries.
package calendar

import (
	"fmt"
	"time"

	"cashbook/internal/core"
)

// Calendar is an immutable snapshot of the holiday table. Build a new one
// whenever holidays change.
type Calendar struct {
	oneTime   map[core.DateKey]core.Holiday
	recurring map[string]core.Holiday // keyed by "MM-DD"
}

func New(holidays []core.Holiday) *Calendar {
	c := &Calendar{
		oneTime:   make(map[core.DateKey]core.Holiday),
		recurring: make(map[string]core.Holiday),
	}
	for _, h := range holidays {
		if h.IsRecurring {
			c.recurring[h.Holiday.MonthDay()] = h
			continue
		}
		c.oneTime[h.Holiday] = h
	}
	return c
}

func IsWeekend(k core.DateKey) bool {
	switch k.Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}
	return false
}

// HolidayOn returns the holiday closing k, preferring a one-time entry.
func (c *Calendar) HolidayOn(k core.DateKey) (core.Holiday, bool) {
	if h, ok := c.oneTime[k]; ok {
		return h, true
	}
	h, ok := c.recurring[k.MonthDay()]
	return h, ok
}

func (c *Calendar) IsBusinessDay(k core.DateKey) bool {
	if IsWeekend(k) {
		return false
	}
	_, closed := c.HolidayOn(k)
	return !closed
}

// Check explains why k is not a business day, or returns nil.
func (c *Calendar) Check(k core.DateKey) error {
	if IsWeekend(k) {
		return fmt.Errorf("%s falls on a %s", k, k.Weekday())
	}
	if h, ok := c.HolidayOn(k); ok {
		if h.Reason != "" {
			return fmt.Errorf("%s is a holiday (%s)", k, h.Reason)
		}
		return fmt.Errorf("%s is a holiday", k)
	}
	return nil
}

// maxWalk bounds NextBusinessDay. A year with no business day at all means
// the holiday table closes every weekday.
const maxWalk = 366

// NextBusinessDay returns the first business day strictly after k. It fails
// with core.ErrInvalidDate when the walk runs past 9999-12-31 or finds no
// business day within a year.
func (c *Calendar) NextBusinessDay(k core.DateKey) (core.DateKey, error) {
	t := k.Time()
	for i := 0; i < maxWalk; i++ {
		t = t.AddDate(0, 0, 1)
		if t.Year() > 9999 {
			return "", fmt.Errorf("%w: no business day after %s", core.ErrInvalidDate, k)
		}
		next := core.DateKey(t.Format(core.DateLayout))
		if c.IsBusinessDay(next) {
			return next, nil
		}
	}
	return "", fmt.Errorf("%w: no business day within a year after %s", core.ErrInvalidDate, k)
}
