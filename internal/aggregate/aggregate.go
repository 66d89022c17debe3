// Package aggregate builds read-only day, month and year views over ledger
// records. Functions here never touch storage.
package aggregate

import (
	"sort"
	"time"

	"cashbook/internal/core"

	"github.com/shopspring/decimal"
)

// DailyExpenses returns the expenses dated on day, in submission order.
func DailyExpenses(day core.DateKey, expenses []core.Expense) core.DailyExpenses {
	out := core.DailyExpenses{
		Date:        day,
		Items:       []core.Expense{},
		TotalAmount: decimal.Zero,
	}
	for _, e := range expenses {
		if e.Date != day {
			continue
		}
		out.Items = append(out.Items, e)
		out.TotalAmount = out.TotalAmount.Add(e.Amount)
	}
	sort.SliceStable(out.Items, func(i, j int) bool {
		return out.Items[i].SubmittedAt.Before(out.Items[j].SubmittedAt)
	})
	out.Count = len(out.Items)
	return out
}

// MonthlyExpenseSummary groups a month's expenses by day, newest day first.
// Days without expenses are omitted.
func MonthlyExpenseSummary(year int, month time.Month, expenses []core.Expense) []core.DaySummary {
	byDay := make(map[core.DateKey]*core.DaySummary)
	for _, e := range expenses {
		if !e.Date.InMonth(year, month) {
			continue
		}
		s, ok := byDay[e.Date]
		if !ok {
			s = &core.DaySummary{Date: e.Date, TotalAmount: decimal.Zero}
			byDay[e.Date] = s
		}
		s.Count++
		s.TotalAmount = s.TotalAmount.Add(e.Amount)
	}

	out := make([]core.DaySummary, 0, len(byDay))
	for _, s := range byDay {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

// MonthTotal sums a monthly summary.
func MonthTotal(summary []core.DaySummary) decimal.Decimal {
	total := decimal.Zero
	for _, s := range summary {
		total = total.Add(s.TotalAmount)
	}
	return total
}

// ExpenseTotal sums expense amounts exactly.
func ExpenseTotal(expenses []core.Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// CashHistory returns the month's cash snapshots, newest first.
func CashHistory(year int, month time.Month, snapshots []core.CashSnapshot) []core.CashSnapshot {
	out := make([]core.CashSnapshot, 0, len(snapshots))
	for _, s := range snapshots {
		if s.Date.InMonth(year, month) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

// YearlyHolidays splits holidays into the recurring set, which applies to
// every year, and the one-time holidays falling in year. Both lists are
// ordered by month and day.
func YearlyHolidays(year int, holidays []core.Holiday) core.YearlyHolidays {
	out := core.YearlyHolidays{
		Year:      year,
		Recurring: []core.Holiday{},
		OneTime:   []core.Holiday{},
	}
	for _, h := range holidays {
		switch {
		case h.IsRecurring:
			out.Recurring = append(out.Recurring, h)
		case h.Holiday.Year() == year:
			out.OneTime = append(out.OneTime, h)
		}
	}
	sort.SliceStable(out.Recurring, func(i, j int) bool {
		return out.Recurring[i].Holiday.MonthDay() < out.Recurring[j].Holiday.MonthDay()
	})
	sort.SliceStable(out.OneTime, func(i, j int) bool {
		return out.OneTime[i].Holiday < out.OneTime[j].Holiday
	})
	return out
}
