package core

import "github.com/shopspring/decimal"

// Read-side projections built by the aggregate package.
type (
	DailyExpenses struct {
		Date        DateKey         `json:"date"`
		Items       []Expense       `json:"items"`
		Count       int             `json:"count"`
		TotalAmount decimal.Decimal `json:"totalAmount"`
	}

	DaySummary struct {
		Date        DateKey         `json:"date"`
		Count       int             `json:"count"`
		TotalAmount decimal.Decimal `json:"totalAmount"`
	}

	YearlyHolidays struct {
		Year      int       `json:"year"`
		Recurring []Holiday `json:"recurring"`
		OneTime   []Holiday `json:"oneTime"`
	}
)

// BusinessDay answers whether a day accepts expenses and, if not, why.
type BusinessDay struct {
	Date        DateKey `json:"date"`
	BusinessDay bool    `json:"businessDay"`
	Reason      string  `json:"reason,omitempty"`
	// Next is the first business day after Date, set only when Date is closed.
	Next        DateKey `json:"nextBusinessDay,omitempty"`
}
