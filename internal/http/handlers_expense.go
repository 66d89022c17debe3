package http

import (
	"net/http"

	"cashbook/internal/aggregate"
	"cashbook/internal/core"

	"github.com/shopspring/decimal"
)

type monthlyExpensesResponse struct {
	Year  int               `json:"year"`
	Month int               `json:"month"`
	Days  []core.DaySummary `json:"days"`
	Total decimal.Decimal   `json:"total"`
}

type expenseListResponse struct {
	Expenses []core.Expense  `json:"expenses"`
	Total    decimal.Decimal `json:"total"`
}

type moveRequest struct {
	TargetDate string `json:"targetDate"`
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var draft core.ExpenseDraft
	if err := decodeJSON(w, r, &draft); err != nil {
		writeError(w, r, err, "date")
		return
	}
	e, err := s.ledger.CreateExpense(r.Context(), draft)
	if err != nil {
		writeError(w, r, err, "date")
		return
	}
	w.Header().Set("Location", "/api/expenses/"+e.ID)
	writeJSON(w, http.StatusCreated, e)
}

// handleListExpenses serves the daily view for ?date=, the grouped monthly
// summary for ?year=&month= and the whole ledger without a query.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if date := q.Get("date"); date != "" {
		day, err := s.ledger.DailyExpenses(r.Context(), date)
		if err != nil {
			writeError(w, r, err, "date")
			return
		}
		writeJSON(w, http.StatusOK, day)
		return
	}

	year, month, ok, err := monthQuery(q)
	if err != nil {
		writeError(w, r, err, "date")
		return
	}
	if !ok {
		all, err := s.ledger.ListExpenses(r.Context())
		if err != nil {
			writeError(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusOK, expenseListResponse{Expenses: all, Total: aggregate.ExpenseTotal(all)})
		return
	}
	days, err := s.ledger.MonthlyExpenseSummary(r.Context(), year, month)
	if err != nil {
		writeError(w, r, err, "date")
		return
	}
	writeJSON(w, http.StatusOK, monthlyExpensesResponse{
		Year:  year,
		Month: month,
		Days:  days,
		Total: aggregate.MonthTotal(days),
	})
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.ledger.GetExpense(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleMoveExpense(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, "targetDate")
		return
	}
	e, err := s.ledger.MoveExpense(r.Context(), r.PathValue("id"), req.TargetDate)
	if err != nil {
		writeError(w, r, err, "targetDate")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleExpenseMoves(w http.ResponseWriter, r *http.Request) {
	moves, err := s.ledger.ExpenseMoves(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	if moves == nil {
		moves = []core.ExpenseMove{}
	}
	writeJSON(w, http.StatusOK, moves)
}
