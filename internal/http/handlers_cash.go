package http

import (
	"net/http"

	"cashbook/internal/core"
	"cashbook/internal/services"

	"github.com/shopspring/decimal"
)

type cashHistoryResponse struct {
	Year      int                 `json:"year"`
	Month     int                 `json:"month"`
	Snapshots []core.CashSnapshot `json:"snapshots"`
	Total     decimal.Decimal     `json:"total"`
}

type cashListResponse struct {
	Snapshots []core.CashSnapshot `json:"snapshots"`
	Total     decimal.Decimal     `json:"total"`
}

// handleGetCash serves one day's snapshot for ?date=, the month's snapshots,
// newest first, for ?year=&month= and every snapshot without a query.
func (s *Server) handleGetCash(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if date := q.Get("date"); date != "" {
		snap, err := s.ledger.GetCashSnapshot(r.Context(), date)
		if err != nil {
			writeError(w, r, err, "date")
			return
		}
		writeJSON(w, http.StatusOK, snap)
		return
	}

	year, month, ok, err := monthQuery(q)
	if err != nil {
		writeError(w, r, err, "date")
		return
	}
	if !ok {
		all, err := s.ledger.ListCashSnapshots(r.Context())
		if err != nil {
			writeError(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusOK, cashListResponse{Snapshots: all, Total: services.CashTotal(all)})
		return
	}
	snaps, err := s.ledger.CashHistory(r.Context(), year, month)
	if err != nil {
		writeError(w, r, err, "date")
		return
	}
	if snaps == nil {
		snaps = []core.CashSnapshot{}
	}
	writeJSON(w, http.StatusOK, cashHistoryResponse{
		Year:      year,
		Month:     month,
		Snapshots: snaps,
		Total:     services.CashTotal(snaps),
	})
}

func (s *Server) handleSetCash(w http.ResponseWriter, r *http.Request) {
	var entry core.CashEntry
	if err := decodeJSON(w, r, &entry); err != nil {
		writeError(w, r, err, "date")
		return
	}
	snap, err := s.ledger.SetCashAtHand(r.Context(), entry)
	if err != nil {
		writeError(w, r, err, "date")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
