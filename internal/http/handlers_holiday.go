package http

import (
	"net/http"
	"strings"

	"cashbook/internal/core"
)

// handleListHolidays returns the year's holidays split into recurring and
// one-time when ?year= is given, otherwise every holiday.
func (s *Server) handleListHolidays(w http.ResponseWriter, r *http.Request) {
	if ys := strings.TrimSpace(r.URL.Query().Get("year")); ys != "" {
		year, err := intParam("year", ys)
		if err != nil {
			writeError(w, r, err, "")
			return
		}
		yh, err := s.ledger.YearlyHolidays(r.Context(), year)
		if err != nil {
			writeError(w, r, err, "")
			return
		}
		writeJSON(w, http.StatusOK, yh)
		return
	}

	hs, err := s.ledger.ListHolidays(r.Context())
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	if hs == nil {
		hs = []core.Holiday{}
	}
	writeJSON(w, http.StatusOK, hs)
}

func (s *Server) handleCreateHoliday(w http.ResponseWriter, r *http.Request) {
	var draft core.HolidayDraft
	if err := decodeJSON(w, r, &draft); err != nil {
		writeError(w, r, err, "date")
		return
	}
	h, err := s.ledger.CreateHoliday(r.Context(), draft)
	if err != nil {
		writeError(w, r, err, "date")
		return
	}
	writeJSON(w, http.StatusCreated, h)
}

func (s *Server) handleDeleteHoliday(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteHoliday(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
