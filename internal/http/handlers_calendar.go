package http

import (
	"bytes"
	"net/http"
	"strconv"

	"cashbook/internal/core"
	"cashbook/internal/report"
)

func (s *Server) handleBusinessDay(w http.ResponseWriter, r *http.Request) {
	date, err := requiredQuery(r.URL.Query(), "date")
	if err != nil {
		writeError(w, r, err, "date")
		return
	}
	day, err := s.ledger.BusinessDay(r.Context(), date)
	if err != nil {
		writeError(w, r, err, "date")
		return
	}
	writeJSON(w, http.StatusOK, day)
}

// handleExpenseReport streams the month's XLSX workbook. The workbook is
// rendered into memory first so failures still produce a JSON error.
func (s *Server) handleExpenseReport(w http.ResponseWriter, r *http.Request) {
	year, month, ok, err := monthQuery(r.URL.Query())
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	if !ok {
		writeError(w, r, &core.ValidationError{Field: "year", Reason: "is required"}, "")
		return
	}

	var buf bytes.Buffer
	if err := report.WriteMonthly(r.Context(), &buf, s.ledger, year, month); err != nil {
		writeError(w, r, err, "")
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+report.Filename(year, month)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
