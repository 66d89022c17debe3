package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"cashbook/internal/core"
	applog "cashbook/internal/log"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type errorBody struct {
	Error apiError `json:"error"`
}

// badRequestError marks input that could not be decoded at all.
type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps ledger errors onto status codes. dateField names the input
// a date parse failure is reported against.
func writeError(w http.ResponseWriter, r *http.Request, err error, dateField string) {
	status, body, kind := classify(err, dateField)

	logger := applog.FromContext(r.Context())
	fields := applog.NewFields().WithError(err).WithErrorType(kind)
	if status >= 500 {
		logger.ErrorContext(r.Context(), "Request failed", fields.Args()...)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", fields.Args()...)
	}
	writeJSON(w, status, errorBody{Error: body})
}

func classify(err error, dateField string) (int, apiError, string) {
	var (
		verr *core.ValidationError
		berr *badRequestError
	)
	switch {
	case errors.As(err, &berr):
		return http.StatusBadRequest, apiError{Code: "bad_request", Message: berr.msg}, applog.ErrorTypeBadRequest
	case errors.Is(err, core.ErrInvalidTargetDate):
		return http.StatusUnprocessableEntity, apiError{Code: "invalid_target_date", Message: err.Error(), Field: dateField}, applog.ErrorTypeValidation
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, apiError{Code: "validation_error", Message: verr.Error(), Field: verr.Field}, applog.ErrorTypeValidation
	case errors.Is(err, core.ErrInvalidDate):
		return http.StatusUnprocessableEntity, apiError{Code: "invalid_date", Message: err.Error(), Field: dateField}, applog.ErrorTypeValidation
	case errors.Is(err, core.ErrValidation):
		return http.StatusUnprocessableEntity, apiError{Code: "validation_error", Message: err.Error()}, applog.ErrorTypeValidation
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, apiError{Code: "not_found", Message: err.Error()}, applog.ErrorTypeNotFound
	default:
		return http.StatusInternalServerError, apiError{Code: "internal_error", Message: "internal server error"}, applog.ErrorTypeInternal
	}
}
