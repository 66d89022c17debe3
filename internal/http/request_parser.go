package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"cashbook/internal/core"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a single JSON object into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return &badRequestError{msg: "request body is empty"}
		case errors.As(err, &maxErr):
			return &badRequestError{msg: "request body too large"}
		default:
			return &badRequestError{msg: "malformed JSON: " + err.Error()}
		}
	}
	if dec.More() {
		return &badRequestError{msg: "request body must contain a single JSON object"}
	}
	return nil
}

// monthQuery reads year and month. ok is false when neither is present.
func monthQuery(q url.Values) (year, month int, ok bool, err error) {
	ys, ms := strings.TrimSpace(q.Get("year")), strings.TrimSpace(q.Get("month"))
	if ys == "" && ms == "" {
		return 0, 0, false, nil
	}
	if year, err = intParam("year", ys); err != nil {
		return 0, 0, true, err
	}
	if month, err = intParam("month", ms); err != nil {
		return 0, 0, true, err
	}
	return year, month, true, nil
}

func intParam(name, v string) (int, error) {
	if v == "" {
		return 0, &core.ValidationError{Field: name, Reason: "is required"}
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &core.ValidationError{Field: name, Reason: "must be a whole number"}
	}
	return n, nil
}

// requiredQuery returns a trimmed query value or a ValidationError.
func requiredQuery(q url.Values, name string) (string, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return "", &core.ValidationError{Field: name, Reason: "is required"}
	}
	return v, nil
}
