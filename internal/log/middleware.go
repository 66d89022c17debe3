package log

import (
	"context"
	"log/slog"
	"net/http"
)

// Middleware puts base, tagged with the request id, into every request
// context.
func Middleware(base *Logger, requestID func(context.Context) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := base.WithComponent(ComponentHTTP)
			if id := requestID(r.Context()); id != "" {
				l = l.With(FieldRequestID, id)
			}
			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), l)))
		})
	}
}

// LogHTTPEnd records a finished request, at warn for 4xx and error for 5xx.
func LogHTTPEnd(ctx context.Context, l *Logger, r *http.Request, clientIP string, status int, durationMs int64) {
	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, clientIP).
		WithHTTPResponse(status, durationMs)
	l.Log(ctx, level, "HTTP request completed", fields.Args()...)
}
