package log

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type contextKey struct{}

// NewContext returns a copy of ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// Lookup returns the logger carried by ctx, if any.
func Lookup(ctx context.Context) (*Logger, bool) {
	l, ok := ctx.Value(contextKey{}).(*Logger)
	return l, ok && l != nil
}

// FromContext returns the logger carried by ctx, or one writing to the slog
// default.
func FromContext(ctx context.Context) *Logger {
	if l, ok := Lookup(ctx); ok {
		return l
	}
	return wrap(slog.Default(), "unknown")
}

// RequestStarted logs the arrival of r.
func (l *Logger) RequestStarted(ctx context.Context, r *http.Request, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent(), r.Referer()).
		WithClientIP(clientIP)
	l.InfoContext(ctx, "HTTP request started", fields.ToSlice()...)
}

// RequestFinished logs the outcome of r: warn for 4xx, error for 5xx.
func (l *Logger) RequestFinished(ctx context.Context, r *http.Request, status int, elapsed time.Duration, clientIP string) {
	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "").
		WithHTTPResponse(status, elapsed.Milliseconds(), status < 400).
		WithClientIP(clientIP)
	fields[FieldDurationHuman] = elapsed.String()
	l.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// TransactionRecorded logs a transaction accepted by the ledger.
func (l *Logger) TransactionRecorded(ctx context.Context, id int64, kind, desc string, amountCents int64, category string) {
	fields := NewFields().
		WithTransaction(id, kind, desc, amountCents, category).
		WithOperation(OpCreate)
	l.InfoContext(ctx, "Transaction recorded", fields.ToSlice()...)
}
