// Package shield provides the HTTP middleware for the artifact-serving
// surface: security headers, request tracing, body limits, HEAD method
// handling, optional basic auth, and a pause-aware block that answers
// 503 while a verification run waits on manual admin steps.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultStack() {
//	    r.Use(mw)
//	}
//	r.Use(shield.BasicAuth("admin", hash))
package shield

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// GetLogger retrieves the per-request logger from the context.
// Returns slog.Default() if no logger was set.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

// DefaultStack returns the standard middleware stack for the artifact
// server, ordered: HeadToGet, SecurityHeaders, MaxBody, RequestID.
// The surface is read-only, so no rate limiting is applied.
func DefaultStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(64 * 1024),
		RequestID,
	}
}
