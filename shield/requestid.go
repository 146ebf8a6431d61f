package shield

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/voilier/constat/idgen"
	"github.com/voilier/constat/kit"
)

var newRequestID = idgen.NanoID(8)

// RequestID generates a random ID for each request and injects it into
// the context, response headers, and a per-request structured logger.
// The ID is stored under kit.RequestIDKey and the logger under LoggerKey.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := newRequestID()

		ctx := kit.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-ID", requestID)

		logger := slog.Default().With(
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)
		ctx = context.WithValue(ctx, LoggerKey, logger)
		logger.Info("request")

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
