// Package kit holds the transport-agnostic plumbing shared by the CLI,
// HTTP, and MCP surfaces: the Endpoint abstraction, middleware
// composition, and request-scoped context accessors.
package kit

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

// Endpoint is one operation exposed over a transport. Transports decode
// their wire format into a typed request, call the endpoint, and encode
// the typed response back.
type Endpoint func(ctx context.Context, request any) (any, error)

// Middleware wraps an Endpoint, adding cross-cutting behaviour
// (logging, timeout, recovery) without changing the signature.
type Middleware func(next Endpoint) Endpoint

// Chain composes middlewares left-to-right: the first middleware in the
// slice is the outermost wrapper (executed first on the request path).
//
//	chain := Chain(logging, timeout, recovery)
//	wrapped := chain(baseEndpoint)
func Chain(mws ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// Logging returns a middleware that logs every call with its duration,
// the transport it arrived on, and the request ID when one is set.
func Logging(logger *slog.Logger, name string) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			attrs := []any{
				"endpoint", name,
				"transport", GetTransport(ctx),
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if id := GetRequestID(ctx); id != "" {
				attrs = append(attrs, "request_id", id)
			}

			if err != nil {
				logger.ErrorContext(ctx, "endpoint failed", append(attrs, "error", err)...)
			} else {
				logger.DebugContext(ctx, "endpoint ok", attrs...)
			}
			return resp, err
		}
	}
}

// Timeout returns a middleware that enforces a maximum call duration.
// If the deadline passes, the endpoint's goroutine keeps running (Go has
// no goroutine cancellation), but the caller gets the context error.
func Timeout(d time.Duration) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			type result struct {
				resp any
				err  error
			}
			ch := make(chan result, 1)
			go func() {
				resp, err := next(ctx, req)
				ch <- result{resp, err}
			}()
			select {
			case r := <-ch:
				return r.resp, r.err
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
}

// Recovery returns a middleware that converts a panic in the endpoint
// into an error, so one bad request cannot take the process down.
func Recovery(logger *slog.Logger) Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (resp any, err error) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.ErrorContext(ctx, "endpoint panic",
						"panic", rec, "stack", string(debug.Stack()))
					err = fmt.Errorf("kit: endpoint panic: %v", rec)
				}
			}()
			return next(ctx, req)
		}
	}
}
