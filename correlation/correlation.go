// Package correlation carries a per-request correlation ID through the
// request lifecycle, into enqueued jobs, and into worker execution, via an
// explicit context value rather than thread-local/async-local storage.
package correlation

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey struct{}

var ctxKey = contextKey{}

// Header is the inbound/outbound HTTP header carrying the correlation ID.
const Header = "X-Correlation-Id"

// NoContext is logged in place of a correlation ID when none is available,
// e.g. during process startup before any request has been handled.
const NoContext = "no-context"

// WithID returns a context carrying the given correlation ID.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey, id)
}

// FromContext returns the correlation ID carried on ctx, or NoContext if
// absent.
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return NoContext
	}
	if id, ok := ctx.Value(ctxKey).(string); ok && id != "" {
		return id
	}
	return NoContext
}

// New generates a fresh correlation ID.
func New() string {
	return uuid.NewString()
}

// FromRequest extracts the correlation ID from the inbound request header,
// generating a fresh one when absent.
func FromRequest(r *http.Request) string {
	if id := r.Header.Get(Header); id != "" {
		return id
	}
	return New()
}

// Middleware stamps every inbound request with a correlation ID (taken from
// the X-Correlation-Id header, else freshly generated), stores it on the
// request context, and echoes it back on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := FromRequest(r)
		w.Header().Set(Header, id)
		ctx := WithID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
