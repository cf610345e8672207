package middleware

import (
	"context"
	"net/http"
	"strings"
)

// identityHeader carries the authenticated caller identity. The server sits
// behind a gateway that verifies wallet signatures and forwards the verified
// identity in this header.
const identityHeader = "X-Caller-Identity"

type ctxKey int

const identityKey ctxKey = iota

// Identity returns middleware that extracts the caller identity header into
// the request context. Requests without the header pass through; handlers
// that mutate state reject anonymous callers themselves.
func Identity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := strings.TrimSpace(r.Header.Get(identityHeader))
			if caller != "" {
				ctx := context.WithValue(r.Context(), identityKey, caller)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CallerIdentity returns the authenticated caller identity from the context,
// or "" when the request was anonymous.
func CallerIdentity(ctx context.Context) string {
	caller, _ := ctx.Value(identityKey).(string)
	return caller
}
