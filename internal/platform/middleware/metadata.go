// Package middleware carries the request-scoped plumbing every handler
// relies on: correlation IDs, the pinned request clock, actor authentication,
// and the system-caller gate.
package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"caseflow/pkg/requestcontext"
)

const requestIDHeader = "X-Request-ID"

// RequestMetadata assigns a correlation ID (honoring one supplied by the
// caller) and pins the request clock so every timestamp within one request
// agrees.
func RequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		ctx = requestcontext.WithTime(ctx, time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
