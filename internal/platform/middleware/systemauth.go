package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"caseflow/internal/domain"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/platform/httputil"
	"caseflow/pkg/requestcontext"
)

const systemTokenHeader = "X-System-Token"

// RequireSystem gates endpoints reserved for the scheduler identity. Any
// caller without the shared system token is rejected with a hard 403; there
// is no interactive-role fallback for these routes.
func RequireSystem(systemToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			presented := r.Header.Get(systemTokenHeader)
			if systemToken == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(systemToken)) != 1 {
				logger.WarnContext(ctx, "system endpoint rejected non-system caller",
					"request_id", requestcontext.RequestID(ctx), "path", r.URL.Path)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "system callers only"))
				return
			}

			ctx = requestcontext.WithSystemCall(ctx)
			ctx = WithActor(ctx, domain.SystemActor())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
