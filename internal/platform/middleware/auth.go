package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"caseflow/internal/domain"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/platform/httputil"
	"caseflow/pkg/requestcontext"
)

// TokenValidator verifies an access token and rebuilds the actor it was
// issued to.
type TokenValidator interface {
	Validate(tokenString string) (*domain.Actor, error)
}

type actorKey struct{}

// ContextKeyActor is exported for tests that need raw context.WithValue.
var ContextKeyActor = actorKey{}

// ActorFrom retrieves the authenticated actor, or nil when the request was
// not authenticated.
func ActorFrom(ctx context.Context) *domain.Actor {
	actor, _ := ctx.Value(ContextKeyActor).(*domain.Actor)
	return actor
}

// WithActor injects an actor; used by tests and the system gate.
func WithActor(ctx context.Context, actor *domain.Actor) context.Context {
	return context.WithValue(ctx, ContextKeyActor, actor)
}

// RequireActor authenticates the bearer token and stores the actor in
// context. Requests without a valid token stop here with 401.
func RequireActor(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			tokenString, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || tokenString == "" {
				logger.WarnContext(ctx, "unauthorized request, missing bearer token",
					"request_id", requestcontext.RequestID(ctx), "path", r.URL.Path)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			actor, err := validator.Validate(tokenString)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized request, token rejected",
					"request_id", requestcontext.RequestID(ctx), "path", r.URL.Path, "error", err)
				httputil.WriteError(w, err)
				return
			}

			ctx = WithActor(ctx, actor)
			ctx = requestcontext.WithActorID(ctx, actor.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
