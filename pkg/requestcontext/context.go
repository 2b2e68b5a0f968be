// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services read them without importing net/http.
// The request time accessor doubles as the engine's injected clock: breach
// classification and transition timestamps call Now(ctx) instead of time.Now,
// so tests pin time with WithTime and sweeps stay deterministic.
package requestcontext

import (
	"context"
	"time"

	id "caseflow/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	actorIDKey     struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
	systemCallKey  struct{}
)

// Exported context keys for tests that need raw context.WithValue.
var (
	ContextKeyActorID     = actorIDKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
	ContextKeySystemCall  = systemCallKey{}
)

// ActorID retrieves the authenticated actor ID from the context.
// Returns the zero value (nil UUID) if not set.
func ActorID(ctx context.Context) id.ActorID {
	if actorID, ok := ctx.Value(ContextKeyActorID).(id.ActorID); ok {
		return actorID
	}
	return id.ActorID{}
}

// WithActorID injects an actor ID into the context.
func WithActorID(ctx context.Context, actorID id.ActorID) context.Context {
	return context.WithValue(ctx, ContextKeyActorID, actorID)
}

// RequestID retrieves the correlation ID set by middleware.
func RequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithRequestID injects a correlation ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now returns the request time if one was injected, falling back to the wall
// clock. All time comparisons in the engine go through this accessor.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins the clock for the remainder of a request or test.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}

// IsSystemCall reports whether the request was authenticated as a system
// caller (scheduler identity) rather than an interactive actor.
func IsSystemCall(ctx context.Context) bool {
	v, ok := ctx.Value(ContextKeySystemCall).(bool)
	return ok && v
}

// WithSystemCall marks the context as originating from a system caller.
func WithSystemCall(ctx context.Context) context.Context {
	return context.WithValue(ctx, ContextKeySystemCall, true)
}
