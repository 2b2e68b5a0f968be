package audit

import (
	"context"
	"time"
)

// Store persists audit events. Implementations: in-memory (tests, dev) and
// postgres outbox (production, drained to Kafka by the outbox publisher).
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByResource(ctx context.Context, resourceType, resourceID string) ([]Event, error)
}

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily. Emission is
// fire-and-forget from the engine's perspective: callers log failures and
// never roll back the originating mutation.
type Publisher struct {
	store Store
}

func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Emit(ctx context.Context, base Event) error {
	if base.Timestamp.IsZero() {
		base.Timestamp = time.Now()
	}
	if base.Category == "" {
		base.Category = AuditEvent(base.Action).Category()
	}
	return p.store.Append(ctx, base)
}

// List returns the trail for one resource, newest first where the store
// supports ordering.
func (p *Publisher) List(ctx context.Context, resourceType, resourceID string) ([]Event, error) {
	return p.store.ListByResource(ctx, resourceType, resourceID)
}
