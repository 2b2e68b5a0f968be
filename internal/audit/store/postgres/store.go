package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"caseflow/internal/audit"
	txcontext "caseflow/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table and published to Kafka by the outbox
// publisher; the audit_events table is the queryable materialization.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// outboxPayload is the JSON structure published to Kafka. Field names match
// audit.Event for deserialization by downstream consumers.
type outboxPayload struct {
	ID           string            `json:"ID"`
	Category     string            `json:"Category"`
	Timestamp    string            `json:"Timestamp"`
	ActorID      string            `json:"ActorID,omitempty"`
	ActorRole    string            `json:"ActorRole,omitempty"`
	Action       string            `json:"Action"`
	ResourceType string            `json:"ResourceType"`
	ResourceID   string            `json:"ResourceID"`
	Reason       string            `json:"Reason,omitempty"`
	RequestID    string            `json:"RequestID,omitempty"`
	Metadata     map[string]string `json:"Metadata,omitempty"`
}

// Append writes an audit event to the outbox table. It participates in the
// caller's transaction when one is carried in ctx, so the audit entry commits
// atomically with the mutation it records.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	category := event.Category
	if category == "" {
		category = audit.AuditEvent(event.Action).Category()
	}

	payload := outboxPayload{
		ID:           eventID.String(),
		Category:     string(category),
		Timestamp:    event.Timestamp.Format(time.RFC3339Nano),
		ActorID:      event.ActorID,
		ActorRole:    event.ActorRole,
		Action:       event.Action,
		ResourceType: event.ResourceType,
		ResourceID:   event.ResourceID,
		Reason:       event.Reason,
		RequestID:    event.RequestID,
		Metadata:     event.Metadata,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	query := `
		INSERT INTO audit_outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		eventID,
		event.ResourceType,
		event.ResourceID,
		event.Action,
		payloadBytes,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// AppendWithID inserts an audit event into the audit_events table with a
// specific ID. Used by the Kafka consumer to materialize events for querying.
// Idempotent: duplicate inserts are ignored via ON CONFLICT DO NOTHING.
func (s *Store) AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error {
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}

	query := `
		INSERT INTO audit_events (
			id, category, timestamp, actor_id, actor_role,
			action, resource_type, resource_id, reason, request_id, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = s.db.ExecContext(ctx, query,
		eventID,
		string(event.Category),
		event.Timestamp,
		event.ActorID,
		event.ActorRole,
		event.Action,
		event.ResourceType,
		event.ResourceID,
		event.Reason,
		event.RequestID,
		metadata,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListByResource returns the materialized trail for one resource.
func (s *Store) ListByResource(ctx context.Context, resourceType, resourceID string) ([]audit.Event, error) {
	query := `
		SELECT category, timestamp, actor_id, actor_role,
			   action, resource_type, resource_id, reason, request_id, metadata
		FROM audit_events
		WHERE resource_type = $1 AND resource_id = $2
		ORDER BY timestamp DESC
	`
	rows, err := s.db.QueryContext(ctx, query, resourceType, resourceID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event

	for rows.Next() {
		var (
			category string
			event    audit.Event
			metadata []byte
		)
		err := rows.Scan(
			&category,
			&event.Timestamp,
			&event.ActorID,
			&event.ActorRole,
			&event.Action,
			&event.ResourceType,
			&event.ResourceID,
			&event.Reason,
			&event.RequestID,
			&metadata,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &event.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal audit metadata: %w", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
