package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// OutboxPublisher drains the audit outbox table to Kafka. It runs as a
// background loop owned by main; the engine itself never blocks on Kafka.
// SKIP LOCKED lets multiple replicas drain the table without double
// publishing the same entry, and published entries are marked rather than
// deleted so the outbox stays replayable.
type OutboxPublisher struct {
	db       *sql.DB
	client   *kgo.Client
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

// NewOutboxPublisher wires the drain loop. interval defaults to five seconds
// and batch to 100 when zero.
func NewOutboxPublisher(db *sql.DB, client *kgo.Client, logger *slog.Logger, interval time.Duration) *OutboxPublisher {
	if interval == 0 {
		interval = 5 * time.Second
	}
	return &OutboxPublisher{
		db:       db,
		client:   client,
		logger:   logger,
		interval: interval,
		batch:    100,
	}
}

// Run drains the outbox until ctx is cancelled.
func (p *OutboxPublisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.drainOnce(ctx); err != nil {
				p.logger.ErrorContext(ctx, "audit outbox drain failed", "error", err)
			}
		}
	}
}

type outboxEntry struct {
	id        string
	eventType string
	payload   []byte
}

func (p *OutboxPublisher) drainOnce(ctx context.Context) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin outbox tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, event_type, payload
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, p.batch)
	if err != nil {
		return fmt.Errorf("select outbox entries: %w", err)
	}

	var entries []outboxEntry
	for rows.Next() {
		var e outboxEntry
		if err := rows.Scan(&e.id, &e.eventType, &e.payload); err != nil {
			rows.Close()
			return fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate outbox entries: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	for _, e := range entries {
		record := &kgo.Record{Key: []byte(e.eventType), Value: e.payload}
		if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
			// Leave the entry unpublished; the next drain retries it.
			return fmt.Errorf("produce outbox entry %s: %w", e.id, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE audit_outbox SET published_at = $1 WHERE id = $2`,
			time.Now(), e.id,
		); err != nil {
			return fmt.Errorf("mark outbox entry %s published: %w", e.id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit outbox drain: %w", err)
	}
	p.logger.DebugContext(ctx, "audit outbox drained", "published", len(entries))
	return nil
}
