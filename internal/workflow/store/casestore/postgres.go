package casestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"caseflow/internal/domain"
	id "caseflow/pkg/domain"
	"caseflow/pkg/platform/sentinel"
	txcontext "caseflow/pkg/platform/tx"
)

// Postgres persists cases and transition records in PostgreSQL.
// This store is pure I/O—transition legality belongs in the workflow service;
// the store only guarantees atomicity and the per-case write guard.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, c *domain.Case) error {
	query := `
		INSERT INTO cases (
			id, case_number, status, owning_unit_id, region_id, priority,
			sla_template_id, sla_name, sla_response_ms, sla_resolution_ms, sla_escalation_ms,
			assigned_actor_id, created_at, status_entered_at, version
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO NOTHING
	`
	result, err := s.exec(ctx).ExecContext(ctx, query,
		c.ID.String(), c.CaseNumber, c.Status.String(),
		c.OwningUnitID.String(), c.RegionID.String(), c.Priority.String(),
		c.SLA.ID.String(), c.SLA.Name,
		c.SLA.ResponseThreshold.Milliseconds(), c.SLA.ResolutionThreshold.Milliseconds(), c.SLA.EscalationThreshold.Milliseconds(),
		actorIDOrNil(c.AssignedActorID), c.CreatedAt, c.StatusEnteredAt, c.Version,
	)
	if err != nil {
		return fmt.Errorf("insert case: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert case rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, caseID id.CaseID) (*domain.Case, error) {
	query := caseSelect + ` WHERE id = $1`
	c, err := scanCase(s.exec(ctx).QueryRowContext(ctx, query, caseID.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find case: %w", err)
	}
	return c, nil
}

func (s *Postgres) ListWorkable(ctx context.Context) ([]*domain.Case, error) {
	query := caseSelect + `
		WHERE status NOT IN ('FULL_RECOVERY', 'WRITTEN_OFF', 'CLOSED')
		ORDER BY created_at
	`
	rows, err := s.exec(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list workable cases: %w", err)
	}
	defer rows.Close()

	var cases []*domain.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan workable case: %w", err)
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workable cases: %w", err)
	}
	return cases, nil
}

// ExecuteTransition loads the row under SELECT FOR UPDATE, runs the
// callbacks, and commits the mutated case together with its transition
// record. The version predicate on the UPDATE is a second guard behind the
// row lock; a miss means a concurrent writer slipped through and the caller
// must re-read.
func (s *Postgres) ExecuteTransition(ctx context.Context, caseID id.CaseID,
	validate func(c *domain.Case) error,
	apply func(c *domain.Case) *domain.TransitionRecord,
) (*domain.Case, *domain.TransitionRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := caseSelect + ` WHERE id = $1 FOR UPDATE`
	c, err := scanCase(tx.QueryRowContext(ctx, query, caseID.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, sentinel.ErrNotFound
		}
		return nil, nil, fmt.Errorf("lock case: %w", err)
	}

	priorVersion := c.Version
	if err := validate(c); err != nil {
		return nil, nil, err
	}
	record := apply(c)

	result, err := tx.ExecContext(ctx, `
		UPDATE cases
		SET status = $2, status_entered_at = $3, assigned_actor_id = $4, version = $5
		WHERE id = $1 AND version = $6
	`, c.ID.String(), c.Status.String(), c.StatusEnteredAt, actorIDOrNil(c.AssignedActorID), c.Version, priorVersion)
	if err != nil {
		return nil, nil, fmt.Errorf("update case: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, nil, fmt.Errorf("update case rows affected: %w", err)
	}
	if rows == 0 {
		return nil, nil, sentinel.ErrConflict
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO case_transitions (case_id, from_status, to_status, actor_id, actor_role, reason, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, record.CaseID.String(), record.FromStatus.String(), record.ToStatus.String(),
		record.ActorID.String(), record.ActorRole.String(), record.Reason, record.OccurredAt,
	); err != nil {
		return nil, nil, fmt.Errorf("insert transition record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit transition: %w", err)
	}
	return c, record, nil
}

func (s *Postgres) ListTransitions(ctx context.Context, caseID id.CaseID) ([]domain.TransitionRecord, error) {
	rows, err := s.exec(ctx).QueryContext(ctx, `
		SELECT case_id, from_status, to_status, actor_id, actor_role, reason, occurred_at
		FROM case_transitions
		WHERE case_id = $1
		ORDER BY occurred_at, id
	`, caseID.String())
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var records []domain.TransitionRecord
	for rows.Next() {
		var r domain.TransitionRecord
		var rawCaseID, rawActorID, fromStatus, toStatus, actorRole string
		if err := rows.Scan(&rawCaseID, &fromStatus, &toStatus, &rawActorID, &actorRole, &r.Reason, &r.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan transition record: %w", err)
		}
		if r.CaseID, err = id.ParseCaseID(rawCaseID); err != nil {
			return nil, fmt.Errorf("parse transition case id: %w", err)
		}
		if r.ActorID, err = id.ParseActorID(rawActorID); err != nil {
			return nil, fmt.Errorf("parse transition actor id: %w", err)
		}
		r.FromStatus = domain.CaseStatus(fromStatus)
		r.ToStatus = domain.CaseStatus(toStatus)
		r.ActorRole = domain.Role(actorRole)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transition records: %w", err)
	}
	return records, nil
}

// exec joins a transaction already carried on the context, so reads issued
// inside a caller-owned tx see its uncommitted writes.
func (s *Postgres) exec(ctx context.Context) executor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const caseSelect = `
	SELECT id, case_number, status, owning_unit_id, region_id, priority,
	       sla_template_id, sla_name, sla_response_ms, sla_resolution_ms, sla_escalation_ms,
	       assigned_actor_id, created_at, status_entered_at, version
	FROM cases`

type caseRow interface {
	Scan(dest ...any) error
}

func scanCase(row caseRow) (*domain.Case, error) {
	var c domain.Case
	var rawID, rawUnit, rawRegion, rawTemplate, status, priority string
	var assigned sql.NullString
	var responseMS, resolutionMS, escalationMS int64
	if err := row.Scan(
		&rawID, &c.CaseNumber, &status, &rawUnit, &rawRegion, &priority,
		&rawTemplate, &c.SLA.Name, &responseMS, &resolutionMS, &escalationMS,
		&assigned, &c.CreatedAt, &c.StatusEnteredAt, &c.Version,
	); err != nil {
		return nil, err
	}

	var err error
	if c.ID, err = id.ParseCaseID(rawID); err != nil {
		return nil, fmt.Errorf("parse case id: %w", err)
	}
	if c.OwningUnitID, err = id.ParseUnitID(rawUnit); err != nil {
		return nil, fmt.Errorf("parse owning unit id: %w", err)
	}
	if c.RegionID, err = id.ParseRegionID(rawRegion); err != nil {
		return nil, fmt.Errorf("parse region id: %w", err)
	}
	if c.SLA.ID, err = id.ParseTemplateID(rawTemplate); err != nil {
		return nil, fmt.Errorf("parse sla template id: %w", err)
	}
	if assigned.Valid {
		actorID, err := id.ParseActorID(assigned.String)
		if err != nil {
			return nil, fmt.Errorf("parse assigned actor id: %w", err)
		}
		c.AssignedActorID = &actorID
	}
	c.Status = domain.CaseStatus(status)
	c.Priority = domain.Priority(priority)
	c.SLA.ResponseThreshold = time.Duration(responseMS) * time.Millisecond
	c.SLA.ResolutionThreshold = time.Duration(resolutionMS) * time.Millisecond
	c.SLA.EscalationThreshold = time.Duration(escalationMS) * time.Millisecond
	return &c, nil
}

func actorIDOrNil(actorID *id.ActorID) any {
	if actorID == nil {
		return nil
	}
	return actorID.String()
}
