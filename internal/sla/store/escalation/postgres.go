package escalation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"caseflow/internal/domain"
	id "caseflow/pkg/domain"
	"caseflow/pkg/platform/sentinel"
)

// Postgres persists escalations. The partial unique index on (case_id) WHERE
// resolved_at IS NULL is the durable form of the single-open-escalation rule;
// a racing second insert surfaces as a unique violation and is translated to
// sentinel.ErrConflict.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const uniqueViolation = "23505"

func (s *Postgres) Create(ctx context.Context, e *domain.Escalation) error {
	query := `
		INSERT INTO escalations (id, case_id, level, triggered_at, triggered_by, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID.String(), e.CaseID.String(), string(e.Level),
		e.TriggeredAt, e.TriggeredBy, e.ResolvedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert escalation: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, escalationID id.EscalationID) (*domain.Escalation, error) {
	query := escalationSelect + ` WHERE id = $1`
	e, err := scanEscalation(s.db.QueryRowContext(ctx, query, escalationID.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find escalation: %w", err)
	}
	return e, nil
}

func (s *Postgres) FindOpenByCase(ctx context.Context, caseID id.CaseID) (*domain.Escalation, error) {
	query := escalationSelect + ` WHERE case_id = $1 AND resolved_at IS NULL`
	e, err := scanEscalation(s.db.QueryRowContext(ctx, query, caseID.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find open escalation: %w", err)
	}
	return e, nil
}

func (s *Postgres) Update(ctx context.Context, e *domain.Escalation) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE escalations SET level = $2, resolved_at = $3 WHERE id = $1
	`, e.ID.String(), string(e.Level), e.ResolvedAt)
	if err != nil {
		return fmt.Errorf("update escalation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update escalation rows affected: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) ListByCase(ctx context.Context, caseID id.CaseID) ([]domain.Escalation, error) {
	rows, err := s.db.QueryContext(ctx, escalationSelect+` WHERE case_id = $1 ORDER BY triggered_at`, caseID.String())
	if err != nil {
		return nil, fmt.Errorf("list escalations: %w", err)
	}
	defer rows.Close()

	var out []domain.Escalation
	for rows.Next() {
		e, err := scanEscalation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan escalation: %w", err)
		}
		out = append(out, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate escalations: %w", err)
	}
	return out, nil
}

const escalationSelect = `
	SELECT id, case_id, level, triggered_at, triggered_by, resolved_at
	FROM escalations`

type escalationRow interface {
	Scan(dest ...any) error
}

func scanEscalation(row escalationRow) (*domain.Escalation, error) {
	var e domain.Escalation
	var rawID, rawCaseID, level string
	var resolvedAt sql.NullTime
	if err := row.Scan(&rawID, &rawCaseID, &level, &e.TriggeredAt, &e.TriggeredBy, &resolvedAt); err != nil {
		return nil, err
	}
	var err error
	if e.ID, err = id.ParseEscalationID(rawID); err != nil {
		return nil, fmt.Errorf("parse escalation id: %w", err)
	}
	if e.CaseID, err = id.ParseCaseID(rawCaseID); err != nil {
		return nil, fmt.Errorf("parse escalation case id: %w", err)
	}
	e.Level = domain.EscalationLevel(level)
	if resolvedAt.Valid {
		e.ResolvedAt = &resolvedAt.Time
	}
	return &e, nil
}
