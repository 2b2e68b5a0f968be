//go:build integration

package casestore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"caseflow/internal/domain"
	"caseflow/internal/workflow/store/casestore"
	id "caseflow/pkg/domain"
	"caseflow/pkg/platform/sentinel"
	"caseflow/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *casestore.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = casestore.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "case_transitions", "escalations", "cases")
	s.Require().NoError(err)
}

func newTestCase(number string) *domain.Case {
	template, _ := domain.TemplateForPriority(domain.PriorityHigh)
	template.ID = id.TemplateID(uuid.New())
	c, _ := domain.NewCase(
		id.CaseID(uuid.New()), number,
		id.UnitID(uuid.New()), id.RegionID(uuid.New()),
		domain.PriorityHigh, template, time.Now().UTC().Truncate(time.Millisecond),
	)
	return c
}

func applyTo(to domain.CaseStatus) func(*domain.Case) *domain.TransitionRecord {
	return func(current *domain.Case) *domain.TransitionRecord {
		from := current.Status
		now := time.Now().UTC().Truncate(time.Millisecond)
		current.ApplyTransition(to, now)
		return &domain.TransitionRecord{
			CaseID:     current.ID,
			FromStatus: from,
			ToStatus:   to,
			ActorID:    id.ActorID(uuid.New()),
			ActorRole:  domain.RoleUnitManager,
			Reason:     "test",
			OccurredAt: now,
		}
	}
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	c := newTestCase("DCA-9001")
	s.Require().NoError(s.store.Create(ctx, c))

	found, err := s.store.FindByID(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(c.CaseNumber, found.CaseNumber)
	s.Equal(c.Status, found.Status)
	s.Equal(c.SLA.ResolutionThreshold, found.SLA.ResolutionThreshold)
	s.Equal(c.Version, found.Version)

	_, err = s.store.FindByID(ctx, id.CaseID(uuid.New()))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.Require().ErrorIs(s.store.Create(ctx, c), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestExecuteTransitionPersistsBoth() {
	ctx := context.Background()
	c := newTestCase("DCA-9002")
	s.Require().NoError(s.store.Create(ctx, c))

	updated, record, err := s.store.ExecuteTransition(ctx, c.ID,
		func(*domain.Case) error { return nil },
		applyTo(domain.StatusAssigned),
	)
	s.Require().NoError(err)
	s.Equal(domain.StatusAssigned, updated.Status)
	s.Equal(int64(2), updated.Version)
	s.Equal(domain.StatusPendingAllocation, record.FromStatus)

	found, err := s.store.FindByID(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(domain.StatusAssigned, found.Status)

	records, err := s.store.ListTransitions(ctx, c.ID)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal(domain.StatusAssigned, records[0].ToStatus)
	s.Equal("test", records[0].Reason)
}

func (s *PostgresStoreSuite) TestValidationFailureRollsBack() {
	ctx := context.Background()
	c := newTestCase("DCA-9003")
	s.Require().NoError(s.store.Create(ctx, c))

	rejection := errors.New("not legal")
	_, _, err := s.store.ExecuteTransition(ctx, c.ID,
		func(*domain.Case) error { return rejection },
		applyTo(domain.StatusAssigned),
	)
	s.Require().ErrorIs(err, rejection)

	found, err := s.store.FindByID(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(domain.StatusPendingAllocation, found.Status)
	s.Equal(int64(1), found.Version)

	records, err := s.store.ListTransitions(ctx, c.ID)
	s.Require().NoError(err)
	s.Empty(records)
}

func (s *PostgresStoreSuite) TestConcurrentWritersSerialize() {
	ctx := context.Background()
	c := newTestCase("DCA-9004")
	s.Require().NoError(s.store.Create(ctx, c))

	validate := func(current *domain.Case) error {
		if current.Status != domain.StatusPendingAllocation {
			return sentinel.ErrConflict
		}
		return nil
	}

	type outcome struct{ err error }
	results := make(chan outcome, 2)
	targets := []domain.CaseStatus{domain.StatusAssigned, domain.StatusWrittenOff}
	for _, target := range targets {
		go func(to domain.CaseStatus) {
			_, _, err := s.store.ExecuteTransition(ctx, c.ID, validate, applyTo(to))
			results <- outcome{err: err}
		}(target)
	}

	var successes, conflicts int
	for i := 0; i < 2; i++ {
		r := <-results
		switch {
		case r.err == nil:
			successes++
		case errors.Is(r.err, sentinel.ErrConflict):
			conflicts++
		default:
			s.Failf("unexpected error", "%v", r.err)
		}
	}
	s.Equal(1, successes)
	s.Equal(1, conflicts)

	records, err := s.store.ListTransitions(ctx, c.ID)
	s.Require().NoError(err)
	s.Len(records, 1)
}

func (s *PostgresStoreSuite) TestListWorkableExcludesTerminal() {
	ctx := context.Background()
	open := newTestCase("DCA-9005")
	done := newTestCase("DCA-9006")
	s.Require().NoError(s.store.Create(ctx, open))
	s.Require().NoError(s.store.Create(ctx, done))

	_, _, err := s.store.ExecuteTransition(ctx, done.ID,
		func(*domain.Case) error { return nil },
		applyTo(domain.StatusClosed),
	)
	s.Require().NoError(err)

	cases, err := s.store.ListWorkable(ctx)
	s.Require().NoError(err)
	s.Require().Len(cases, 1)
	s.Equal(open.ID, cases[0].ID)
}
