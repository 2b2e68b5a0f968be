//go:build integration

package escalation_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"caseflow/internal/domain"
	"caseflow/internal/sla/store/escalation"
	"caseflow/internal/workflow/store/casestore"
	id "caseflow/pkg/domain"
	"caseflow/pkg/platform/sentinel"
	"caseflow/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *escalation.Postgres
	cases    *casestore.Postgres
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
	s.store = escalation.NewPostgres(s.postgres.DB)
	s.cases = casestore.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "escalations", "case_transitions", "cases")
	s.Require().NoError(err)
}

// escalations carry a foreign key to cases, so every test needs a parent row.
func (s *PostgresStoreSuite) createCase(number string) id.CaseID {
	template, _ := domain.TemplateForPriority(domain.PriorityHigh)
	template.ID = id.TemplateID(uuid.New())
	c, err := domain.NewCase(
		id.CaseID(uuid.New()), number,
		id.UnitID(uuid.New()), id.RegionID(uuid.New()),
		domain.PriorityHigh, template, time.Now().UTC().Truncate(time.Millisecond),
	)
	s.Require().NoError(err)
	s.Require().NoError(s.cases.Create(context.Background(), c))
	return c.ID
}

func newEscalation(caseID id.CaseID, level domain.EscalationLevel) *domain.Escalation {
	return &domain.Escalation{
		ID:          id.EscalationID(uuid.New()),
		CaseID:      caseID,
		Level:       level,
		TriggeredAt: time.Now().UTC().Truncate(time.Millisecond),
		TriggeredBy: domain.TriggeredBySystem,
	}
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	caseID := s.createCase("DCA-7001")
	e := newEscalation(caseID, domain.EscalationL1)

	s.Require().NoError(s.store.Create(ctx, e))

	found, err := s.store.FindByID(ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(e.CaseID, found.CaseID)
	s.Equal(domain.EscalationL1, found.Level)
	s.Equal(domain.TriggeredBySystem, found.TriggeredBy)
	s.Nil(found.ResolvedAt)

	open, err := s.store.FindOpenByCase(ctx, caseID)
	s.Require().NoError(err)
	s.Equal(e.ID, open.ID)

	_, err = s.store.FindByID(ctx, id.EscalationID(uuid.New()))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestPartialIndexEnforcesSingleOpen() {
	ctx := context.Background()
	caseID := s.createCase("DCA-7002")
	s.Require().NoError(s.store.Create(ctx, newEscalation(caseID, domain.EscalationL1)))

	err := s.store.Create(ctx, newEscalation(caseID, domain.EscalationL2))
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestResolutionReleasesOpenSlot() {
	ctx := context.Background()
	caseID := s.createCase("DCA-7003")
	e := newEscalation(caseID, domain.EscalationL1)
	s.Require().NoError(s.store.Create(ctx, e))

	resolvedAt := time.Now().UTC().Truncate(time.Millisecond)
	e.ApplyResolution(resolvedAt)
	s.Require().NoError(s.store.Update(ctx, e))

	_, err := s.store.FindOpenByCase(ctx, caseID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	// Resolved history no longer blocks a fresh escalation.
	s.Require().NoError(s.store.Create(ctx, newEscalation(caseID, domain.EscalationL2)))

	list, err := s.store.ListByCase(ctx, caseID)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(e.ID, list[0].ID, "oldest first")
	s.NotNil(list[0].ResolvedAt)
}

func (s *PostgresStoreSuite) TestUpdateLevel() {
	ctx := context.Background()
	caseID := s.createCase("DCA-7004")
	e := newEscalation(caseID, domain.EscalationL1)
	s.Require().NoError(s.store.Create(ctx, e))

	e.Level = domain.EscalationL2
	s.Require().NoError(s.store.Update(ctx, e))

	found, err := s.store.FindByID(ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(domain.EscalationL2, found.Level)

	unknown := newEscalation(caseID, domain.EscalationL3)
	s.Require().ErrorIs(s.store.Update(ctx, unknown), sentinel.ErrNotFound)
}
