package escalation_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"caseflow/internal/domain"
	"caseflow/internal/sla/store/escalation"
	id "caseflow/pkg/domain"
	"caseflow/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *escalation.Memory
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = escalation.NewMemory()
}

func (s *MemoryStoreSuite) newEscalation(caseID id.CaseID, level domain.EscalationLevel) *domain.Escalation {
	return &domain.Escalation{
		ID:          id.EscalationID(uuid.New()),
		CaseID:      caseID,
		Level:       level,
		TriggeredAt: time.Now(),
		TriggeredBy: domain.TriggeredBySystem,
	}
}

func (s *MemoryStoreSuite) TestCreateAndFind() {
	caseID := id.CaseID(uuid.New())
	e := s.newEscalation(caseID, domain.EscalationL1)

	s.Require().NoError(s.store.Create(s.ctx, e))

	found, err := s.store.FindByID(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(e.ID, found.ID)
	s.Equal(domain.EscalationL1, found.Level)

	open, err := s.store.FindOpenByCase(s.ctx, caseID)
	s.Require().NoError(err)
	s.Equal(e.ID, open.ID)
}

func (s *MemoryStoreSuite) TestSingleOpenEscalationPerCase() {
	caseID := id.CaseID(uuid.New())
	s.Require().NoError(s.store.Create(s.ctx, s.newEscalation(caseID, domain.EscalationL1)))

	err := s.store.Create(s.ctx, s.newEscalation(caseID, domain.EscalationL2))
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *MemoryStoreSuite) TestResolutionReleasesOpenSlot() {
	caseID := id.CaseID(uuid.New())
	e := s.newEscalation(caseID, domain.EscalationL1)
	s.Require().NoError(s.store.Create(s.ctx, e))

	e.ApplyResolution(time.Now())
	s.Require().NoError(s.store.Update(s.ctx, e))

	_, err := s.store.FindOpenByCase(s.ctx, caseID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	// A resolved history entry does not block a new open escalation.
	s.Require().NoError(s.store.Create(s.ctx, s.newEscalation(caseID, domain.EscalationL2)))
}

func (s *MemoryStoreSuite) TestUpdateLevel() {
	caseID := id.CaseID(uuid.New())
	e := s.newEscalation(caseID, domain.EscalationL1)
	s.Require().NoError(s.store.Create(s.ctx, e))

	e.Level = domain.EscalationL2
	s.Require().NoError(s.store.Update(s.ctx, e))

	found, err := s.store.FindByID(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(domain.EscalationL2, found.Level)

	unknown := s.newEscalation(caseID, domain.EscalationL1)
	s.Require().ErrorIs(s.store.Update(s.ctx, unknown), sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestListByCase() {
	caseID := id.CaseID(uuid.New())
	first := s.newEscalation(caseID, domain.EscalationL1)
	first.TriggeredAt = time.Now().Add(-2 * time.Hour)
	s.Require().NoError(s.store.Create(s.ctx, first))

	first.ApplyResolution(time.Now().Add(-time.Hour))
	s.Require().NoError(s.store.Update(s.ctx, first))

	second := s.newEscalation(caseID, domain.EscalationL2)
	s.Require().NoError(s.store.Create(s.ctx, second))

	// Another case's escalation must not leak in.
	s.Require().NoError(s.store.Create(s.ctx, s.newEscalation(id.CaseID(uuid.New()), domain.EscalationL1)))

	list, err := s.store.ListByCase(s.ctx, caseID)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(first.ID, list[0].ID, "oldest first")
	s.Equal(second.ID, list[1].ID)
}

func (s *MemoryStoreSuite) TestCopySemantics() {
	caseID := id.CaseID(uuid.New())
	e := s.newEscalation(caseID, domain.EscalationL1)
	s.Require().NoError(s.store.Create(s.ctx, e))

	found, err := s.store.FindByID(s.ctx, e.ID)
	s.Require().NoError(err)
	found.Level = domain.EscalationL3

	again, err := s.store.FindByID(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(domain.EscalationL1, again.Level)
}
