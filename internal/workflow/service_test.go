package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"caseflow/internal/access"
	"caseflow/internal/audit"
	auditmemory "caseflow/internal/audit/store/memory"
	"caseflow/internal/domain"
	"caseflow/internal/workflow/store/casestore"
	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	store      *casestore.Memory
	auditStore *auditmemory.InMemoryStore
	service    *Service
	ctx        context.Context
	now        time.Time

	unitID   id.UnitID
	regionID id.RegionID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = casestore.NewMemory()
	s.auditStore = auditmemory.NewInMemoryStore()
	evaluator := access.NewEvaluator(access.NewSnapshot(access.DefaultPolicy()))
	s.service = NewService(s.store, evaluator, DefaultTable(),
		WithAuditPublisher(audit.NewPublisher(s.auditStore)),
	)
	s.now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.unitID = id.UnitID(uuid.New())
	s.regionID = id.RegionID(uuid.New())
}

func (s *ServiceSuite) admin() *domain.Actor {
	return &domain.Actor{ID: id.ActorID(uuid.New()), Role: domain.RoleAdmin}
}

func (s *ServiceSuite) unitManager(unit id.UnitID) *domain.Actor {
	return &domain.Actor{ID: id.ActorID(uuid.New()), Role: domain.RoleUnitManager, UnitID: &unit}
}

func (s *ServiceSuite) agent(unit id.UnitID, regions ...id.RegionID) *domain.Actor {
	return &domain.Actor{ID: id.ActorID(uuid.New()), Role: domain.RoleAgent, UnitID: &unit, RegionIDs: regions}
}

func (s *ServiceSuite) createCase() *domain.Case {
	c, err := s.service.CreateCase(s.ctx, s.admin(), CreateCaseParams{
		CaseNumber: "DCA-" + uuid.NewString()[:8],
		UnitID:     s.unitID,
		RegionID:   s.regionID,
		Priority:   domain.PriorityHigh,
	})
	s.Require().NoError(err)
	return c
}

// createCaseIn walks a fresh case to the wanted status through the table.
func (s *ServiceSuite) createCaseIn(status domain.CaseStatus) *domain.Case {
	c := s.createCase()
	admin := s.admin()
	path := map[domain.CaseStatus][]domain.CaseStatus{
		domain.StatusPendingAllocation: {},
		domain.StatusAssigned:          {domain.StatusAssigned},
		domain.StatusInProgress:        {domain.StatusAssigned, domain.StatusInProgress},
		domain.StatusEscalated:         {domain.StatusAssigned, domain.StatusEscalated},
		domain.StatusResolved:          {domain.StatusAssigned, domain.StatusInProgress, domain.StatusResolved},
		domain.StatusFullRecovery:      {domain.StatusAssigned, domain.StatusInProgress, domain.StatusResolved, domain.StatusFullRecovery},
		domain.StatusClosed:            {domain.StatusAssigned, domain.StatusClosed},
		domain.StatusWrittenOff:        {domain.StatusWrittenOff},
	}
	for _, step := range path[status] {
		_, err := s.service.Transition(s.ctx, admin, c.ID, step, "")
		s.Require().NoError(err)
	}
	current, err := s.store.FindByID(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Require().Equal(status, current.Status)
	return current
}

func (s *ServiceSuite) TestCreateCase() {
	s.Run("starts unallocated with SLA snapshot and version 1", func() {
		c := s.createCase()
		s.Equal(domain.StatusPendingAllocation, c.Status)
		s.Equal(int64(1), c.Version)
		s.Equal(48*time.Hour, c.SLA.ResolutionThreshold)
		s.Equal(8*time.Hour, c.SLA.EscalationThreshold)
		s.Equal(s.now, c.StatusEnteredAt)
	})

	s.Run("rejects empty case number", func() {
		_, err := s.service.CreateCase(s.ctx, s.admin(), CreateCaseParams{
			CaseNumber: "  ",
			UnitID:     s.unitID,
			RegionID:   s.regionID,
			Priority:   domain.PriorityLow,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("agent cannot create cases", func() {
		_, err := s.service.CreateCase(s.ctx, s.agent(s.unitID, s.regionID), CreateCaseParams{
			CaseNumber: "DCA-AGENT",
			UnitID:     s.unitID,
			RegionID:   s.regionID,
			Priority:   domain.PriorityLow,
		})
		s.Require().Error(err)
		// The evaluator's reason passes through untouched.
		s.Equal(Reason(access.ReasonActionNotPermitted), ReasonOf(err))
	})

	s.Run("emits creation audit event", func() {
		c := s.createCase()
		events, err := s.auditStore.ListByResource(s.ctx, "case", c.ID.String())
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventCaseCreated), events[0].Action)
		s.Equal(audit.CategoryCompliance, events[0].Category)
	})
}

func (s *ServiceSuite) TestTransition() {
	s.Run("legal transition updates status and appends record", func() {
		c := s.createCase()
		result, err := s.service.Transition(s.ctx, s.unitManager(s.unitID), c.ID, domain.StatusAssigned, "allocating")
		s.Require().NoError(err)
		s.Equal(domain.StatusPendingAllocation, result.FromStatus)
		s.Equal(domain.StatusAssigned, result.ToStatus)
		s.Equal(s.now, result.OccurredAt)

		records, err := s.service.History(s.ctx, s.admin(), c.ID)
		s.Require().NoError(err)
		s.Require().Len(records, 1)
		s.Equal("allocating", records[0].Reason)
		s.Equal(domain.RoleUnitManager, records[0].ActorRole)
	})

	s.Run("transition re-anchors the status timer", func() {
		c := s.createCase()
		later := s.now.Add(3 * time.Hour)
		ctx := requestcontext.WithTime(context.Background(), later)
		_, err := s.service.Transition(ctx, s.admin(), c.ID, domain.StatusAssigned, "")
		s.Require().NoError(err)

		current, err := s.store.FindByID(ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(later, current.StatusEnteredAt)
	})

	s.Run("no-op transition is rejected", func() {
		c := s.createCaseIn(domain.StatusAssigned)
		_, err := s.service.Transition(s.ctx, s.admin(), c.ID, domain.StatusAssigned, "")
		s.Require().Error(err)
		s.Equal(ReasonInvalidTransition, ReasonOf(err))
	})

	s.Run("terminal case permits no transitions", func() {
		c := s.createCaseIn(domain.StatusClosed)
		_, err := s.service.Transition(s.ctx, s.admin(), c.ID, domain.StatusInProgress, "")
		s.Require().Error(err)
		s.Equal(ReasonInvalidTransition, ReasonOf(err))
	})

	s.Run("transition not in table is rejected", func() {
		c := s.createCase()
		// Agents cannot pull work out of the unallocated pool.
		_, err := s.service.Transition(s.ctx, s.agent(s.unitID, s.regionID), c.ID, domain.StatusAssigned, "")
		s.Require().Error(err)
		s.Equal(ReasonInvalidTransition, ReasonOf(err))
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("foreign unit reports NOT_ASSIGNED_TO_USER_UNIT", func() {
		c := s.createCaseIn(domain.StatusAssigned)
		foreign := s.unitManager(id.UnitID(uuid.New()))
		_, err := s.service.Transition(s.ctx, foreign, c.ID, domain.StatusInProgress, "")
		s.Require().Error(err)
		s.Equal(ReasonNotAssignedToUserUnit, ReasonOf(err))
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

		// Denials are security-relevant and always leave an audit entry.
		events, lerr := s.auditStore.ListByResource(s.ctx, "case", c.ID.String())
		s.Require().NoError(lerr)
		var denied bool
		for _, e := range events {
			if e.Action == string(audit.EventTransitionDenied) {
				denied = true
				s.Equal(string(ReasonNotAssignedToUserUnit), e.Metadata["reason"])
			}
		}
		s.True(denied)
	})

	s.Run("agent outside region reports OUT_OF_REGION", func() {
		c := s.createCaseIn(domain.StatusAssigned)
		outsider := s.agent(s.unitID, id.RegionID(uuid.New()))
		_, err := s.service.Transition(s.ctx, outsider, c.ID, domain.StatusInProgress, "")
		s.Require().Error(err)
		s.Equal(Reason(access.ReasonOutOfRegion), ReasonOf(err))
	})

	s.Run("unknown case reports CASE_NOT_FOUND", func() {
		_, err := s.service.Transition(s.ctx, s.admin(), id.CaseID(uuid.New()), domain.StatusAssigned, "")
		s.Require().Error(err)
		s.Equal(ReasonCaseNotFound, ReasonOf(err))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("invalid target status is rejected before any store access", func() {
		_, err := s.service.Transition(s.ctx, s.admin(), id.CaseID(uuid.New()), domain.CaseStatus("BOGUS"), "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("successful transition is audit logged", func() {
		c := s.createCase()
		_, err := s.service.Transition(s.ctx, s.admin(), c.ID, domain.StatusAssigned, "")
		s.Require().NoError(err)

		events, err := s.auditStore.ListByResource(s.ctx, "case", c.ID.String())
		s.Require().NoError(err)
		var transitioned bool
		for _, e := range events {
			if e.Action == string(audit.EventCaseTransitioned) {
				transitioned = true
				s.Equal("PENDING_ALLOCATION", e.Metadata["from"])
				s.Equal("ASSIGNED", e.Metadata["to"])
			}
		}
		s.True(transitioned)
	})
}

func (s *ServiceSuite) TestConcurrentTransitions() {
	// Two writers race the same case from ASSIGNED; exactly one commits, the
	// loser is rejected on the already-mutated state.
	c := s.createCaseIn(domain.StatusAssigned)
	admin := s.admin()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	// Whichever writer lands first makes the other's target illegal: neither
	// IN_PROGRESS -> PENDING_ALLOCATION nor PENDING_ALLOCATION -> IN_PROGRESS
	// is in the table.
	targets := []domain.CaseStatus{domain.StatusInProgress, domain.StatusPendingAllocation}
	for i := range targets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.service.Transition(s.ctx, admin, c.ID, targets[i], "")
		}(i)
	}
	wg.Wait()

	var successes, rejections int
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		// The loser validated against the winner's target status, where its
		// own target is no longer reachable by the table or the case is
		// terminal. Either way it surfaces as a transition rejection, never
		// as a silent overwrite.
		s.Equal(ReasonInvalidTransition, ReasonOf(err))
		rejections++
	}
	s.Equal(1, successes)
	s.Equal(1, rejections)

	records, err := s.service.History(s.ctx, admin, c.ID)
	s.Require().NoError(err)
	s.Len(records, 2) // create path transition + the single winner
}

func (s *ServiceSuite) TestAllowedTransitions() {
	s.Run("mirrors the table for the actor's role", func() {
		c := s.createCaseIn(domain.StatusAssigned)
		targets, err := s.service.AllowedTransitions(s.ctx, s.agent(s.unitID, s.regionID), c.ID)
		s.Require().NoError(err)
		s.ElementsMatch([]domain.CaseStatus{domain.StatusInProgress, domain.StatusEscalated}, targets)
	})

	s.Run("terminal case yields empty set", func() {
		c := s.createCaseIn(domain.StatusWrittenOff)
		targets, err := s.service.AllowedTransitions(s.ctx, s.admin(), c.ID)
		s.Require().NoError(err)
		s.Empty(targets)
	})

	s.Run("role with no rules for the status yields empty set", func() {
		c := s.createCase()
		targets, err := s.service.AllowedTransitions(s.ctx, s.agent(s.unitID, s.regionID), c.ID)
		s.Require().NoError(err)
		s.Empty(targets)
	})

	s.Run("foreign unit is denied", func() {
		c := s.createCase()
		_, err := s.service.AllowedTransitions(s.ctx, s.unitManager(id.UnitID(uuid.New())), c.ID)
		s.Require().Error(err)
		s.Equal(ReasonNotAssignedToUserUnit, ReasonOf(err))
	})

	s.Run("every listed target is executable", func() {
		c := s.createCaseIn(domain.StatusEscalated)
		manager := s.unitManager(s.unitID)
		targets, err := s.service.AllowedTransitions(s.ctx, manager, c.ID)
		s.Require().NoError(err)
		s.Require().NotEmpty(targets)

		_, err = s.service.Transition(s.ctx, manager, c.ID, targets[0], "")
		s.NoError(err)
	})
}

func (s *ServiceSuite) TestTransitionBatch() {
	s.Run("failures are isolated per case", func() {
		ok := s.createCase()
		terminal := s.createCaseIn(domain.StatusClosed)

		results := s.service.TransitionBatch(s.ctx, s.admin(), []BatchRequest{
			{CaseID: ok.ID, To: domain.StatusAssigned},
			{CaseID: terminal.ID, To: domain.StatusInProgress},
			{CaseID: id.CaseID(uuid.New()), To: domain.StatusAssigned},
		})
		s.Require().Len(results, 3)

		s.Require().NotNil(results[0].Result)
		s.Equal(domain.StatusAssigned, results[0].Result.ToStatus)

		s.Nil(results[1].Result)
		s.Equal(ReasonInvalidTransition, results[1].Reason)

		s.Nil(results[2].Result)
		s.Equal(ReasonCaseNotFound, results[2].Reason)
	})
}

func (s *ServiceSuite) TestGetCase() {
	s.Run("scoped read honors unit ownership", func() {
		c := s.createCase()
		_, err := s.service.GetCase(s.ctx, s.unitManager(s.unitID), c.ID)
		s.NoError(err)

		_, err = s.service.GetCase(s.ctx, s.unitManager(id.UnitID(uuid.New())), c.ID)
		s.Require().Error(err)
		s.Equal(ReasonNotAssignedToUserUnit, ReasonOf(err))
	})
}

type escalationNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *escalationNotifier) Dispatch(_ context.Context, eventType string, _ map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, eventType)
	return nil
}

func (s *ServiceSuite) TestNotifications() {
	notifier := &escalationNotifier{}
	evaluator := access.NewEvaluator(access.NewSnapshot(access.DefaultPolicy()))
	service := NewService(s.store, evaluator, DefaultTable(),
		WithNotifier(notifier),
	)

	c, err := service.CreateCase(s.ctx, s.admin(), CreateCaseParams{
		CaseNumber: "DCA-NOTIFY",
		UnitID:     s.unitID,
		RegionID:   s.regionID,
		Priority:   domain.PriorityMedium,
	})
	s.Require().NoError(err)

	admin := s.admin()
	_, err = service.Transition(s.ctx, admin, c.ID, domain.StatusAssigned, "")
	s.Require().NoError(err)
	s.Empty(notifier.events) // ordinary forward move, no fan-out

	_, err = service.Transition(s.ctx, admin, c.ID, domain.StatusEscalated, "")
	s.Require().NoError(err)
	_, err = service.Transition(s.ctx, admin, c.ID, domain.StatusClosed, "")
	s.Require().NoError(err)

	s.Equal([]string{"case.escalated", "case.closed"}, notifier.events)
}
