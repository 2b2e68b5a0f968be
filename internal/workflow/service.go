package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"caseflow/internal/access"
	"caseflow/internal/audit"
	"caseflow/internal/domain"
	"caseflow/internal/notify"
	workflowmetrics "caseflow/internal/workflow/metrics"
	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/platform/sentinel"
	"caseflow/pkg/requestcontext"
)

// CaseStore is the persistence surface the engine mutates through.
//
// ExecuteTransition is the race guard required for strictly sequential
// per-case transitions: the store holds the per-case lock (mutex or SELECT
// FOR UPDATE) across both callbacks and persists the mutated case together
// with the transition record as one logical unit. A losing concurrent writer
// observes sentinel.ErrConflict and must re-read.
type CaseStore interface {
	Create(ctx context.Context, c *domain.Case) error
	FindByID(ctx context.Context, caseID id.CaseID) (*domain.Case, error)
	ListWorkable(ctx context.Context) ([]*domain.Case, error)
	ExecuteTransition(ctx context.Context, caseID id.CaseID,
		validate func(c *domain.Case) error,
		apply func(c *domain.Case) *domain.TransitionRecord,
	) (*domain.Case, *domain.TransitionRecord, error)
	ListTransitions(ctx context.Context, caseID id.CaseID) ([]domain.TransitionRecord, error)
}

// AuditPublisher records engine events; emission failures never roll back a
// transition.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service executes governed case status transitions.
type Service struct {
	cases          CaseStore
	evaluator      *access.Evaluator
	table          *Table
	logger         *slog.Logger
	auditPublisher AuditPublisher
	notifier       notify.Dispatcher
	metrics        *workflowmetrics.Metrics
	storeTimeout   time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.auditPublisher = publisher }
}

func WithNotifier(notifier notify.Dispatcher) Option {
	return func(s *Service) { s.notifier = notifier }
}

func WithMetrics(m *workflowmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithStoreTimeout bounds every store round trip so no transition blocks
// indefinitely on a slow backend.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) { s.storeTimeout = d }
}

// NewService constructs the workflow engine over a store, an access
// evaluator, and a transition table.
func NewService(cases CaseStore, evaluator *access.Evaluator, table *Table, opts ...Option) *Service {
	s := &Service{
		cases:        cases,
		evaluator:    evaluator,
		table:        table,
		logger:       slog.Default(),
		storeTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TransitionResult reports a completed transition.
type TransitionResult struct {
	CaseID     id.CaseID         `json:"case_id"`
	FromStatus domain.CaseStatus `json:"from_status"`
	ToStatus   domain.CaseStatus `json:"to_status"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// CreateCaseParams describes a new case. Template is optional; when nil the
// catalog template for the priority is snapshotted.
type CreateCaseParams struct {
	CaseNumber string
	UnitID     id.UnitID
	RegionID   id.RegionID
	Priority   domain.Priority
	Template   *domain.SLATemplate
}

// CreateCase allocates a new case in the initial unassigned state.
func (s *Service) CreateCase(ctx context.Context, actor *domain.Actor, params CreateCaseParams) (*domain.Case, error) {
	decision, err := s.evaluator.Evaluate(actor, access.ActionCaseCreate, access.Resource{
		OwningUnitID: params.UnitID,
		RegionID:     params.RegionID,
	})
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, s.denied(ctx, actor, uuid.Nil.String(), decision)
	}

	sla := domain.SLATemplate{}
	if params.Template != nil {
		sla = *params.Template
	} else {
		sla, err = domain.TemplateForPriority(params.Priority)
		if err != nil {
			return nil, err
		}
	}
	if sla.ID.IsNil() {
		sla.ID = id.TemplateID(uuid.New())
	}

	now := requestcontext.Now(ctx)
	c, err := domain.NewCase(id.CaseID(uuid.New()), strings.TrimSpace(params.CaseNumber), params.UnitID, params.RegionID, params.Priority, sla, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	storeCtx, cancel := s.boundedCtx(ctx)
	defer cancel()
	if err := s.cases.Create(storeCtx, c); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create case")
	}

	s.emitAudit(ctx, actor, audit.EventCaseCreated, c.ID.String(), map[string]string{
		"case_number": c.CaseNumber,
		"priority":    c.Priority.String(),
	})
	return c, nil
}

// GetCase loads a case after an access check.
func (s *Service) GetCase(ctx context.Context, actor *domain.Actor, caseID id.CaseID) (*domain.Case, error) {
	c, err := s.loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	decision, err := s.evaluator.Evaluate(actor, access.ActionCaseRead, resourceOf(c))
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, s.denied(ctx, actor, c.ID.String(), decision)
	}
	return c, nil
}

// Transition moves one case to a new status on behalf of an actor.
//
// The sequence is fixed: load, access gate, then a table-legality and no-op
// check revalidated under the store's per-case lock so a writer that raced a
// concurrent transition is rejected on current state, never on stale state.
func (s *Service) Transition(ctx context.Context, actor *domain.Actor, caseID id.CaseID, to domain.CaseStatus, notes string) (*TransitionResult, error) {
	if !to.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown target status")
	}

	c, err := s.loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	decision, err := s.evaluator.Evaluate(actor, access.ActionCaseTransition, resourceOf(c))
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, s.denied(ctx, actor, c.ID.String(), decision)
	}

	now := requestcontext.Now(ctx)
	storeCtx, cancel := s.boundedCtx(ctx)
	defer cancel()

	updated, record, err := s.cases.ExecuteTransition(storeCtx, caseID,
		func(current *domain.Case) error {
			return s.checkTransition(current, actor.Role, to)
		},
		func(current *domain.Case) *domain.TransitionRecord {
			from := current.Status
			current.ApplyTransition(to, now)
			return &domain.TransitionRecord{
				CaseID:     current.ID,
				FromStatus: from,
				ToStatus:   to,
				ActorID:    actor.ID,
				ActorRole:  actor.Role,
				Reason:     strings.TrimSpace(notes),
				OccurredAt: now,
			}
		},
	)
	if err != nil {
		return nil, s.translateTransitionErr(ctx, actor, caseID, err)
	}

	s.afterTransition(ctx, actor, updated, record)

	return &TransitionResult{
		CaseID:     updated.ID,
		FromStatus: record.FromStatus,
		ToStatus:   record.ToStatus,
		OccurredAt: record.OccurredAt,
	}, nil
}

// AllowedTransitions exposes the legal target set for a case and actor
// without mutating. It reuses the same table and access check as Transition
// so the two can never diverge.
func (s *Service) AllowedTransitions(ctx context.Context, actor *domain.Actor, caseID id.CaseID) ([]domain.CaseStatus, error) {
	c, err := s.loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	decision, err := s.evaluator.Evaluate(actor, access.ActionCaseTransition, resourceOf(c))
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, s.denied(ctx, actor, c.ID.String(), decision)
	}
	if c.Status.IsTerminal() {
		return []domain.CaseStatus{}, nil
	}
	targets := s.table.Targets(c.Status, actor.Role)
	if targets == nil {
		targets = []domain.CaseStatus{}
	}
	return targets, nil
}

// BatchRequest is one item of a bulk transition.
type BatchRequest struct {
	CaseID id.CaseID         `json:"case_id"`
	To     domain.CaseStatus `json:"to_status"`
	Notes  string            `json:"notes,omitempty"`
}

// BatchItemResult reports the outcome for one case of a bulk transition.
type BatchItemResult struct {
	CaseID id.CaseID         `json:"case_id"`
	Result *TransitionResult `json:"result,omitempty"`
	Reason Reason            `json:"reason,omitempty"`
	Err    string            `json:"error,omitempty"`
}

// TransitionBatch runs N independent single-case transitions, each
// access-checked on its own. A failing item never aborts the rest; callers
// get per-case results.
func (s *Service) TransitionBatch(ctx context.Context, actor *domain.Actor, requests []BatchRequest) []BatchItemResult {
	results := make([]BatchItemResult, 0, len(requests))
	for _, req := range requests {
		item := BatchItemResult{CaseID: req.CaseID}
		result, err := s.Transition(ctx, actor, req.CaseID, req.To, req.Notes)
		if err != nil {
			item.Reason = ReasonOf(err)
			item.Err = err.Error()
		} else {
			item.Result = result
		}
		results = append(results, item)
	}
	return results
}

// History returns the append-only transition trail for a case.
func (s *Service) History(ctx context.Context, actor *domain.Actor, caseID id.CaseID) ([]domain.TransitionRecord, error) {
	c, err := s.loadCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	decision, err := s.evaluator.Evaluate(actor, access.ActionCaseRead, resourceOf(c))
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, s.denied(ctx, actor, c.ID.String(), decision)
	}
	storeCtx, cancel := s.boundedCtx(ctx)
	defer cancel()
	records, err := s.cases.ListTransitions(storeCtx, caseID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load transition history")
	}
	return records, nil
}

// checkTransition enforces the state-machine rules on current state. Runs
// under the store's per-case lock.
func (s *Service) checkTransition(current *domain.Case, role domain.Role, to domain.CaseStatus) error {
	if current.Status.IsTerminal() {
		return newError(ReasonInvalidTransition, dErrors.CodeInvariantViolation,
			"case is in terminal status "+current.Status.String())
	}
	if current.Status == to {
		// Strictly state-changing: idempotent double-submits must not
		// produce duplicate audit entries.
		return newError(ReasonInvalidTransition, dErrors.CodeInvariantViolation,
			"transition must change status")
	}
	if !s.table.Allows(current.Status, role, to) {
		return newError(ReasonInvalidTransition, dErrors.CodeInvariantViolation,
			"transition "+current.Status.String()+" -> "+to.String()+" is not permitted for role "+role.String())
	}
	return nil
}

func (s *Service) loadCase(ctx context.Context, caseID id.CaseID) (*domain.Case, error) {
	storeCtx, cancel := s.boundedCtx(ctx)
	defer cancel()
	c, err := s.cases.FindByID(storeCtx, caseID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, newError(ReasonCaseNotFound, dErrors.CodeNotFound, "case not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load case")
	}
	return c, nil
}

// denied translates an access decision into a workflow error and records the
// denial, which is security-relevant and always audit-logged.
func (s *Service) denied(ctx context.Context, actor *domain.Actor, resourceID string, decision access.Decision) error {
	reason := Reason(decision.Reason)
	if decision.Reason == access.ReasonOutOfUnit {
		// Distinct from generic permission denial so callers render the
		// correct message.
		reason = ReasonNotAssignedToUserUnit
	}
	if s.metrics != nil {
		s.metrics.IncrementRejection(string(reason))
	}
	s.emitAudit(ctx, actor, audit.EventTransitionDenied, resourceID, map[string]string{
		"reason": string(reason),
	})
	return newError(reason, dErrors.CodeForbidden, "access denied: "+string(decision.Reason))
}

func (s *Service) translateTransitionErr(ctx context.Context, actor *domain.Actor, caseID id.CaseID, err error) error {
	var we *Error
	if errors.As(err, &we) {
		if s.metrics != nil {
			s.metrics.IncrementRejection(string(we.Reason))
		}
		return we
	}
	if errors.Is(err, sentinel.ErrConflict) {
		if s.metrics != nil {
			s.metrics.IncrementConflict()
		}
		s.emitAudit(ctx, actor, audit.EventTransitionConflict, caseID.String(), nil)
		// Surfaced distinctly so the caller retries by re-reading current
		// state; the engine never auto-retries.
		return newError(ReasonConflict, dErrors.CodeConflict, "case was modified concurrently")
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return newError(ReasonCaseNotFound, dErrors.CodeNotFound, "case not found")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "store access timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to execute transition")
}

// afterTransition fires the downstream effects: audit record, metrics, and
// notification fan-out for escalations and terminal states. All best-effort.
func (s *Service) afterTransition(ctx context.Context, actor *domain.Actor, c *domain.Case, record *domain.TransitionRecord) {
	if s.metrics != nil {
		s.metrics.IncrementTransition(record.FromStatus.String(), record.ToStatus.String())
	}

	s.emitAudit(ctx, actor, audit.EventCaseTransitioned, c.ID.String(), map[string]string{
		"from":   record.FromStatus.String(),
		"to":     record.ToStatus.String(),
		"reason": record.Reason,
	})

	if s.notifier == nil {
		return
	}
	if record.ToStatus != domain.StatusEscalated && !record.ToStatus.IsTerminal() {
		return
	}
	eventType := "case.escalated"
	if record.ToStatus.IsTerminal() {
		eventType = "case.closed"
	}
	if err := s.notifier.Dispatch(ctx, eventType, map[string]any{
		"case_id":     c.ID.String(),
		"case_number": c.CaseNumber,
		"from_status": record.FromStatus.String(),
		"to_status":   record.ToStatus.String(),
		"actor_role":  record.ActorRole.String(),
	}); err != nil {
		s.logger.WarnContext(ctx, "notification dispatch failed",
			"case_id", c.ID.String(), "event_type", eventType, "error", err)
	}
}

func (s *Service) emitAudit(ctx context.Context, actor *domain.Actor, action audit.AuditEvent, resourceID string, metadata map[string]string) {
	actorID := ""
	if actor != nil {
		if !actor.ID.IsNil() {
			actorID = actor.ID.String()
		} else if actor.Role == domain.RoleSystem {
			actorID = domain.TriggeredBySystem
		}
	}
	role := ""
	if actor != nil {
		role = actor.Role.String()
	}

	event := audit.Event{
		Timestamp:    requestcontext.Now(ctx),
		ActorID:      actorID,
		ActorRole:    role,
		Action:       string(action),
		ResourceType: "case",
		ResourceID:   resourceID,
		RequestID:    requestcontext.RequestID(ctx),
		Metadata:     metadata,
	}

	s.logger.InfoContext(ctx, string(action),
		"actor_role", role, "case_id", resourceID, "log_type", "audit")

	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", string(action), "error", err)
	}
}

func (s *Service) boundedCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}

func resourceOf(c *domain.Case) access.Resource {
	return access.Resource{OwningUnitID: c.OwningUnitID, RegionID: c.RegionID}
}

// Table exposes the transition table for companion read paths and tests.
func (s *Service) Table() *Table {
	return s.table
}

// Store exposes the case store for the breach detector's read pass.
func (s *Service) Store() CaseStore {
	return s.cases
}
