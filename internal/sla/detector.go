// Package sla watches active cases against their bound SLA templates and
// raises escalations when thresholds pass. The detector never mutates case
// status directly: it routes every status change through the workflow engine
// as the SYSTEM actor, so scheduler-driven moves obey the same transition
// table as human ones.
package sla

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"caseflow/internal/access"
	"caseflow/internal/audit"
	"caseflow/internal/domain"
	slametrics "caseflow/internal/sla/metrics"
	"caseflow/internal/workflow"
	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
	"caseflow/pkg/platform/sentinel"
	"caseflow/pkg/requestcontext"
)

// EscalationStore persists escalation records. The open-escalation lookup is
// the detector's idempotence check and must be durable, not cached.
type EscalationStore interface {
	Create(ctx context.Context, e *domain.Escalation) error
	FindByID(ctx context.Context, escalationID id.EscalationID) (*domain.Escalation, error)
	FindOpenByCase(ctx context.Context, caseID id.CaseID) (*domain.Escalation, error)
	Update(ctx context.Context, e *domain.Escalation) error
	ListByCase(ctx context.Context, caseID id.CaseID) ([]domain.Escalation, error)
}

// SweepLock serializes sweeps across replicas. Losing the lock skips the
// sweep; correctness never depends on it because escalation creation is
// guarded durably in the store.
type SweepLock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Summary reports one sweep run.
type Summary struct {
	CasesExamined        int      `json:"cases_examined"`
	AtRisk               int      `json:"at_risk"`
	BreachesDetected     int      `json:"breaches_detected"`
	BreachesProcessed    int      `json:"breaches_processed"`
	EscalationsTriggered int      `json:"escalations_triggered"`
	EscalationsBumped    int      `json:"escalations_bumped"`
	Skipped              bool     `json:"skipped,omitempty"`
	Errors               []string `json:"errors,omitempty"`
}

// Detector is the SLA timer and breach sweep.
type Detector struct {
	workflow    *workflow.Service
	escalations EscalationStore
	evaluator   *access.Evaluator
	lock        SweepLock
	logger      *slog.Logger
	publisher   workflow.AuditPublisher
	metrics     *slametrics.Metrics
	parallelism int
}

type DetectorOption func(*Detector)

func WithLogger(logger *slog.Logger) DetectorOption {
	return func(d *Detector) { d.logger = logger }
}

func WithSweepLock(lock SweepLock) DetectorOption {
	return func(d *Detector) { d.lock = lock }
}

func WithAuditPublisher(publisher workflow.AuditPublisher) DetectorOption {
	return func(d *Detector) { d.publisher = publisher }
}

func WithMetrics(m *slametrics.Metrics) DetectorOption {
	return func(d *Detector) { d.metrics = m }
}

// WithParallelism bounds concurrent case handling within one sweep.
func WithParallelism(n int) DetectorOption {
	return func(d *Detector) {
		if n > 0 {
			d.parallelism = n
		}
	}
}

func NewDetector(wf *workflow.Service, escalations EscalationStore, evaluator *access.Evaluator, opts ...DetectorOption) *Detector {
	d := &Detector{
		workflow:    wf,
		escalations: escalations,
		evaluator:   evaluator,
		logger:      slog.Default(),
		parallelism: 8,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RunSweep examines every workable case once and processes threshold
// crossings. Safe to re-run at any time: the durable open-escalation check
// makes a repeated sweep over unchanged state a no-op.
//
// Per-case failures are isolated into Summary.Errors; one bad case never
// aborts the rest of the sweep.
func (d *Detector) RunSweep(ctx context.Context) (*Summary, error) {
	system := domain.SystemActor()
	decision, err := d.evaluator.Evaluate(system, access.ActionSweepRun, access.Resource{})
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, dErrors.New(dErrors.CodeForbidden, "sweep not permitted: "+string(decision.Reason))
	}

	if d.lock != nil {
		acquired, err := d.lock.Acquire(ctx)
		if err != nil {
			// Degrade to running unlocked; the store guard keeps overlapping
			// sweeps from double-escalating.
			d.logger.WarnContext(ctx, "sweep lock unavailable, continuing unlocked", "error", err)
		} else if !acquired {
			d.logger.InfoContext(ctx, "sweep already running elsewhere, skipping")
			return &Summary{Skipped: true}, nil
		} else {
			defer func() {
				if err := d.lock.Release(ctx); err != nil {
					d.logger.WarnContext(ctx, "sweep lock release failed", "error", err)
				}
			}()
		}
	}

	cases, err := d.workflow.Store().ListWorkable(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list workable cases")
	}

	now := requestcontext.Now(ctx)
	summary := &Summary{CasesExamined: len(cases)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.parallelism)
	for _, c := range cases {
		c := c
		g.Go(func() error {
			outcome, err := d.sweepCase(gctx, c, now)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Errors = append(summary.Errors, fmt.Sprintf("case %s: %v", c.ID, err))
				return nil
			}
			summary.AtRisk += outcome.atRisk
			summary.BreachesDetected += outcome.breachDetected
			summary.BreachesProcessed += outcome.breachProcessed
			summary.EscalationsTriggered += outcome.escalationsTriggered
			summary.EscalationsBumped += outcome.escalationsBumped
			return nil
		})
	}
	_ = g.Wait()

	if d.metrics != nil {
		d.metrics.ObserveSweep(summary.CasesExamined, summary.BreachesDetected, summary.EscalationsTriggered)
	}
	d.emitAudit(ctx, audit.EventSweepCompleted, "", map[string]string{
		"cases_examined":        fmt.Sprintf("%d", summary.CasesExamined),
		"breaches_detected":     fmt.Sprintf("%d", summary.BreachesDetected),
		"escalations_triggered": fmt.Sprintf("%d", summary.EscalationsTriggered),
		"errors":                fmt.Sprintf("%d", len(summary.Errors)),
	})
	d.logger.InfoContext(ctx, "sla sweep completed",
		"cases_examined", summary.CasesExamined,
		"at_risk", summary.AtRisk,
		"breaches_detected", summary.BreachesDetected,
		"escalations_triggered", summary.EscalationsTriggered,
		"errors", len(summary.Errors),
	)
	return summary, nil
}

type caseOutcome struct {
	atRisk               int
	breachDetected       int
	breachProcessed      int
	escalationsTriggered int
	escalationsBumped    int
}

func (d *Detector) sweepCase(ctx context.Context, c *domain.Case, now time.Time) (caseOutcome, error) {
	var out caseOutcome
	state := c.SLA.Classify(c.TimeInStatus(now))
	switch state {
	case domain.SLAOnTrack:
		return out, nil
	case domain.SLAAtRisk:
		// Crossing the warning threshold raises the escalation record only.
		// The case keeps its status and stays in its owners' workable
		// partition; the status move is reserved for a breach.
		out.atRisk = 1
		triggered, err := d.ensureEscalation(ctx, c, domain.EscalationL1, now)
		if err != nil {
			return out, err
		}
		if triggered {
			out.escalationsTriggered = 1
		}
		return out, nil
	case domain.SLABreached:
		out.breachDetected = 1
		open, err := d.escalations.FindOpenByCase(ctx, c.ID)
		switch {
		case err == nil:
			// Already escalated; a breach past the resolution threshold bumps
			// severity instead of stacking a second escalation.
			if !open.Level.AtLeast(domain.EscalationL2) {
				open.Level = open.Level.Next()
				if err := d.escalations.Update(ctx, open); err != nil {
					return out, fmt.Errorf("bump escalation: %w", err)
				}
				out.escalationsBumped = 1
				d.emitAudit(ctx, audit.EventEscalationBumped, c.ID.String(), map[string]string{
					"escalation_id": open.ID.String(),
					"level":         string(open.Level),
				})
			}
		case errors.Is(err, sentinel.ErrNotFound):
			triggered, err := d.ensureEscalation(ctx, c, domain.EscalationL2, now)
			if err != nil {
				return out, err
			}
			if triggered {
				out.escalationsTriggered = 1
			}
		default:
			return out, fmt.Errorf("check open escalation: %w", err)
		}
		if err := d.escalateCase(ctx, c); err != nil {
			return out, err
		}
		out.breachProcessed = 1
		return out, nil
	}
	return out, nil
}

// ensureEscalation creates an escalation record if the case has none open.
// Reports whether a new escalation was created. It never touches case status;
// that is the breach path's job.
func (d *Detector) ensureEscalation(ctx context.Context, c *domain.Case, level domain.EscalationLevel, now time.Time) (bool, error) {
	if _, err := d.escalations.FindOpenByCase(ctx, c.ID); err == nil {
		return false, nil
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return false, fmt.Errorf("check open escalation: %w", err)
	}

	e := &domain.Escalation{
		ID:          id.EscalationID(uuid.New()),
		CaseID:      c.ID,
		Level:       level,
		TriggeredAt: now,
		TriggeredBy: domain.TriggeredBySystem,
	}
	if err := d.escalations.Create(ctx, e); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// A concurrent sweep won the create; ours is redundant.
			return false, nil
		}
		return false, fmt.Errorf("create escalation: %w", err)
	}

	d.emitAudit(ctx, audit.EventCaseEscalated, c.ID.String(), map[string]string{
		"escalation_id": e.ID.String(),
		"level":         string(level),
	})
	return true, nil
}

// escalateCase moves the case to ESCALATED as the SYSTEM actor. Cases the
// table does not let SYSTEM move (already escalated, resolved) and cases a
// human transitioned mid-sweep are silently left alone.
func (d *Detector) escalateCase(ctx context.Context, c *domain.Case) error {
	if c.Status == domain.StatusEscalated {
		return nil
	}
	if !d.workflow.Table().Allows(c.Status, domain.RoleSystem, domain.StatusEscalated) {
		return nil
	}
	_, err := d.workflow.Transition(ctx, domain.SystemActor(), c.ID, domain.StatusEscalated, "sla threshold exceeded")
	if err != nil {
		switch workflow.ReasonOf(err) {
		case workflow.ReasonInvalidTransition, workflow.ReasonConflict:
			// Lost a race against a human transition; next sweep re-evaluates.
			return nil
		}
		return fmt.Errorf("escalate case: %w", err)
	}
	return nil
}

// ResolveEscalation closes an open escalation on behalf of a supervisory
// actor. The case itself is moved out of ESCALATED separately through the
// workflow engine.
func (d *Detector) ResolveEscalation(ctx context.Context, actor *domain.Actor, escalationID id.EscalationID) (*domain.Escalation, error) {
	e, err := d.escalations.FindByID(ctx, escalationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "escalation not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load escalation")
	}

	c, err := d.workflow.Store().FindByID(ctx, e.CaseID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load escalated case")
	}
	decision, err := d.evaluator.Evaluate(actor, access.ActionEscalationResolve, access.Resource{
		OwningUnitID: c.OwningUnitID,
		RegionID:     c.RegionID,
	})
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, dErrors.New(dErrors.CodeForbidden, "access denied: "+string(decision.Reason))
	}

	if err := e.CanResolve(); err != nil {
		return nil, err
	}
	e.ApplyResolution(requestcontext.Now(ctx))
	if err := d.escalations.Update(ctx, e); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve escalation")
	}

	d.emitAudit(ctx, audit.EventEscalationResolved, e.CaseID.String(), map[string]string{
		"escalation_id": e.ID.String(),
		"actor_id":      actor.ID.String(),
	})
	return e, nil
}

// EscalationHistory lists all escalations raised for a case.
func (d *Detector) EscalationHistory(ctx context.Context, actor *domain.Actor, caseID id.CaseID) ([]domain.Escalation, error) {
	if _, err := d.workflow.GetCase(ctx, actor, caseID); err != nil {
		return nil, err
	}
	return d.escalations.ListByCase(ctx, caseID)
}

func (d *Detector) emitAudit(ctx context.Context, action audit.AuditEvent, resourceID string, metadata map[string]string) {
	if d.publisher == nil {
		return
	}
	resourceType := "case"
	if resourceID == "" {
		resourceType = "sweep"
		resourceID = "sla"
	}
	event := audit.Event{
		Timestamp:    requestcontext.Now(ctx),
		ActorID:      domain.TriggeredBySystem,
		ActorRole:    domain.RoleSystem.String(),
		Action:       string(action),
		ResourceType: resourceType,
		ResourceID:   resourceID,
		RequestID:    requestcontext.RequestID(ctx),
		Metadata:     metadata,
	}
	if err := d.publisher.Emit(ctx, event); err != nil {
		d.logger.WarnContext(ctx, "audit emit failed", "action", string(action), "error", err)
	}
}
