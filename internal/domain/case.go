package domain

import (
	"time"

	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
)

// CaseStatus enumerates the lifecycle states of a collection case.
type CaseStatus string

const (
	StatusPendingAllocation CaseStatus = "PENDING_ALLOCATION"
	StatusAssigned          CaseStatus = "ASSIGNED"
	StatusInProgress        CaseStatus = "IN_PROGRESS"
	StatusEscalated         CaseStatus = "ESCALATED"
	StatusResolved          CaseStatus = "RESOLVED"
	StatusFullRecovery      CaseStatus = "FULL_RECOVERY"
	StatusWrittenOff        CaseStatus = "WRITTEN_OFF"
	StatusClosed            CaseStatus = "CLOSED"
)

var validStatuses = map[CaseStatus]bool{
	StatusPendingAllocation: true,
	StatusAssigned:          true,
	StatusInProgress:        true,
	StatusEscalated:         true,
	StatusResolved:          true,
	StatusFullRecovery:      true,
	StatusWrittenOff:        true,
	StatusClosed:            true,
}

// terminalStatuses have no outbound transitions. Cases are never deleted;
// terminal cases are retained for audit and reporting.
var terminalStatuses = map[CaseStatus]bool{
	StatusFullRecovery: true,
	StatusWrittenOff:   true,
	StatusClosed:       true,
}

// ParseCaseStatus constructs a CaseStatus from external input.
func ParseCaseStatus(s string) (CaseStatus, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "status cannot be empty")
	}
	st := CaseStatus(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown case status")
	}
	return st, nil
}

func (s CaseStatus) IsValid() bool {
	return validStatuses[s]
}

// IsTerminal reports whether the status permits no outbound transitions.
func (s CaseStatus) IsTerminal() bool {
	return terminalStatuses[s]
}

// IsWorkable reports whether the case belongs to the open partition swept by
// the breach detector.
func (s CaseStatus) IsWorkable() bool {
	return !s.IsTerminal()
}

func (s CaseStatus) String() string {
	return string(s)
}

// Priority buckets cases for SLA template selection.
type Priority string

const (
	PriorityCritical Priority = "CRITICAL"
	PriorityHigh     Priority = "HIGH"
	PriorityMedium   Priority = "MEDIUM"
	PriorityLow      Priority = "LOW"
)

var validPriorities = map[Priority]bool{
	PriorityCritical: true,
	PriorityHigh:     true,
	PriorityMedium:   true,
	PriorityLow:      true,
}

// ParsePriority constructs a Priority from external input.
func ParsePriority(s string) (Priority, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "priority cannot be empty")
	}
	p := Priority(s)
	if !validPriorities[p] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown priority")
	}
	return p, nil
}

func (p Priority) String() string {
	return string(p)
}

// Case is the aggregate root for a collection case.
//
// Invariants:
//   - Status is always one of the fixed lifecycle states
//   - StatusEnteredAt is updated on every transition and anchors all timer
//     computation
//   - OwningUnitID is set once at allocation and changes only through an
//     explicit reassignment transition, never implicitly
//   - SLA is snapshotted from the template at assignment time so later
//     template edits never shift thresholds retroactively
//   - Version increments on every mutation; writers that lose a concurrent
//     race observe a version mismatch and must re-read
type Case struct {
	ID              id.CaseID   `json:"id"`
	CaseNumber      string      `json:"case_number"`
	Status          CaseStatus  `json:"status"`
	OwningUnitID    id.UnitID   `json:"owning_unit_id"`
	RegionID        id.RegionID `json:"region_id"`
	Priority        Priority    `json:"priority"`
	SLA             SLATemplate `json:"sla"`
	AssignedActorID *id.ActorID `json:"assigned_actor_id,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	StatusEnteredAt time.Time   `json:"status_entered_at"`
	Version         int64       `json:"version"`
}

// NewCase constructs a case in the initial unassigned state with the SLA
// template snapshotted at bind time.
func NewCase(caseID id.CaseID, caseNumber string, unitID id.UnitID, regionID id.RegionID, priority Priority, sla SLATemplate, now time.Time) (*Case, error) {
	if caseNumber == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "case number cannot be empty")
	}
	if !validPriorities[priority] {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown priority")
	}
	if err := sla.Validate(); err != nil {
		return nil, err
	}
	return &Case{
		ID:              caseID,
		CaseNumber:      caseNumber,
		Status:          StatusPendingAllocation,
		OwningUnitID:    unitID,
		RegionID:        regionID,
		Priority:        priority,
		SLA:             sla,
		CreatedAt:       now,
		StatusEnteredAt: now,
		Version:         1,
	}, nil
}

// ApplyTransition moves the case to the target status and re-anchors the
// status timer. Legality is decided by the workflow transition table before
// this is called.
func (c *Case) ApplyTransition(to CaseStatus, now time.Time) {
	c.Status = to
	c.StatusEnteredAt = now
	c.Version++
}

// Clone returns a deep copy so store callers can never mutate shared state.
func (c *Case) Clone() *Case {
	cp := *c
	if c.AssignedActorID != nil {
		v := *c.AssignedActorID
		cp.AssignedActorID = &v
	}
	return &cp
}

// TimeInStatus returns elapsed time since the case entered its current
// status, the quantity the breach detector compares against thresholds.
func (c *Case) TimeInStatus(now time.Time) time.Duration {
	return now.Sub(c.StatusEnteredAt)
}
