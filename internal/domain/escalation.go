package domain

import (
	"time"

	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
)

// EscalationLevel orders escalation severity.
type EscalationLevel string

const (
	EscalationL1 EscalationLevel = "L1"
	EscalationL2 EscalationLevel = "L2"
	EscalationL3 EscalationLevel = "L3"
)

var escalationOrder = map[EscalationLevel]int{
	EscalationL1: 1,
	EscalationL2: 2,
	EscalationL3: 3,
}

// AtLeast reports whether l is at or above other.
func (l EscalationLevel) AtLeast(other EscalationLevel) bool {
	return escalationOrder[l] >= escalationOrder[other]
}

// Next returns the level one step up, capped at L3.
func (l EscalationLevel) Next() EscalationLevel {
	switch l {
	case EscalationL1:
		return EscalationL2
	case EscalationL2:
		return EscalationL3
	default:
		return EscalationL3
	}
}

// TriggeredBySystem marks escalations raised by the breach detector rather
// than a human actor.
const TriggeredBySystem = "SYSTEM"

// Escalation records a raised breach condition for a case.
//
// Invariant: at most one unresolved escalation exists per case at a time.
// The breach detector enforces this with a durable existence check before
// creating a new record.
type Escalation struct {
	ID          id.EscalationID `json:"id"`
	CaseID      id.CaseID       `json:"case_id"`
	Level       EscalationLevel `json:"level"`
	TriggeredAt time.Time       `json:"triggered_at"`
	TriggeredBy string          `json:"triggered_by"`
	ResolvedAt  *time.Time      `json:"resolved_at,omitempty"`
}

func (e *Escalation) IsResolved() bool {
	return e.ResolvedAt != nil
}

// CanResolve checks the escalation is still open.
func (e *Escalation) CanResolve() error {
	if e.IsResolved() {
		return dErrors.New(dErrors.CodeInvariantViolation, "escalation is already resolved")
	}
	return nil
}

// ApplyResolution closes the escalation. Call CanResolve first.
func (e *Escalation) ApplyResolution(now time.Time) {
	e.ResolvedAt = &now
}
