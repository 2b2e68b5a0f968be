package domain

import (
	"time"

	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
)

// SLATemplate bundles the timer thresholds bound to a case. Cases snapshot
// the template at assignment time; the catalog copy may change afterwards
// without affecting already-bound cases.
type SLATemplate struct {
	ID                  id.TemplateID `json:"id"`
	Name                string        `json:"name"`
	ResponseThreshold   time.Duration `json:"response_threshold"`
	ResolutionThreshold time.Duration `json:"resolution_threshold"`
	EscalationThreshold time.Duration `json:"escalation_threshold"`
}

// Validate checks threshold ordering: escalation must fire before the
// resolution deadline or AT_RISK classification could never occur.
func (t SLATemplate) Validate() error {
	if t.ResolutionThreshold <= 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "resolution threshold must be positive")
	}
	if t.EscalationThreshold <= 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "escalation threshold must be positive")
	}
	if t.EscalationThreshold >= t.ResolutionThreshold {
		return dErrors.New(dErrors.CodeInvariantViolation, "escalation threshold must precede resolution threshold")
	}
	return nil
}

// SLAState classifies a case's timer position for one sweep.
type SLAState string

const (
	SLAOnTrack  SLAState = "ON_TRACK"
	SLAAtRisk   SLAState = "AT_RISK"
	SLABreached SLAState = "BREACHED"
)

// Classify places elapsed time within the template's thresholds.
func (t SLATemplate) Classify(elapsed time.Duration) SLAState {
	switch {
	case elapsed >= t.ResolutionThreshold:
		return SLABreached
	case elapsed >= t.EscalationThreshold:
		return SLAAtRisk
	default:
		return SLAOnTrack
	}
}

// defaultTemplates is the shipped catalog, keyed by priority. Template IDs
// are fixed so snapshots remain traceable to their catalog origin.
var defaultTemplates = map[Priority]SLATemplate{
	PriorityCritical: {
		Name:                "critical-default",
		ResponseThreshold:   1 * time.Hour,
		ResolutionThreshold: 24 * time.Hour,
		EscalationThreshold: 4 * time.Hour,
	},
	PriorityHigh: {
		Name:                "high-default",
		ResponseThreshold:   2 * time.Hour,
		ResolutionThreshold: 48 * time.Hour,
		EscalationThreshold: 8 * time.Hour,
	},
	PriorityMedium: {
		Name:                "medium-default",
		ResponseThreshold:   8 * time.Hour,
		ResolutionThreshold: 96 * time.Hour,
		EscalationThreshold: 24 * time.Hour,
	},
	PriorityLow: {
		Name:                "low-default",
		ResponseThreshold:   24 * time.Hour,
		ResolutionThreshold: 7 * 24 * time.Hour,
		EscalationThreshold: 48 * time.Hour,
	},
}

// TemplateForPriority returns the catalog template bound to new cases that
// do not name an explicit template.
func TemplateForPriority(p Priority) (SLATemplate, error) {
	t, ok := defaultTemplates[p]
	if !ok {
		return SLATemplate{}, dErrors.Newf(dErrors.CodeInvalidInput, "no SLA template for priority %q", p)
	}
	return t, nil
}
