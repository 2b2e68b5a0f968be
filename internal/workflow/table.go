// Package workflow validates and executes case status transitions. The legal
// moves live in a role-indexed table rather than code branches so tests can
// enumerate the full table and assert nothing was omitted by accident.
package workflow

import (
	"caseflow/internal/domain"
	dErrors "caseflow/pkg/domain-errors"
)

// Table maps (current status, actor role) to the set of legal target
// statuses. The same current state permits different next states depending on
// who is asking: an agent can move work forward or request escalation, while
// a supervisory role can write a case off directly. Pairs absent from the
// table have an empty legal set.
type Table struct {
	rules map[domain.CaseStatus]map[domain.Role][]domain.CaseStatus
}

// NewTable validates and freezes a rule set: terminal states must have no
// outbound rules, targets must be valid statuses, and self-transitions are
// rejected at load time because no-ops are never legal.
func NewTable(rules map[domain.CaseStatus]map[domain.Role][]domain.CaseStatus) (*Table, error) {
	for from, byRole := range rules {
		if !from.IsValid() {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "transition table references unknown status %q", from)
		}
		if from.IsTerminal() {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "terminal status %s cannot have outbound transitions", from)
		}
		for role, targets := range byRole {
			if !role.IsValid() {
				return nil, dErrors.Newf(dErrors.CodeInvalidInput, "transition table references unknown role %q", role)
			}
			for _, to := range targets {
				if !to.IsValid() {
					return nil, dErrors.Newf(dErrors.CodeInvalidInput, "transition table references unknown target %q", to)
				}
				if to == from {
					return nil, dErrors.Newf(dErrors.CodeInvalidInput, "self-transition %s -> %s is not allowed", from, to)
				}
			}
		}
	}
	return &Table{rules: rules}, nil
}

// Targets returns the legal target set for a (status, role) pair. Terminal
// statuses and unlisted pairs yield an empty set.
func (t *Table) Targets(from domain.CaseStatus, role domain.Role) []domain.CaseStatus {
	byRole, ok := t.rules[from]
	if !ok {
		return nil
	}
	targets := byRole[role]
	out := make([]domain.CaseStatus, len(targets))
	copy(out, targets)
	return out
}

// Allows reports whether the table permits from -> to for the role.
func (t *Table) Allows(from domain.CaseStatus, role domain.Role, to domain.CaseStatus) bool {
	for _, target := range t.rules[from][role] {
		if target == to {
			return true
		}
	}
	return false
}

// Statuses returns every status with at least one outbound rule. Used by
// table-completeness tests.
func (t *Table) Statuses() []domain.CaseStatus {
	out := make([]domain.CaseStatus, 0, len(t.rules))
	for from := range t.rules {
		out = append(out, from)
	}
	return out
}

// DefaultTable is the shipped transition rule set.
func DefaultTable() *Table {
	t, err := NewTable(map[domain.CaseStatus]map[domain.Role][]domain.CaseStatus{
		domain.StatusPendingAllocation: {
			domain.RoleAdmin:           {domain.StatusAssigned, domain.StatusWrittenOff, domain.StatusClosed},
			domain.RoleRegionalManager: {domain.StatusAssigned},
			domain.RoleUnitManager:     {domain.StatusAssigned},
			domain.RoleSystem:          {domain.StatusEscalated},
		},
		domain.StatusAssigned: {
			domain.RoleAdmin:           {domain.StatusInProgress, domain.StatusEscalated, domain.StatusPendingAllocation, domain.StatusWrittenOff, domain.StatusClosed},
			domain.RoleRegionalManager: {domain.StatusInProgress, domain.StatusEscalated, domain.StatusPendingAllocation, domain.StatusWrittenOff},
			domain.RoleUnitManager:     {domain.StatusInProgress, domain.StatusEscalated, domain.StatusPendingAllocation, domain.StatusWrittenOff},
			domain.RoleAgent:           {domain.StatusInProgress, domain.StatusEscalated},
			domain.RoleSystem:          {domain.StatusEscalated},
		},
		domain.StatusInProgress: {
			domain.RoleAdmin:           {domain.StatusResolved, domain.StatusEscalated, domain.StatusAssigned, domain.StatusWrittenOff, domain.StatusClosed},
			domain.RoleRegionalManager: {domain.StatusResolved, domain.StatusEscalated, domain.StatusAssigned, domain.StatusWrittenOff},
			domain.RoleUnitManager:     {domain.StatusResolved, domain.StatusEscalated, domain.StatusAssigned, domain.StatusWrittenOff},
			domain.RoleAgent:           {domain.StatusResolved, domain.StatusEscalated},
			domain.RoleSystem:          {domain.StatusEscalated},
		},
		domain.StatusEscalated: {
			domain.RoleAdmin:           {domain.StatusInProgress, domain.StatusResolved, domain.StatusWrittenOff, domain.StatusClosed},
			domain.RoleCompliance:      {domain.StatusClosed},
			domain.RoleRegionalManager: {domain.StatusInProgress, domain.StatusResolved, domain.StatusWrittenOff},
			domain.RoleUnitManager:     {domain.StatusInProgress, domain.StatusResolved, domain.StatusWrittenOff},
		},
		domain.StatusResolved: {
			domain.RoleAdmin:           {domain.StatusFullRecovery, domain.StatusClosed, domain.StatusInProgress},
			domain.RoleCompliance:      {domain.StatusClosed},
			domain.RoleRegionalManager: {domain.StatusFullRecovery, domain.StatusClosed, domain.StatusInProgress},
			domain.RoleUnitManager:     {domain.StatusFullRecovery, domain.StatusClosed, domain.StatusInProgress},
		},
	})
	if err != nil {
		panic(err) // shipped table must be valid
	}
	return t
}
