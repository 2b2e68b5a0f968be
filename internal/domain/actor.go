package domain

import (
	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
)

// Role identifies a principal's position in the collection organization.
// Permission content and scoping class are configured per role in the access
// package; the hierarchy level here only answers "does role A outrank role B"
// for approval chains and never implies permission inheritance.
type Role string

const (
	RoleAdmin           Role = "ADMIN"
	RoleCompliance      Role = "COMPLIANCE"
	RoleRegionalManager Role = "REGIONAL_MANAGER"
	RoleUnitManager     Role = "UNIT_MANAGER"
	RoleAgent           Role = "AGENT"
	RoleSystem          Role = "SYSTEM"
)

// validRoles is the single source of truth for the role enumeration.
var validRoles = map[Role]bool{
	RoleAdmin:           true,
	RoleCompliance:      true,
	RoleRegionalManager: true,
	RoleUnitManager:     true,
	RoleAgent:           true,
	RoleSystem:          true,
}

// ParseRole constructs a Role from external input.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role cannot be empty")
	}
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown role")
	}
	return r, nil
}

func (r Role) IsValid() bool {
	return validRoles[r]
}

func (r Role) String() string {
	return string(r)
}

// Actor is an authenticated principal attempting an action. It is immutable
// for the duration of one operation.
//
// Invariants:
//   - Role is one of the fixed enumeration
//   - UnitID is nil for actors without a home unit (global roles, SYSTEM)
//   - RegionIDs nil means no region restriction applies
type Actor struct {
	ID        id.ActorID    `json:"id"`
	Role      Role          `json:"role"`
	UnitID    *id.UnitID    `json:"unit_id,omitempty"`
	RegionIDs []id.RegionID `json:"region_ids,omitempty"`
}

// HasRegion reports whether the actor's region set contains r. A nil set
// means global reach.
func (a *Actor) HasRegion(r id.RegionID) bool {
	if a.RegionIDs == nil {
		return true
	}
	for _, rr := range a.RegionIDs {
		if rr == r {
			return true
		}
	}
	return false
}

// SystemActor returns the designated scheduler identity. It is exempt from
// unit/region scoping but still bound by the transition table.
func SystemActor() *Actor {
	return &Actor{Role: RoleSystem}
}
