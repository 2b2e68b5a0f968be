// Package access decides whether an actor may perform an action on a
// resource. Evaluation is side-effect free and independent of the workflow
// engine so plain reads, approval-chain checks, and region-scoped listings
// use the same path as transitions.
package access

import (
	"sync/atomic"

	"caseflow/internal/domain"
	dErrors "caseflow/pkg/domain-errors"
)

// Action names an operation subject to permission checks.
type Action string

const (
	ActionCaseRead          Action = "case.read"
	ActionCaseList          Action = "case.list"
	ActionCaseCreate        Action = "case.create"
	ActionCaseTransition    Action = "case.transition"
	ActionCaseReassign      Action = "case.reassign"
	ActionEscalationResolve Action = "escalation.resolve"
	ActionSweepRun          Action = "sweep.run"
)

var validActions = map[Action]bool{
	ActionCaseRead:          true,
	ActionCaseList:          true,
	ActionCaseCreate:        true,
	ActionCaseTransition:    true,
	ActionCaseReassign:      true,
	ActionEscalationResolve: true,
	ActionSweepRun:          true,
}

// ScopeClass declares which ownership dimensions constrain a role. When a
// role is both unit- and region-scoped the checks are AND-ed; the unit check
// runs first so the more specific reason code wins deterministically.
type ScopeClass string

const (
	ScopeGlobal        ScopeClass = "global"
	ScopeUnit          ScopeClass = "unit"
	ScopeRegion        ScopeClass = "region"
	ScopeUnitAndRegion ScopeClass = "unit_and_region"
)

// RolePolicy is the full access configuration for one role. Level orders
// roles for approval chains only; it never implies permission inheritance.
// Each role's action set is explicit.
type RolePolicy struct {
	Level   int
	Scope   ScopeClass
	Actions map[Action]bool
}

// Policy is an immutable snapshot of every role's configuration, loaded once
// at process start. Queries go through the Evaluator only; business logic
// never compares role names inline.
type Policy struct {
	roles map[domain.Role]RolePolicy
}

// NewPolicy validates and freezes a role configuration.
func NewPolicy(roles map[domain.Role]RolePolicy) (*Policy, error) {
	if len(roles) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "policy requires at least one role")
	}
	for role, rp := range roles {
		if !role.IsValid() {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "policy references unknown role %q", role)
		}
		for action := range rp.Actions {
			if !validActions[action] {
				return nil, dErrors.Newf(dErrors.CodeInvalidInput, "role %s references unknown action %q", role, action)
			}
		}
	}
	return &Policy{roles: roles}, nil
}

// Role returns the configuration for a role.
func (p *Policy) Role(role domain.Role) (RolePolicy, bool) {
	rp, ok := p.roles[role]
	return rp, ok
}

// DefaultPolicy is the shipped role configuration.
//
// ADMIN and COMPLIANCE are the two global roles; SYSTEM is the scheduler
// identity, also scope-exempt. REGIONAL_MANAGER is region-scoped, UNIT_MANAGER
// unit-scoped, and AGENT is constrained on both dimensions.
func DefaultPolicy() *Policy {
	p, err := NewPolicy(map[domain.Role]RolePolicy{
		domain.RoleAdmin: {
			Level: 100,
			Scope: ScopeGlobal,
			Actions: map[Action]bool{
				ActionCaseRead:          true,
				ActionCaseList:          true,
				ActionCaseCreate:        true,
				ActionCaseTransition:    true,
				ActionCaseReassign:      true,
				ActionEscalationResolve: true,
			},
		},
		domain.RoleCompliance: {
			Level: 90,
			Scope: ScopeGlobal,
			Actions: map[Action]bool{
				ActionCaseRead:       true,
				ActionCaseList:       true,
				ActionCaseTransition: true,
			},
		},
		domain.RoleRegionalManager: {
			Level: 80,
			Scope: ScopeRegion,
			Actions: map[Action]bool{
				ActionCaseRead:          true,
				ActionCaseList:          true,
				ActionCaseTransition:    true,
				ActionCaseReassign:      true,
				ActionEscalationResolve: true,
			},
		},
		domain.RoleUnitManager: {
			Level: 60,
			Scope: ScopeUnit,
			Actions: map[Action]bool{
				ActionCaseRead:          true,
				ActionCaseList:          true,
				ActionCaseCreate:        true,
				ActionCaseTransition:    true,
				ActionCaseReassign:      true,
				ActionEscalationResolve: true,
			},
		},
		domain.RoleAgent: {
			Level: 40,
			Scope: ScopeUnitAndRegion,
			Actions: map[Action]bool{
				ActionCaseRead:       true,
				ActionCaseList:       true,
				ActionCaseTransition: true,
			},
		},
		domain.RoleSystem: {
			Level: 0,
			Scope: ScopeGlobal,
			Actions: map[Action]bool{
				ActionCaseRead:       true,
				ActionCaseList:       true,
				ActionCaseTransition: true,
				ActionSweepRun:       true,
			},
		},
	})
	if err != nil {
		panic(err) // shipped configuration must be valid
	}
	return p
}

// Snapshot holds the active policy behind an atomic pointer so a reload swaps
// the whole configuration at once; readers never observe a partial update.
type Snapshot struct {
	current atomic.Pointer[Policy]
}

// NewSnapshot seeds the holder with an initial policy.
func NewSnapshot(p *Policy) *Snapshot {
	s := &Snapshot{}
	s.current.Store(p)
	return s
}

// Load returns the active policy.
func (s *Snapshot) Load() *Policy {
	return s.current.Load()
}

// Replace swaps in a new policy.
func (s *Snapshot) Replace(p *Policy) {
	s.current.Store(p)
}
