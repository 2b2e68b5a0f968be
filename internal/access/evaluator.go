package access

import (
	"caseflow/internal/domain"
	id "caseflow/pkg/domain"
	dErrors "caseflow/pkg/domain-errors"
)

// Reason is the stable machine-readable code attached to every denial so the
// UI can render the correct message without parsing free text.
type Reason string

const (
	ReasonOutOfUnit          Reason = "OUT_OF_UNIT"
	ReasonOutOfRegion        Reason = "OUT_OF_REGION"
	ReasonActionNotPermitted Reason = "ACTION_NOT_PERMITTED"
	ReasonUnknownRole        Reason = "UNKNOWN_ROLE"
)

// Decision is the outcome of one evaluation. A legitimate denial is not an
// error; Evaluate fails only on malformed input.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason,omitempty"`
}

func allow() Decision {
	return Decision{Allowed: true}
}

func deny(reason Reason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Resource carries the ownership dimensions the scoping checks compare
// against. Handlers build one from a Case; listings build one per row.
type Resource struct {
	OwningUnitID id.UnitID
	RegionID     id.RegionID
}

// Evaluator answers permission questions against the active policy snapshot.
type Evaluator struct {
	policy *Snapshot
}

// NewEvaluator builds an evaluator over a policy snapshot.
func NewEvaluator(policy *Snapshot) *Evaluator {
	return &Evaluator{policy: policy}
}

// Evaluate decides whether actor may perform action on the resource.
//
// Order of checks: role known, action permitted for role, then unit before
// region so an actor failing both scopes reports OUT_OF_UNIT. Global roles
// skip scoping entirely.
func (e *Evaluator) Evaluate(actor *domain.Actor, action Action, res Resource) (Decision, error) {
	if actor == nil {
		return Decision{}, dErrors.New(dErrors.CodeInvalidInput, "actor is required")
	}
	if !validActions[action] {
		return Decision{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown action %q", action)
	}

	rp, ok := e.policy.Load().Role(actor.Role)
	if !ok {
		return deny(ReasonUnknownRole), nil
	}
	if !rp.Actions[action] {
		return deny(ReasonActionNotPermitted), nil
	}

	switch rp.Scope {
	case ScopeGlobal:
		return allow(), nil
	case ScopeUnit:
		return e.checkUnit(actor, res), nil
	case ScopeRegion:
		return e.checkRegion(actor, res), nil
	case ScopeUnitAndRegion:
		if d := e.checkUnit(actor, res); !d.Allowed {
			return d, nil
		}
		return e.checkRegion(actor, res), nil
	default:
		return Decision{}, dErrors.Newf(dErrors.CodeInternal, "role %s has unknown scope class %q", actor.Role, rp.Scope)
	}
}

func (e *Evaluator) checkUnit(actor *domain.Actor, res Resource) Decision {
	if actor.UnitID == nil || *actor.UnitID != res.OwningUnitID {
		return deny(ReasonOutOfUnit)
	}
	return allow()
}

func (e *Evaluator) checkRegion(actor *domain.Actor, res Resource) Decision {
	if !actor.HasRegion(res.RegionID) {
		return deny(ReasonOutOfRegion)
	}
	return allow()
}

// Outranks reports whether role a sits strictly above role b in the
// hierarchy. Used for delegation and approval chains (e.g. who may approve an
// account-deletion request from whom); it says nothing about permissions.
func (e *Evaluator) Outranks(a, b domain.Role) (bool, error) {
	policy := e.policy.Load()
	ra, ok := policy.Role(a)
	if !ok {
		return false, dErrors.Newf(dErrors.CodeInvalidInput, "unknown role %q", a)
	}
	rb, ok := policy.Role(b)
	if !ok {
		return false, dErrors.Newf(dErrors.CodeInvalidInput, "unknown role %q", b)
	}
	return ra.Level > rb.Level, nil
}

// IsGlobal reports whether the role bypasses unit/region scoping.
func (e *Evaluator) IsGlobal(role domain.Role) bool {
	rp, ok := e.policy.Load().Role(role)
	return ok && rp.Scope == ScopeGlobal
}
