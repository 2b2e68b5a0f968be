// Package domain holds shared domain primitives: typed identifiers and the
// enumerations used across the engine. Typed IDs prevent cross-entity
// assignment at compile time; construct them via the Parse helpers at trust
// boundaries so validity is enforced once.
package domain

import (
	"github.com/google/uuid"

	dErrors "caseflow/pkg/domain-errors"
)

// Typed identifiers for the entities the engine governs.
type (
	CaseID       uuid.UUID
	ActorID      uuid.UUID
	UnitID       uuid.UUID
	RegionID     uuid.UUID
	TemplateID   uuid.UUID
	EscalationID uuid.UUID
)

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return u, nil
}

// ParseCaseID constructs a CaseID from external input.
func ParseCaseID(s string) (CaseID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return CaseID{}, err
	}
	return CaseID(u), nil
}

// ParseActorID constructs an ActorID from external input.
func ParseActorID(s string) (ActorID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return ActorID{}, err
	}
	return ActorID(u), nil
}

// ParseUnitID constructs a UnitID from external input.
func ParseUnitID(s string) (UnitID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return UnitID{}, err
	}
	return UnitID(u), nil
}

// ParseRegionID constructs a RegionID from external input.
func ParseRegionID(s string) (RegionID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return RegionID{}, err
	}
	return RegionID(u), nil
}

// ParseEscalationID constructs an EscalationID from external input.
func ParseEscalationID(s string) (EscalationID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return EscalationID{}, err
	}
	return EscalationID(u), nil
}

// ParseTemplateID constructs a TemplateID from external input.
func ParseTemplateID(s string) (TemplateID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return TemplateID{}, err
	}
	return TemplateID(u), nil
}

func (id CaseID) String() string       { return uuid.UUID(id).String() }
func (id ActorID) String() string      { return uuid.UUID(id).String() }
func (id UnitID) String() string       { return uuid.UUID(id).String() }
func (id RegionID) String() string     { return uuid.UUID(id).String() }
func (id TemplateID) String() string   { return uuid.UUID(id).String() }
func (id EscalationID) String() string { return uuid.UUID(id).String() }

func (id CaseID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id ActorID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id UnitID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id RegionID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id TemplateID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id EscalationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// Defined types do not inherit uuid.UUID's marshaling, so each ID implements
// encoding.TextMarshaler/TextUnmarshaler to keep the canonical string form on
// the wire.

func (id CaseID) MarshalText() ([]byte, error)       { return []byte(id.String()), nil }
func (id ActorID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }
func (id UnitID) MarshalText() ([]byte, error)       { return []byte(id.String()), nil }
func (id RegionID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }
func (id TemplateID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id EscalationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *CaseID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = CaseID(u)
	return nil
}

func (id *ActorID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = ActorID(u)
	return nil
}

func (id *UnitID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = UnitID(u)
	return nil
}

func (id *RegionID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = RegionID(u)
	return nil
}

func (id *TemplateID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = TemplateID(u)
	return nil
}

func (id *EscalationID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = EscalationID(u)
	return nil
}
