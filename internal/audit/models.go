package audit

import "time"

// EventCategory classifies audit events by their primary purpose. This
// enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// Collection case lifecycles are subject to audit for years.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring:
	// access denials, scope violations, rejected system calls.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine events useful for debugging and
	// operational visibility; these can be sampled.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category     EventCategory
	Timestamp    time.Time
	ActorID      string
	ActorRole    string
	Action       string
	ResourceType string
	ResourceID   string
	Reason       string
	RequestID    string
	Metadata     map[string]string
}

// AuditEvent names every action the engine records.
type AuditEvent string

const (
	EventCaseCreated        AuditEvent = "case_created"
	EventCaseTransitioned   AuditEvent = "case_transitioned"
	EventTransitionDenied   AuditEvent = "transition_denied"
	EventTransitionConflict AuditEvent = "transition_conflict"
	EventCaseEscalated      AuditEvent = "case_escalated"
	EventEscalationBumped   AuditEvent = "escalation_bumped"
	EventEscalationResolved AuditEvent = "escalation_resolved"
	EventSweepCompleted     AuditEvent = "sweep_completed"
	EventSweepRejected      AuditEvent = "sweep_rejected"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventCaseCreated:        CategoryCompliance,
	EventCaseTransitioned:   CategoryCompliance,
	EventCaseEscalated:      CategoryCompliance,
	EventEscalationBumped:   CategoryCompliance,
	EventEscalationResolved: CategoryCompliance,

	EventTransitionDenied: CategorySecurity,
	EventSweepRejected:    CategorySecurity,

	EventTransitionConflict: CategoryOperations,
	EventSweepCompleted:     CategoryOperations,
}

// Category returns the event's routing category, defaulting to operations
// for unmapped actions.
func (e AuditEvent) Category() EventCategory {
	if c, ok := eventCategories[e]; ok {
		return c
	}
	return CategoryOperations
}
