package domain

import (
	"time"

	id "caseflow/pkg/domain"
)

// TransitionRecord is the append-only audit trail of status changes. Records
// are never mutated or deleted; the latest record for a case is the source of
// truth for "time in current status".
type TransitionRecord struct {
	CaseID     id.CaseID  `json:"case_id"`
	FromStatus CaseStatus `json:"from_status"`
	ToStatus   CaseStatus `json:"to_status"`
	ActorID    id.ActorID `json:"actor_id"`
	ActorRole  Role       `json:"actor_role"`
	Reason     string     `json:"reason,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}
