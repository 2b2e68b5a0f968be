// Package escalation persists escalation records. Both backends enforce the
// single-open-escalation rule durably: creating a second unresolved
// escalation for a case fails with sentinel.ErrConflict.
package escalation

import (
	"context"
	"sort"
	"sync"

	"caseflow/internal/domain"
	id "caseflow/pkg/domain"
	"caseflow/pkg/platform/sentinel"
)

// Memory is the in-memory backend used by tests and single-node deployments.
type Memory struct {
	mu          sync.Mutex
	escalations map[id.EscalationID]*domain.Escalation
	openByCase  map[id.CaseID]id.EscalationID
}

func NewMemory() *Memory {
	return &Memory{
		escalations: make(map[id.EscalationID]*domain.Escalation),
		openByCase:  make(map[id.CaseID]id.EscalationID),
	}
}

func (m *Memory) Create(_ context.Context, e *domain.Escalation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.escalations[e.ID]; ok {
		return sentinel.ErrConflict
	}
	if !e.IsResolved() {
		if _, open := m.openByCase[e.CaseID]; open {
			return sentinel.ErrConflict
		}
		m.openByCase[e.CaseID] = e.ID
	}
	m.escalations[e.ID] = clone(e)
	return nil
}

func (m *Memory) FindByID(_ context.Context, escalationID id.EscalationID) (*domain.Escalation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.escalations[escalationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(e), nil
}

// FindOpenByCase returns the unresolved escalation for a case, if any. This
// is the detector's idempotence check.
func (m *Memory) FindOpenByCase(_ context.Context, caseID id.CaseID) (*domain.Escalation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	escalationID, ok := m.openByCase[caseID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(m.escalations[escalationID]), nil
}

// Update persists level changes and resolution. Resolving releases the
// case's open slot.
func (m *Memory) Update(_ context.Context, e *domain.Escalation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.escalations[e.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !stored.IsResolved() && e.IsResolved() {
		delete(m.openByCase, e.CaseID)
	}
	m.escalations[e.ID] = clone(e)
	return nil
}

// ListByCase returns all escalations for a case, oldest first.
func (m *Memory) ListByCase(_ context.Context, caseID id.CaseID) ([]domain.Escalation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Escalation
	for _, e := range m.escalations {
		if e.CaseID == caseID {
			out = append(out, *clone(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TriggeredAt.Before(out[j].TriggeredAt)
	})
	return out, nil
}

func clone(e *domain.Escalation) *domain.Escalation {
	cp := *e
	if e.ResolvedAt != nil {
		t := *e.ResolvedAt
		cp.ResolvedAt = &t
	}
	return &cp
}
