// Package casestore provides the case persistence backends. Both backends
// honor the same contract: ExecuteTransition holds a per-case guard across
// validate and apply, and the case update and its transition record land
// together or not at all.
package casestore

import (
	"context"
	"sort"
	"sync"

	"caseflow/internal/domain"
	id "caseflow/pkg/domain"
	"caseflow/pkg/platform/sentinel"
)

type memoryEntry struct {
	mu      sync.Mutex
	current *domain.Case
	records []domain.TransitionRecord
}

// Memory is the in-memory backend used by tests and single-node deployments.
// Each case carries its own lock so transitions on distinct cases never
// serialize against each other.
type Memory struct {
	mu      sync.RWMutex
	entries map[id.CaseID]*memoryEntry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[id.CaseID]*memoryEntry)}
}

func (m *Memory) Create(_ context.Context, c *domain.Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[c.ID]; ok {
		return sentinel.ErrConflict
	}
	m.entries[c.ID] = &memoryEntry{current: c.Clone()}
	return nil
}

func (m *Memory) FindByID(_ context.Context, caseID id.CaseID) (*domain.Case, error) {
	entry, err := m.entry(caseID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.current.Clone(), nil
}

func (m *Memory) ListWorkable(_ context.Context) ([]*domain.Case, error) {
	m.mu.RLock()
	entries := make([]*memoryEntry, 0, len(m.entries))
	for _, entry := range m.entries {
		entries = append(entries, entry)
	}
	m.mu.RUnlock()

	var cases []*domain.Case
	for _, entry := range entries {
		entry.mu.Lock()
		if entry.current.Status.IsWorkable() {
			cases = append(cases, entry.current.Clone())
		}
		entry.mu.Unlock()
	}
	sort.Slice(cases, func(i, j int) bool {
		return cases[i].CreatedAt.Before(cases[j].CreatedAt)
	})
	return cases, nil
}

// ExecuteTransition runs validate and apply under the case's lock. The first
// writer to take the lock wins; a second writer validates against the already
// mutated state and is rejected by the engine's no-longer-legal check rather
// than silently overwriting.
func (m *Memory) ExecuteTransition(ctx context.Context, caseID id.CaseID,
	validate func(c *domain.Case) error,
	apply func(c *domain.Case) *domain.TransitionRecord,
) (*domain.Case, *domain.TransitionRecord, error) {
	entry, err := m.entry(caseID)
	if err != nil {
		return nil, nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	working := entry.current.Clone()
	if err := validate(working); err != nil {
		return nil, nil, err
	}
	record := apply(working)

	entry.current = working
	entry.records = append(entry.records, *record)
	return working.Clone(), record, nil
}

func (m *Memory) ListTransitions(_ context.Context, caseID id.CaseID) ([]domain.TransitionRecord, error) {
	entry, err := m.entry(caseID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	records := make([]domain.TransitionRecord, len(entry.records))
	copy(records, entry.records)
	return records, nil
}

func (m *Memory) entry(caseID id.CaseID) (*memoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[caseID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return entry, nil
}
