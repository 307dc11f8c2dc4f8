package identity

import (
	"context"
	"sort"
	"sync"
)

// Memory is a mutex-guarded in-memory store for dev mode and tests.
type Memory struct {
	mu       sync.RWMutex
	students map[string]Identity
	staff    map[string]Identity
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		students: make(map[string]Identity),
		staff:    make(map[string]Identity),
	}
}

func (m *Memory) tableFor(variant Variant) map[string]Identity {
	if variant == Staff {
		return m.staff
	}
	return m.students
}

// Lookup searches students first, then staff.
func (m *Memory) Lookup(ctx context.Context, regNo string) (Identity, Variant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.students[regNo]; ok {
		return id, Student, nil
	}
	if id, ok := m.staff[regNo]; ok {
		return id, Staff, nil
	}
	return Identity{}, "", ErrNotFound
}

// Upsert inserts or overwrites in the given variant's table.
func (m *Memory) Upsert(ctx context.Context, id Identity, variant Variant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tableFor(variant)[id.RegNo] = id
	return nil
}

// DeleteMany removes each regNo from both tables.
func (m *Memory) DeleteMany(ctx context.Context, regNos []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, regNo := range regNos {
		delete(m.students, regNo)
		delete(m.staff, regNo)
	}
	return len(regNos), nil
}

// List returns all records of one variant ordered by regNo.
func (m *Memory) List(ctx context.Context, variant Variant) ([]Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	table := m.tableFor(variant)
	res := make([]Identity, 0, len(table))
	for _, id := range table {
		res = append(res, id)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].RegNo < res[j].RegNo })
	return res, nil
}
