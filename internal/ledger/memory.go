package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is a mutex-guarded in-memory ledger for dev mode and tests. An
// open-entry index by regNo keeps FindOpen O(1), mirroring the partial
// index the Postgres schema uses.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	open    map[string]string // regNo -> open entry id
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]*Entry),
		open:    make(map[string]string),
	}
}

// FindOpen returns a copy of the open entry for regNo, or nil.
func (m *Memory) FindOpen(ctx context.Context, regNo string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.open[regNo]
	if !ok {
		return nil, nil
	}
	e := *m.entries[id]
	return &e, nil
}

// Create stores a new open entry.
func (m *Memory) Create(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CheckOutTime = nil
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := e
	m.entries[e.ID] = &stored
	m.open[e.RegNo] = e.ID
	return e, nil
}

// Close sets the check-out time exactly once.
func (m *Memory) Close(ctx context.Context, id string, at time.Time) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	if e.CheckOutTime != nil {
		return Entry{}, ErrAlreadyClosed
	}
	t := at
	e.CheckOutTime = &t
	delete(m.open, e.RegNo)
	return *e, nil
}

// CloseAllOpen stamps every open entry; returns how many were closed.
func (m *Memory) CloseAllOpen(ctx context.Context, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for regNo, id := range m.open {
		t := at
		m.entries[id].CheckOutTime = &t
		delete(m.open, regNo)
		n++
	}
	return n, nil
}

// FindByRegNo returns all entries for a regNo, newest check-in first.
func (m *Memory) FindByRegNo(ctx context.Context, regNo string) ([]Entry, error) {
	return m.collect(func(e *Entry) bool { return e.RegNo == regNo })
}

// FindUnresolved returns every entry still missing identity fields.
func (m *Memory) FindUnresolved(ctx context.Context) ([]Entry, error) {
	return m.collect(func(e *Entry) bool { return e.Name == nil })
}

// ResolveUnknown fills identity fields on the unresolved rows of one regNo.
func (m *Memory) ResolveUnknown(ctx context.Context, regNo, name, department string, userType UserType) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.entries {
		if e.RegNo != regNo || e.Name != nil {
			continue
		}
		nm, dept := name, department
		e.Name = &nm
		e.Department = &dept
		e.UserType = userType
		n++
	}
	return n, nil
}

// List returns all entries, newest check-in first.
func (m *Memory) List(ctx context.Context) ([]Entry, error) {
	return m.collect(func(*Entry) bool { return true })
}

// ListOpen returns the currently open entries.
func (m *Memory) ListOpen(ctx context.Context) ([]Entry, error) {
	return m.collect(func(e *Entry) bool { return e.CheckOutTime == nil })
}

func (m *Memory) collect(keep func(*Entry) bool) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []Entry
	for _, e := range m.entries {
		if keep(e) {
			res = append(res, *e)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CheckInTime.After(res[j].CheckInTime) })
	return res, nil
}
