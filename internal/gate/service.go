package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gatelog/internal/identity"
	"gatelog/internal/ledger"
	"gatelog/internal/metrics"
)

// Direction tags which transition a scan produced.
type Direction string

const (
	In  Direction = "IN"
	Out Direction = "OUT"
)

// Result is the outcome of one scan: the entry that was created or closed
// and the transition that happened.
type Result struct {
	Entry     ledger.Entry `json:"entry"`
	Direction Direction    `json:"direction"`
}

// Service is the check-in/check-out state machine. State per regNo is not
// stored anywhere: an open ledger entry means IN, none means OUT, so the
// machine is fully recoverable from the ledger alone.
type Service struct {
	ids    identity.Store
	ledger ledger.Store
	m      *metrics.Metrics

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates the toggle engine.
func NewService(ids identity.Store, led ledger.Store, m *metrics.Metrics) *Service {
	return &Service{
		ids:    ids,
		ledger: led,
		m:      m,
		locks:  make(map[string]*sync.Mutex),
	}
}

// lockFor serializes scans per regNo. Scans for different regNos proceed
// in parallel; two scans for the same regNo never interleave between the
// open-entry read and the create/close write.
func (s *Service) lockFor(regNo string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[regNo]
	if !ok {
		l = &sync.Mutex{}
		s.locks[regNo] = l
	}
	return l
}

// Scan turns one gate scan into a check-in or a check-out. An unknown regNo
// is never rejected: the entry is logged with null identity fields and
// UserType UNKNOWN, to be repaired later by the resolution engine.
func (s *Service) Scan(ctx context.Context, regNo string, at time.Time) (Result, error) {
	if regNo == "" {
		return Result{}, errors.New("regNo required")
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	entry := ledger.Entry{
		RegNo:       regNo,
		UserType:    ledger.Unknown,
		CheckInTime: at,
	}
	id, variant, err := s.ids.Lookup(ctx, regNo)
	switch {
	case err == nil:
		entry.Name = &id.Name
		entry.Department = &id.Department
		entry.UserType = ledger.UserType(variant)
	case errors.Is(err, identity.ErrNotFound):
		// logged as UNKNOWN, resolution is deferred
	default:
		return Result{}, fmt.Errorf("identity lookup: %w", err)
	}

	l := s.lockFor(regNo)
	l.Lock()
	defer l.Unlock()

	open, err := s.ledger.FindOpen(ctx, regNo)
	if err != nil {
		return Result{}, fmt.Errorf("find open entry: %w", err)
	}

	if open != nil {
		// Identity fields stored at check-in are deliberately left as
		// they were, even if the master tables have changed since.
		closed, err := s.ledger.Close(ctx, open.ID, at)
		if err != nil {
			return Result{}, fmt.Errorf("close entry: %w", err)
		}
		s.m.CountScan(string(Out), string(closed.UserType))
		s.m.AddOpen(-1)
		return Result{Entry: closed, Direction: Out}, nil
	}

	created, err := s.ledger.Create(ctx, entry)
	if err != nil {
		return Result{}, fmt.Errorf("create entry: %w", err)
	}
	s.m.CountScan(string(In), string(created.UserType))
	s.m.AddOpen(1)
	return Result{Entry: created, Direction: In}, nil
}

// CloseEntry is the administrative override of the check-out side, bypassing
// scan-based inference. It never overwrites an already-set check-out time.
func (s *Service) CloseEntry(ctx context.Context, entryID string, at time.Time) (ledger.Entry, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	e, err := s.ledger.Close(ctx, entryID, at)
	if err != nil {
		return ledger.Entry{}, err
	}
	s.m.AddOpen(-1)
	return e, nil
}

// CloseAllOpen is the bulk end-of-day checkout; closed entries are untouched.
func (s *Service) CloseAllOpen(ctx context.Context, at time.Time) (int, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}
	n, err := s.ledger.CloseAllOpen(ctx, at)
	if err != nil {
		return 0, err
	}
	s.m.AddOpen(-n)
	return n, nil
}
