package resolve

import (
	"context"
	"errors"
	"fmt"

	"gatelog/internal/identity"
	"gatelog/internal/ledger"
	"gatelog/internal/metrics"
)

// ValidationError reports a registration with missing required fields.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

// Service repairs ledger entries that were logged before their identity was
// registered. Both entry points are idempotent: the underlying bulk update
// only ever transitions name from null to non-null, so re-running converges
// to the same state and concurrent attempts are safe.
type Service struct {
	ids    identity.Store
	ledger ledger.Store
	m      *metrics.Metrics
}

// NewService creates the resolution engine.
func NewService(ids identity.Store, led ledger.Store, m *metrics.Metrics) *Service {
	return &Service{ids: ids, ledger: led, m: m}
}

// RegisterAndResolve upserts the identity into the caller-chosen variant's
// table and retroactively fills the unresolved ledger rows for that regNo.
// Rows that already carry a name are never touched. Returns the rows fixed.
func (s *Service) RegisterAndResolve(ctx context.Context, id identity.Identity, variant identity.Variant) (int64, error) {
	switch {
	case id.RegNo == "":
		return 0, &ValidationError{Field: "regNo"}
	case id.Name == "":
		return 0, &ValidationError{Field: "name"}
	}
	if variant != identity.Staff {
		variant = identity.Student
	}
	if err := s.ids.Upsert(ctx, id, variant); err != nil {
		return 0, fmt.Errorf("upsert identity: %w", err)
	}
	n, err := s.ledger.ResolveUnknown(ctx, id.RegNo, id.Name, id.Department, ledger.UserType(variant))
	if err != nil {
		return 0, fmt.Errorf("resolve entries: %w", err)
	}
	if n > 0 {
		s.m.CountResolved(1)
	}
	return n, nil
}

// ResolveRegNo is the targeted form of the sweep for a single regNo: if the
// identity is now registered, its unresolved rows are filled in. Reports
// whether anything was resolved; an unregistered regNo is not an error.
func (s *Service) ResolveRegNo(ctx context.Context, regNo string) (bool, error) {
	id, variant, err := s.ids.Lookup(ctx, regNo)
	if errors.Is(err, identity.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("identity lookup: %w", err)
	}
	n, err := s.ledger.ResolveUnknown(ctx, regNo, id.Name, id.Department, ledger.UserType(variant))
	if err != nil {
		return false, fmt.Errorf("resolve entries: %w", err)
	}
	if n > 0 {
		s.m.CountResolved(1)
	}
	return n > 0, nil
}

// SweepUnresolved converges every already-registered identity into its
// unresolved ledger rows. Returns the count of regNos resolved, not rows;
// regNos still absent from the master tables are simply left for the next
// sweep. Re-running after everything is resolved returns 0 and writes
// nothing.
func (s *Service) SweepUnresolved(ctx context.Context) (int, error) {
	unresolved, err := s.ledger.FindUnresolved(ctx)
	if err != nil {
		return 0, fmt.Errorf("find unresolved: %w", err)
	}

	seen := make(map[string]struct{}, len(unresolved))
	count := 0
	for _, e := range unresolved {
		if _, ok := seen[e.RegNo]; ok {
			continue
		}
		seen[e.RegNo] = struct{}{}

		id, variant, err := s.ids.Lookup(ctx, e.RegNo)
		if errors.Is(err, identity.ErrNotFound) {
			continue
		}
		if err != nil {
			return count, fmt.Errorf("identity lookup %s: %w", e.RegNo, err)
		}
		if _, err := s.ledger.ResolveUnknown(ctx, e.RegNo, id.Name, id.Department, ledger.UserType(variant)); err != nil {
			return count, fmt.Errorf("resolve entries %s: %w", e.RegNo, err)
		}
		count++
	}
	s.m.CountResolved(count)
	return count, nil
}
