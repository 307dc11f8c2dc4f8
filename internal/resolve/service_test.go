package resolve

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gatelog/internal/gate"
	"gatelog/internal/identity"
	"gatelog/internal/ledger"
)

type fixture struct {
	ids      *identity.Memory
	led      *ledger.Memory
	gate     *gate.Service
	resolver *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ids := identity.NewMemory()
	led := ledger.NewMemory()
	return &fixture{
		ids:      ids,
		led:      led,
		gate:     gate.NewService(ids, led, nil),
		resolver: NewService(ids, led, nil),
	}
}

// The full deferred-resolution round trip: an unknown scan pair is logged,
// the person is registered afterwards, and the closed entry gains its
// identity fields without its timestamps moving.
func TestRegisterAndResolveBackfillsUnknownEntries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	in, err := f.gate.Scan(ctx, "S101", time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, ledger.Unknown, in.Entry.UserType)

	out, err := f.gate.Scan(ctx, "S101", time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, gate.Out, out.Direction)

	n, err := f.resolver.RegisterAndResolve(ctx, identity.Identity{
		RegNo:      "S101",
		Name:       "A",
		Department: "CSE",
	}, identity.Student)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	entries, err := f.led.FindByRegNo(ctx, "S101")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	e := entries[0]
	require.Equal(t, "A", *e.Name)
	require.Equal(t, "CSE", *e.Department)
	require.Equal(t, ledger.Student, e.UserType)
	require.Equal(t, out.Entry.CheckInTime, e.CheckInTime)
	require.Equal(t, *out.Entry.CheckOutTime, *e.CheckOutTime)

	count, err := f.resolver.SweepUnresolved(ctx)
	require.NoError(t, err)
	require.Zero(t, count)

	// next scan sees the registered identity directly
	next, err := f.gate.Scan(ctx, "S101", time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, ledger.Student, next.Entry.UserType)
}

func TestRegisterAndResolveValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.resolver.RegisterAndResolve(ctx, identity.Identity{Name: "A"}, identity.Student)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "regNo", verr.Field)

	_, err = f.resolver.RegisterAndResolve(ctx, identity.Identity{RegNo: "S101"}, identity.Student)
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "name", verr.Field)
}

func TestRegisterAndResolveDoesNotTouchOtherRows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.gate.Scan(ctx, "S101", time.Now().UTC())
	require.NoError(t, err)
	_, err = f.gate.Scan(ctx, "S202", time.Now().UTC())
	require.NoError(t, err)

	_, err = f.resolver.RegisterAndResolve(ctx, identity.Identity{RegNo: "S101", Name: "A", Department: "CSE"}, identity.Student)
	require.NoError(t, err)

	other, err := f.led.FindByRegNo(ctx, "S202")
	require.NoError(t, err)
	require.Nil(t, other[0].Name)
	require.Equal(t, ledger.Unknown, other[0].UserType)
}

func TestRegisterAndResolveKeepsAlreadyResolvedRows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.ids.Upsert(ctx, identity.Identity{RegNo: "S101", Name: "First", Department: "CSE"}, identity.Student))
	in, err := f.gate.Scan(ctx, "S101", time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, "First", *in.Entry.Name)
	_, err = f.gate.Scan(ctx, "S101", time.Now().UTC())
	require.NoError(t, err)

	// re-registration with different details never rewrites resolved rows
	_, err = f.resolver.RegisterAndResolve(ctx, identity.Identity{RegNo: "S101", Name: "Second", Department: "ECE"}, identity.Student)
	require.NoError(t, err)

	entries, err := f.led.FindByRegNo(ctx, "S101")
	require.NoError(t, err)
	require.Equal(t, "First", *entries[0].Name)
}

func TestSweepResolvesOnlyRegisteredRegNos(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// three unknown regNos, several rows each for one of them
	for _, regNo := range []string{"S101", "S101", "S202", "LIB042"} {
		_, err := f.gate.Scan(ctx, regNo, time.Now().UTC())
		require.NoError(t, err)
		_, err = f.gate.Scan(ctx, regNo, time.Now().UTC())
		require.NoError(t, err)
	}

	require.NoError(t, f.ids.Upsert(ctx, identity.Identity{RegNo: "S101", Name: "A", Department: "CSE"}, identity.Student))
	require.NoError(t, f.ids.Upsert(ctx, identity.Identity{RegNo: "LIB042", Name: "B", Department: "Library"}, identity.Staff))

	// counted per regNo, not per row
	count, err := f.resolver.SweepUnresolved(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	unresolved, err := f.led.FindUnresolved(ctx)
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	require.Equal(t, "S202", unresolved[0].RegNo)

	staffRows, err := f.led.FindByRegNo(ctx, "LIB042")
	require.NoError(t, err)
	require.Equal(t, ledger.Staff, staffRows[0].UserType)

	// absence of S202 in the master tables is steady state, not an error
	count, err = f.resolver.SweepUnresolved(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestResolveRegNo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.gate.Scan(ctx, "S101", time.Now().UTC())
	require.NoError(t, err)

	resolved, err := f.resolver.ResolveRegNo(ctx, "S101")
	require.NoError(t, err)
	require.False(t, resolved)

	require.NoError(t, f.ids.Upsert(ctx, identity.Identity{RegNo: "S101", Name: "A", Department: "CSE"}, identity.Student))

	resolved, err = f.resolver.ResolveRegNo(ctx, "S101")
	require.NoError(t, err)
	require.True(t, resolved)

	resolved, err = f.resolver.ResolveRegNo(ctx, "S101")
	require.NoError(t, err)
	require.False(t, resolved)
}
