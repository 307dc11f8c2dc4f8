package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func openEntry(t *testing.T, m *Memory, regNo string) Entry {
	t.Helper()
	e, err := m.Create(context.Background(), Entry{
		RegNo:       regNo,
		UserType:    Unknown,
		CheckInTime: time.Now().UTC(),
	})
	require.NoError(t, err)
	return e
}

func TestMemoryFindOpen(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	got, err := m.FindOpen(ctx, "S1")
	require.NoError(t, err)
	require.Nil(t, got)

	e := openEntry(t, m, "S1")

	got, err = m.FindOpen(ctx, "S1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, e.ID, got.ID)
	require.True(t, got.Open())
}

func TestMemoryCloseSemantics(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	e := openEntry(t, m, "S1")

	at := time.Now().UTC()
	closed, err := m.Close(ctx, e.ID, at)
	require.NoError(t, err)
	require.NotNil(t, closed.CheckOutTime)
	require.Equal(t, at, *closed.CheckOutTime)

	// a set check-out time never changes
	_, err = m.Close(ctx, e.ID, at.Add(time.Hour))
	require.ErrorIs(t, err, ErrAlreadyClosed)

	_, err = m.Close(ctx, "no-such-id", at)
	require.ErrorIs(t, err, ErrNotFound)

	got, err := m.FindOpen(ctx, "S1")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestMemoryCloseAllOpen(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	openEntry(t, m, "S1")
	openEntry(t, m, "S2")
	closedBefore, err := m.Close(ctx, openEntry(t, m, "S3").ID, time.Now().UTC())
	require.NoError(t, err)

	n, err := m.CloseAllOpen(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// already-closed entries keep their original stamp
	entries, err := m.FindByRegNo(ctx, "S3")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, *closedBefore.CheckOutTime, *entries[0].CheckOutTime)

	n, err = m.CloseAllOpen(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.Zero(t, n)

	open, err := m.ListOpen(ctx)
	require.NoError(t, err)
	require.Empty(t, open)
}

func TestMemoryResolveUnknownScoping(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	resolved, err := m.Create(ctx, Entry{
		RegNo:       "S1",
		Name:        strptr("Existing"),
		Department:  strptr("CSE"),
		UserType:    Student,
		CheckInTime: time.Now().UTC(),
	})
	require.NoError(t, err)
	_, err = m.Close(ctx, resolved.ID, time.Now().UTC())
	require.NoError(t, err)
	openEntry(t, m, "S1")
	openEntry(t, m, "S2")

	n, err := m.ResolveUnknown(ctx, "S1", "Asha", "CSE", Student)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	// rows of other regNos and already-resolved rows are untouched
	s2, err := m.FindByRegNo(ctx, "S2")
	require.NoError(t, err)
	require.Nil(t, s2[0].Name)
	require.Equal(t, Unknown, s2[0].UserType)

	s1, err := m.FindByRegNo(ctx, "S1")
	require.NoError(t, err)
	for _, e := range s1 {
		require.NotNil(t, e.Name)
		if e.ID == resolved.ID {
			require.Equal(t, "Existing", *e.Name)
		} else {
			require.Equal(t, "Asha", *e.Name)
		}
	}

	unresolved, err := m.FindUnresolved(ctx)
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	require.Equal(t, "S2", unresolved[0].RegNo)
}
