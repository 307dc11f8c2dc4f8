package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := map[string]Variant{
		"LIB042":  Staff,
		"s101":    Staff,
		"2023501": Student,
		"9A21":    Student,
		"":        Student,
	}
	for regNo, want := range cases {
		require.Equal(t, want, Classify(regNo), "regNo %q", regNo)
	}
}

func TestMemoryLookupSearchesStudentsFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Upsert(ctx, Identity{RegNo: "X1", Name: "As Staff"}, Staff))
	require.NoError(t, m.Upsert(ctx, Identity{RegNo: "X1", Name: "As Student"}, Student))

	id, variant, err := m.Lookup(ctx, "X1")
	require.NoError(t, err)
	require.Equal(t, Student, variant)
	require.Equal(t, "As Student", id.Name)
}

func TestMemoryLookupNotFound(t *testing.T) {
	_, _, err := NewMemory().Lookup(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryUpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Upsert(ctx, Identity{RegNo: "2023501", Name: "Old", Department: "ECE"}, Student))
	require.NoError(t, m.Upsert(ctx, Identity{RegNo: "2023501", Name: "New", Department: "CSE"}, Student))

	id, variant, err := m.Lookup(ctx, "2023501")
	require.NoError(t, err)
	require.Equal(t, Student, variant)
	require.Equal(t, "New", id.Name)
	require.Equal(t, "CSE", id.Department)
}

func TestMemoryDeleteManyRemovesFromBothTables(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Upsert(ctx, Identity{RegNo: "A1", Name: "a"}, Staff))
	require.NoError(t, m.Upsert(ctx, Identity{RegNo: "2023501", Name: "b"}, Student))

	// count reflects regNos processed, not rows actually removed
	n, err := m.DeleteMany(ctx, []string{"A1", "2023501", "missing"})
	require.NoError(t, err)
	require.Equal(t, 3, n)

	_, _, err = m.Lookup(ctx, "A1")
	require.ErrorIs(t, err, ErrNotFound)
	_, _, err = m.Lookup(ctx, "2023501")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryListSortedByRegNo(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Upsert(ctx, Identity{RegNo: "2023502", Name: "b"}, Student))
	require.NoError(t, m.Upsert(ctx, Identity{RegNo: "2023501", Name: "a"}, Student))

	res, err := m.List(ctx, Student)
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.Equal(t, "2023501", res[0].RegNo)
	require.Equal(t, "2023502", res[1].RegNo)

	staff, err := m.List(ctx, Staff)
	require.NoError(t, err)
	require.Empty(t, staff)
}
