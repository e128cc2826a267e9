package sqlite

import (
	"context"
	"testing"
	"time"

	"policy-service/internal/db"
	"policy-service/internal/domain/policy"
	xerrors "policy-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *PolicyStore {
	t.Helper()

	gdb, err := db.OpenSQLite(":memory:", zap.NewNop())
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return NewPolicyStore(gdb, zap.NewNop())
}

func samplePolicy(number int64, name string) *policy.Policy {
	return &policy.Policy{
		PolicyNumber: number,
		CustomerName: name,
		StartDate:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestPolicyStore_InsertAndFind(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	p := samplePolicy(1001, "Alice")
	require.NoError(t, store.Insert(ctx, p))
	assert.Equal(t, int64(1), p.Version)

	found, err := store.FindByNumber(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, "Alice", found.CustomerName)
	assert.True(t, found.StartDate.Equal(p.StartDate))
	assert.True(t, found.EndDate.Equal(p.EndDate))
	assert.False(t, found.IsCancelled)
	assert.Nil(t, found.CancelledDate)
	assert.Equal(t, int64(1), found.Version)
}

func TestPolicyStore_FindMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.FindByNumber(context.Background(), 9999)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestPolicyStore_InsertDuplicate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Insert(ctx, samplePolicy(1001, "Alice")))
	err := store.Insert(ctx, samplePolicy(1001, "Mallory"))
	assert.ErrorIs(t, err, xerrors.ErrDuplicateEntry)

	found, err := store.FindByNumber(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, "Alice", found.CustomerName)
}

func TestPolicyStore_ListOrderedByNumber(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for _, p := range []*policy.Policy{samplePolicy(1003, "Charlie"), samplePolicy(1001, "Alice"), samplePolicy(1002, "Bob")} {
		require.NoError(t, store.Insert(ctx, p))
	}

	policies, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, policies, 3)
	assert.Equal(t, int64(1001), policies[0].PolicyNumber)
	assert.Equal(t, int64(1002), policies[1].PolicyNumber)
	assert.Equal(t, int64(1003), policies[2].PolicyNumber)
}

func TestPolicyStore_MaxPolicyNumber(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, ok, err := store.MaxPolicyNumber(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Insert(ctx, samplePolicy(1001, "Alice")))
	require.NoError(t, store.Insert(ctx, samplePolicy(1007, "Bob")))

	max, ok, err := store.MaxPolicyNumber(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1007), max)
}

func TestPolicyStore_UpdateOptimisticConcurrency(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.Insert(ctx, samplePolicy(1001, "Alice")))

	first, err := store.FindByNumber(ctx, 1001)
	require.NoError(t, err)
	second, err := store.FindByNumber(ctx, 1001)
	require.NoError(t, err)

	cancelledAt := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, first.Cancel(cancelledAt))
	require.NoError(t, store.Update(ctx, first, first.Version))
	assert.Equal(t, int64(2), first.Version)

	require.NoError(t, second.Cancel(cancelledAt.Add(time.Minute)))
	err = store.Update(ctx, second, second.Version)
	assert.ErrorIs(t, err, xerrors.ErrConcurrentUpdate)

	stored, err := store.FindByNumber(ctx, 1001)
	require.NoError(t, err)
	assert.True(t, stored.IsCancelled)
	require.NotNil(t, stored.CancelledDate)
	assert.True(t, stored.CancelledDate.Equal(cancelledAt))
	assert.Equal(t, int64(2), stored.Version)
}

func TestPolicyStore_UpdateMissing(t *testing.T) {
	store := newTestStore(t)

	err := store.Update(context.Background(), samplePolicy(4242, "Ghost"), 1)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}
