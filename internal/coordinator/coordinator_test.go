package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netsentry/internal/clock"
	"netsentry/internal/domain"
	"netsentry/internal/logger"
)

type brokenStore struct{}

func (brokenStore) LoadScanState(context.Context) (domain.ScanState, error) {
	return domain.ScanState{}, errors.New("corrupt state")
}

func (brokenStore) AcquireScanState(context.Context, string, time.Time) (bool, error) {
	return false, errors.New("corrupt state")
}

func (brokenStore) ReleaseScanState(context.Context, string) error {
	return errors.New("corrupt state")
}

func (brokenStore) TakeOverScanState(context.Context, string, string, time.Time) (bool, error) {
	return false, errors.New("corrupt state")
}

func newTestCoordinator(store StateStore) *Coordinator {
	return New(store, clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)), logger.NewTestLogger())
}

func TestLeaseExclusive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := newTestCoordinator(NewMemoryStore())

	lease, err := c.Acquire(ctx, "scan-a")
	require.NoError(t, err)
	assert.Equal(t, "scan-a", lease.Owner())

	_, err = c.Acquire(ctx, "scan-b")
	require.ErrorIs(t, err, ErrScanInProgress)

	state, err := c.TryRead(ctx)
	require.NoError(t, err)
	assert.True(t, state.IsRunning)
	assert.Equal(t, "scan-a", state.Owner)

	require.NoError(t, lease.Release(ctx))
	require.NoError(t, lease.Release(ctx))

	state, err = c.TryRead(ctx)
	require.NoError(t, err)
	assert.False(t, state.IsRunning)

	_, err = c.Acquire(ctx, "scan-b")
	require.NoError(t, err)
}

func TestReleaseByNonOwnerIsIgnored(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	c := newTestCoordinator(store)

	_, err := c.Acquire(ctx, "scan-a")
	require.NoError(t, err)

	require.NoError(t, store.ReleaseScanState(ctx, "monitor"))

	state, err := c.TryRead(ctx)
	require.NoError(t, err)
	assert.True(t, state.IsRunning)
}

func TestTryReadWrapsStoreError(t *testing.T) {
	t.Parallel()

	c := newTestCoordinator(brokenStore{})

	_, err := c.TryRead(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read scan state")

	_, err = c.Acquire(context.Background(), "scan-a")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrScanInProgress)
}

func TestExpiredLeaseIsTakenOver(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clk := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	c := New(NewMemoryStore(), clk, logger.NewTestLogger(), WithLeaseTTL(30*time.Minute))

	_, err := c.Acquire(ctx, "scan-crashed")
	require.NoError(t, err)

	clk.Advance(29 * time.Minute)
	_, err = c.Acquire(ctx, "scan-b")
	require.ErrorIs(t, err, ErrScanInProgress)

	clk.Advance(2 * time.Minute)
	state, err := c.TryRead(ctx)
	require.NoError(t, err)
	assert.False(t, state.IsRunning)

	lease, err := c.Acquire(ctx, "scan-b")
	require.NoError(t, err)
	assert.Equal(t, clk.Now(), lease.AcquiredAt())

	state, err = c.TryRead(ctx)
	require.NoError(t, err)
	assert.True(t, state.IsRunning)
	assert.Equal(t, "scan-b", state.Owner)

	// the dead scanner cannot clear the new holder's flag
	require.NoError(t, c.store.ReleaseScanState(ctx, "scan-crashed"))
	state, err = c.TryRead(ctx)
	require.NoError(t, err)
	assert.True(t, state.IsRunning)
}

func TestLeaseWithoutExpiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clk := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	c := New(NewMemoryStore(), clk, logger.NewTestLogger(), WithLeaseTTL(0))
	assert.Zero(t, c.LeaseTTL())

	_, err := c.Acquire(ctx, "scan-a")
	require.NoError(t, err)

	clk.Advance(48 * time.Hour)
	state, err := c.TryRead(ctx)
	require.NoError(t, err)
	assert.True(t, state.IsRunning)
}
