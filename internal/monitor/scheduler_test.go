package monitor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netsentry/internal/clock"
	"netsentry/internal/coordinator"
	"netsentry/internal/domain"
	"netsentry/internal/logger"
	"netsentry/internal/repository/sqlite"
)

func TestCoordinatorFailSafe(t *testing.T) {
	ctx := context.Background()
	h := newHarness(nil)
	h.addDevice(ctx, domain.DeviceStatusOnline, 2)
	h.prober.set(false, 0)

	s := h.scheduler(brokenStateStore{})
	summary, err := s.TriggerChecks(ctx)
	require.NoError(t, err)
	assert.True(t, summary.SweepSkipped)
	assert.Nil(t, summary.Sweep)

	assert.Equal(t, 0, h.prober.callCount())
	d, err := h.store.FindDevice(ctx, "10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceStatusOnline, d.Status)
	assert.Equal(t, 2, d.Metrics.ConsecutiveFailures)
	assert.Empty(t, d.Alerts)
	assert.Empty(t, h.pub.ofType("newAlert"))
}

func TestSweepSkippedDuringBulkScan(t *testing.T) {
	ctx := context.Background()
	h := newHarness(nil)
	h.addDevice(ctx, domain.DeviceStatusOnline, 0)

	states := coordinator.NewMemoryStore()
	s := h.scheduler(states)

	lease, err := coordinator.New(states, h.clock, h.health.logger).Acquire(ctx, "bulk-scan-test")
	require.NoError(t, err)

	summary, err := s.TriggerChecks(ctx)
	require.NoError(t, err)
	assert.True(t, summary.SweepSkipped)
	assert.Equal(t, 0, h.prober.callCount())

	require.NoError(t, lease.Release(ctx))

	h.prober.set(true, 3)
	summary, err = s.TriggerChecks(ctx)
	require.NoError(t, err)
	assert.False(t, summary.SweepSkipped)
	require.NotNil(t, summary.Sweep)
	assert.Equal(t, 1, summary.Sweep.Checked)
	assert.Equal(t, 1, h.prober.callCount())
}

func TestSchedulerStartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := newHarness(nil)
	h.addDevice(ctx, domain.DeviceStatusOnline, 0)
	h.prober.set(true, 1)

	s := h.scheduler(coordinator.NewMemoryStore())
	assert.False(t, s.Status().Running)

	s.Start(ctx, 5)
	s.Start(ctx, 1)
	// ticks outlive the starting context
	cancel()

	st := s.Status()
	assert.True(t, st.Running)
	assert.Equal(t, 5, st.IntervalMinutes)
	require.NotNil(t, st.StartedAt)

	require.Eventually(t, func() bool { return s.Status().Ticks == 1 }, time.Second, 5*time.Millisecond)

	h.clock.Advance(5 * time.Minute)
	require.Eventually(t, func() bool { return s.Status().Ticks == 2 }, time.Second, 5*time.Millisecond)

	st = s.Status()
	require.NotNil(t, st.LastRunAt)
	assert.True(t, st.LastRunAt.Equal(t0.Add(5*time.Minute)))
	assert.Equal(t, 300.0, st.UptimeSeconds)

	s.Stop()
	s.Stop()
	s.Wait()

	st = s.Status()
	assert.False(t, st.Running)
	assert.Nil(t, st.StartedAt)
	assert.Equal(t, int64(2), st.Ticks)
}

func TestTriggerChecksWhileTicking(t *testing.T) {
	h := newHarness(nil)
	s := h.scheduler(coordinator.NewMemoryStore())

	s.ticking.Store(true)
	_, err := s.TriggerChecks(context.Background())
	assert.ErrorIs(t, err, ErrTickInProgress)
	s.ticking.Store(false)

	_, err = s.TriggerChecks(context.Background())
	assert.NoError(t, err)
}

func TestEndToEndUnreachableWithSQLite(t *testing.T) {
	ctx := context.Background()

	repo, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	h := newHarness(repo)
	h.addDevice(ctx, domain.DeviceStatusOnline, 0)
	h.prober.set(false, 0)

	s := h.scheduler(repo)
	for tick := 0; tick < 3; tick++ {
		summary, err := s.TriggerChecks(ctx)
		require.NoError(t, err)
		require.False(t, summary.SweepSkipped)
		h.clock.Advance(5 * time.Minute)
	}

	d, err := repo.FindDevice(ctx, "10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceStatusOffline, d.Status)
	assert.Equal(t, 3, d.Metrics.ConsecutiveFailures)

	require.Len(t, d.Alerts, 1)
	assert.Equal(t, domain.AlertDeviceUnreachable, d.Alerts[0].Type)
	assert.Equal(t, domain.SeverityCritical, d.Alerts[0].Severity)
	assert.False(t, d.Alerts[0].Acknowledged)
}

func TestAbandonedScanLeaseExpiresAfterRestart(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "netsentry.db")

	// A scanner takes the lease and the process dies without releasing it
	crashed, err := sqlite.New(dbPath)
	require.NoError(t, err)
	_, err = coordinator.New(crashed, clock.NewFake(t0), logger.NewTestLogger()).Acquire(ctx, "bulk-scan-crashed")
	require.NoError(t, err)
	require.NoError(t, crashed.Close())

	repo, err := sqlite.New(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	h := newHarness(repo)
	h.addDevice(ctx, domain.DeviceStatusOnline, 0)
	h.prober.set(false, 0)
	s := h.scheduler(repo)

	// Within the lease lifetime the flag is still honoured
	summary, err := s.TriggerChecks(ctx)
	require.NoError(t, err)
	assert.True(t, summary.SweepSkipped)
	assert.Equal(t, 0, h.prober.callCount())

	h.clock.Advance(coordinator.DefaultLeaseTTL + time.Minute)

	summary, err = s.TriggerChecks(ctx)
	require.NoError(t, err)
	assert.False(t, summary.SweepSkipped)
	require.NotNil(t, summary.Sweep)
	assert.Equal(t, 1, summary.Sweep.Checked)
	assert.Equal(t, 1, h.prober.callCount())

	d, err := repo.FindDevice(ctx, "10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, 1, d.Metrics.ConsecutiveFailures)

	_, err = coordinator.New(repo, h.clock, logger.NewTestLogger()).Acquire(ctx, "bulk-scan-new")
	require.NoError(t, err)
}
