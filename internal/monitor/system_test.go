package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netsentry/internal/domain"
	"netsentry/internal/logger"
	"netsentry/internal/policy"
	"netsentry/internal/repository"
	"netsentry/internal/service"
)

func TestSystemChecker(t *testing.T) {
	ctx := context.Background()
	h := newHarness(nil)
	stats := &fakeStats{memory: 95, cpu: 10, uptime: 2 * time.Minute}
	c := NewSystemChecker(h.store, stats, policy.New(policy.DefaultConfig()), h.pub, h.clock, SystemConfig{}, logger.NewTestLogger())

	raised, err := c.Check(ctx)
	require.NoError(t, err)
	require.Len(t, raised, 2)
	assert.Equal(t, domain.AlertHighMemoryUsage, raised[0].Type)
	assert.Equal(t, domain.SeverityWarning, raised[0].Severity)
	assert.Equal(t, domain.AlertSystemRestarted, raised[1].Type)
	assert.Equal(t, domain.SeverityInfo, raised[1].Severity)
	assert.Len(t, h.pub.ofType(service.EventNewAlert), 2)

	// deduped inside the window
	h.clock.Advance(2 * time.Minute)
	raised, err = c.Check(ctx)
	require.NoError(t, err)
	assert.Empty(t, raised)

	// the restart notice auto-acknowledges after an hour
	stats.memory = 40
	stats.uptime = 70 * time.Minute
	h.clock.Advance(62 * time.Minute)
	raised, err = c.Check(ctx)
	require.NoError(t, err)
	assert.Empty(t, raised)

	alerts, err := h.store.ListAlerts(ctx, domain.SystemDeviceID)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.False(t, alerts[0].Acknowledged)
	assert.True(t, alerts[1].Acknowledged)
}

func TestSystemCheckerSkipsUnreadableStats(t *testing.T) {
	store := repository.NewMemoryStore()
	h := newHarness(store)
	stats := &fakeStats{err: errors.New("no /proc")}
	c := NewSystemChecker(store, stats, nil, nil, h.clock, DefaultSystemConfig(), logger.NewTestLogger())

	raised, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.Empty(t, raised)
}

func TestSchedulerRunsSystemChecksFirst(t *testing.T) {
	ctx := context.Background()
	h := newHarness(nil)
	stats := &fakeStats{memory: 10, cpu: 97, uptime: time.Hour}

	s := h.scheduler(brokenStateStore{})
	s.system = NewSystemChecker(h.store, stats, nil, h.pub, h.clock, SystemConfig{}, logger.NewTestLogger())

	summary, err := s.TriggerChecks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SystemAlerts)
	assert.True(t, summary.SweepSkipped)
}
