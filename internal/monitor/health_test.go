package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netsentry/internal/domain"
	"netsentry/internal/service"
)

func TestFlapSuppression(t *testing.T) {
	ctx := context.Background()
	h := newHarness(nil)
	h.addDevice(ctx, domain.DeviceStatusOnline, 0)
	h.prober.set(false, 0)

	for i := 1; i <= 2; i++ {
		_, err := h.check(ctx)
		require.NoError(t, err)

		d, err := h.store.FindDevice(ctx, "10.0.0.5")
		require.NoError(t, err)
		assert.Equal(t, domain.DeviceStatusOnline, d.Status)
		assert.Equal(t, i, d.Metrics.ConsecutiveFailures)
		assert.Empty(t, d.Alerts)
	}

	eval, err := h.check(ctx)
	require.NoError(t, err)
	assert.True(t, eval.StatusChanged)

	d, err := h.store.FindDevice(ctx, "10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceStatusOffline, d.Status)
	require.Len(t, d.Alerts, 1)
	assert.Equal(t, domain.AlertDeviceUnreachable, d.Alerts[0].Type)
	assert.Equal(t, domain.SeverityCritical, d.Alerts[0].Severity)
	assert.Contains(t, d.Alerts[0].Message, "3 consecutive")

	assert.Len(t, h.pub.ofType(service.EventNewAlert), 1)
	assert.Len(t, h.pub.ofType(service.EventDeviceStatusChanged), 1)

	// further failures while offline raise nothing new
	_, err = h.check(ctx)
	require.NoError(t, err)
	alerts, err := h.store.ListAlerts(ctx, "dev-1")
	require.NoError(t, err)
	assert.Len(t, alerts, 1)
}

func TestRecoveryResolvesUnreachable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(nil)
	h.addDevice(ctx, domain.DeviceStatusOffline, 5)
	require.NoError(t, h.store.AppendAlerts(ctx, "dev-1", []domain.Alert{
		{ID: "u1", DeviceID: "dev-1", Type: domain.AlertDeviceUnreachable, Severity: domain.SeverityCritical, Timestamp: t0.Add(-10 * time.Minute)},
		{ID: "u2", DeviceID: "dev-1", Type: domain.AlertDeviceUnreachable, Severity: domain.SeverityCritical, Timestamp: t0.Add(-40 * time.Minute)},
	}))
	h.prober.set(true, 4.2)

	eval, err := h.check(ctx)
	require.NoError(t, err)
	assert.True(t, eval.ResolveUnreachable)

	d, err := h.store.FindDevice(ctx, "10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceStatusOnline, d.Status)
	assert.Equal(t, 0, d.Metrics.ConsecutiveFailures)
	require.NotNil(t, d.Metrics.LastSeen)
	assert.True(t, d.Metrics.LastSeen.Equal(t0))
	require.NotNil(t, d.Metrics.ResponseTimeMs)
	assert.InDelta(t, 4.2, *d.Metrics.ResponseTimeMs, 0.001)

	assert.Equal(t, 0, countAlerts(d.Alerts, domain.AlertDeviceUnreachable, true))
	for _, a := range d.Alerts {
		if a.Type == domain.AlertDeviceUnreachable {
			require.NotNil(t, a.ResolvedAt)
			assert.True(t, a.ResolvedAt.Equal(t0))
		}
	}
	assert.Equal(t, 1, countAlerts(d.Alerts, domain.AlertDeviceBackOnline, true))

	changed := h.pub.ofType(service.EventDeviceStatusChanged)
	require.Len(t, changed, 1)
	assert.Equal(t, domain.DeviceStatusOnline, changed[0].Payload.(service.StatusChangedPayload).Status)
}

func TestBackOnlineDedupWindow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(nil)
	h.addDevice(ctx, domain.DeviceStatusOffline, 3)

	h.prober.set(true, 2)
	_, err := h.check(ctx)
	require.NoError(t, err)

	// drop offline again within the window
	h.prober.set(false, 0)
	for i := 0; i < 3; i++ {
		h.clock.Advance(20 * time.Second)
		_, err := h.check(ctx)
		require.NoError(t, err)
	}
	d, err := h.store.FindDevice(ctx, "10.0.0.5")
	require.NoError(t, err)
	require.Equal(t, domain.DeviceStatusOffline, d.Status)

	h.clock.Advance(time.Minute)
	h.prober.set(true, 2)
	_, err = h.check(ctx)
	require.NoError(t, err)

	d, err = h.store.FindDevice(ctx, "10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceStatusOnline, d.Status)
	assert.Equal(t, 1, countAlerts(d.Alerts, domain.AlertDeviceBackOnline, true))
}

func TestHighResponseTimeDeduped(t *testing.T) {
	ctx := context.Background()
	h := newHarness(nil)
	h.addDevice(ctx, domain.DeviceStatusOnline, 0)
	h.prober.set(true, 1500)

	eval, err := h.check(ctx)
	require.NoError(t, err)
	require.Len(t, eval.NewAlerts, 1)
	assert.Equal(t, domain.AlertHighResponseTime, eval.NewAlerts[0].Type)
	assert.Equal(t, domain.SeverityWarning, eval.NewAlerts[0].Severity)
	assert.Equal(t, 1500.0, eval.NewAlerts[0].Value)
	assert.Equal(t, 1000.0, eval.NewAlerts[0].Threshold)

	h.clock.Advance(time.Minute)
	eval, err = h.check(ctx)
	require.NoError(t, err)
	assert.Empty(t, eval.NewAlerts)

	h.clock.Advance(5 * time.Minute)
	eval, err = h.check(ctx)
	require.NoError(t, err)
	assert.Len(t, eval.NewAlerts, 1)
}

func TestAutoAcknowledgeOldInfoAlerts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(nil)
	h.addDevice(ctx, domain.DeviceStatusOnline, 0)
	require.NoError(t, h.store.AppendAlerts(ctx, "dev-1", []domain.Alert{
		{ID: "old", DeviceID: "dev-1", Type: domain.AlertDeviceBackOnline, Severity: domain.SeverityInfo, Timestamp: t0.Add(-61 * time.Minute)},
		{ID: "recent", DeviceID: "dev-1", Type: domain.AlertDeviceBackOnline, Severity: domain.SeverityInfo, Timestamp: t0.Add(-30 * time.Minute)},
	}))
	h.prober.set(true, 3)

	_, err := h.check(ctx)
	require.NoError(t, err)

	alerts, err := h.store.ListAlerts(ctx, "dev-1")
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	byID := map[string]domain.Alert{}
	for _, a := range alerts {
		byID[a.ID] = a
	}
	assert.True(t, byID["old"].Acknowledged)
	assert.False(t, byID["recent"].Acknowledged)
}

func TestEvaluate(t *testing.T) {
	h := newHarness(nil)
	rtt := 12.0

	tests := []struct {
		name        string
		device      domain.Device
		probe       domain.ProbeResult
		probeErr    error
		wantStatus  domain.DeviceStatus
		wantFails   int
		wantChanged bool
		wantAlerts  int
	}{
		{
			name:       "never evaluated goes online silently",
			device:     domain.Device{ID: "d", Address: "10.0.0.9"},
			probe:      domain.ProbeResult{Alive: true, ResponseTimeMs: &rtt},
			wantStatus: domain.DeviceStatusOnline,
		},
		{
			name:       "probe error counts as failure",
			device:     domain.Device{ID: "d", Address: "10.0.0.9", Status: domain.DeviceStatusOnline, Metrics: domain.Metrics{ConsecutiveFailures: 1}},
			probe:      domain.ProbeResult{Alive: true, ResponseTimeMs: &rtt},
			probeErr:   errors.New("permission denied"),
			wantStatus: domain.DeviceStatusOnline,
			wantFails:  2,
		},
		{
			name:        "threshold reached",
			device:      domain.Device{ID: "d", Address: "10.0.0.9", Status: domain.DeviceStatusOnline, Metrics: domain.Metrics{ConsecutiveFailures: 2}},
			wantStatus:  domain.DeviceStatusOffline,
			wantFails:   3,
			wantChanged: true,
			wantAlerts:  1,
		},
		{
			name:       "never evaluated device keeps counting",
			device:     domain.Device{ID: "d", Address: "10.0.0.9", Metrics: domain.Metrics{ConsecutiveFailures: 7}},
			wantStatus: "",
			wantFails:  8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := h.health.Evaluate(&tt.device, tt.probe, tt.probeErr)
			assert.Equal(t, tt.wantStatus, eval.Status)
			assert.Equal(t, tt.wantChanged, eval.StatusChanged)
			assert.Len(t, eval.NewAlerts, tt.wantAlerts)
			require.NotNil(t, eval.Patch.Metrics)
			assert.Equal(t, tt.wantFails, eval.Patch.Metrics.ConsecutiveFailures)
		})
	}
}
