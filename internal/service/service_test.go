package service

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netsentry/internal/clock"
	"netsentry/internal/domain"
	"netsentry/internal/logger"
	"netsentry/internal/repository"
)

type stubDiscoverer struct {
	result *domain.DiscoveryResult
	err    error
}

func (s *stubDiscoverer) Discover(_ context.Context, _ string, _ domain.Credentials, _ []domain.ProbeMethod) (*domain.DiscoveryResult, error) {
	return s.result, s.err
}

func newTestService(d Discoverer) (*DeviceService, *repository.MemoryStore, *EventBus, *clock.Fake) {
	store := repository.NewMemoryStore()
	bus := NewEventBus()
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewDeviceService(store, d, bus, clk, logger.NewTestLogger()), store, bus, clk
}

func TestIngestCreatesDevice(t *testing.T) {
	svc, store, bus, clk := newTestService(nil)
	events := make(chan Event, 4)
	bus.Subscribe(events)

	rtt := 1.5
	result := &domain.DiscoveryResult{
		Address:        "10.0.0.5",
		Reachable:      true,
		ResponseTimeMs: &rtt,
		MACAddress:     "B8:27:EB:01:02:03",
		Vendor:         "Raspberry Pi Foundation",
		OpenPorts:      []int{22, 80},
		Services:       []string{"ssh", "http"},
		DeviceType:     domain.DeviceTypeServer,
	}

	device, err := svc.Ingest(context.Background(), result)
	require.NoError(t, err)
	assert.NotEmpty(t, device.ID)
	assert.Equal(t, domain.DeviceStatusOnline, device.Status)
	assert.Equal(t, clk.Now(), *device.Metrics.LastSeen)

	stored, err := store.FindDevice(context.Background(), "10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, device.ID, stored.ID)
	assert.Equal(t, []int{22, 80}, stored.OpenPorts)

	select {
	case ev := <-events:
		assert.Equal(t, EventDeviceDiscovered, ev.Type)
	default:
		t.Fatal("expected device.discovered event")
	}
}

func TestIngestUpdatesIdentityOnly(t *testing.T) {
	svc, store, _, _ := newTestService(nil)
	ctx := context.Background()

	require.NoError(t, store.CreateDevice(ctx, &domain.Device{
		ID:         "d1",
		Address:    "10.0.0.5",
		Hostname:   "old",
		Vendor:     "Acme",
		Status:     domain.DeviceStatusOffline,
		DeviceType: domain.DeviceTypeRouter,
		Metrics:    domain.Metrics{ConsecutiveFailures: 4},
	}))

	device, err := svc.Ingest(ctx, &domain.DiscoveryResult{
		Address:    "10.0.0.5",
		Reachable:  true,
		Hostname:   "core-sw",
		Vendor:     "Unknown",
		DeviceType: domain.DeviceTypeUnknown,
		SNMP:       &domain.SNMPData{SysDescr: "Cisco IOS Software\nVersion 15"},
	})
	require.NoError(t, err)
	assert.Equal(t, "d1", device.ID)

	stored, err := store.GetDevice(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "core-sw", stored.Hostname)
	assert.Equal(t, "Acme", stored.Vendor)
	assert.Equal(t, "Cisco IOS Software", stored.Model)
	assert.Equal(t, domain.DeviceTypeRouter, stored.DeviceType)
	assert.Equal(t, domain.DeviceStatusOffline, stored.Status)
	assert.Equal(t, 4, stored.Metrics.ConsecutiveFailures)
}

func TestDiscoverUnreachableIsNotStored(t *testing.T) {
	d := &stubDiscoverer{err: &domain.UnreachableError{Address: "10.0.0.9", Methods: domain.DefaultMethods}}
	svc, store, _, _ := newTestService(d)

	_, _, err := svc.Discover(context.Background(), "10.0.0.9", domain.Credentials{}, nil)
	require.ErrorIs(t, err, domain.ErrUnreachable)

	devices, err := store.ListDevices(context.Background(), domain.DeviceFilter{})
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestDiscoverStoresResult(t *testing.T) {
	d := &stubDiscoverer{result: &domain.DiscoveryResult{
		Address:    "10.0.0.7",
		Reachable:  true,
		DeviceType: domain.DeviceTypeSwitch,
		OpenPorts:  []int{161},
	}}
	svc, _, _, _ := newTestService(d)

	result, device, err := svc.Discover(context.Background(), "10.0.0.7", domain.Credentials{}, nil)
	require.NoError(t, err)
	assert.Equal(t, d.result, result)
	assert.Equal(t, domain.DeviceTypeSwitch, device.DeviceType)

	got, err := svc.GetDevice(context.Background(), "10.0.0.7")
	require.NoError(t, err)
	assert.Equal(t, device.ID, got.ID)
}

func TestEventBusSkipsSlowSubscriber(t *testing.T) {
	bus := NewEventBus()
	slow := make(chan Event)
	fast := make(chan Event, 1)
	bus.Subscribe(slow)
	bus.Subscribe(fast)

	bus.PublishDiscoveryEvent("scan.started", map[string]string{"target": "10.0.0.0/24"})

	ev := <-fast
	assert.Equal(t, EventScanStarted, ev.Type)

	bus.Unsubscribe(fast)
	bus.Publish(Event{Type: EventScanCompleted})
	assert.Len(t, fast, 0)
}

func TestNewAlertEventPayload(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	alert := domain.Alert{
		DeviceID:  "d1",
		Type:      domain.AlertHighResponseTime,
		Severity:  domain.SeverityWarning,
		Message:   "slow",
		Value:     1500,
		Threshold: 1000,
		Timestamp: ts,
	}

	ev := NewAlertEvent(alert, &domain.Device{ID: "d1", Address: "10.0.0.5", Hostname: "nas"})
	p, ok := ev.Payload.(NewAlertPayload)
	require.True(t, ok)
	assert.Equal(t, EventNewAlert, ev.Type)
	assert.Equal(t, "nas", p.DeviceName)
	assert.Equal(t, "10.0.0.5", p.DeviceIP)
	assert.Equal(t, 1500.0, p.Value)

	sys := NewAlertEvent(domain.Alert{DeviceID: domain.SystemDeviceID}, nil)
	assert.Equal(t, "System", sys.Payload.(NewAlertPayload).DeviceName)
}

func TestAcknowledgeAlerts(t *testing.T) {
	svc, store, _, clk := newTestService(nil)
	ctx := context.Background()

	require.NoError(t, store.CreateDevice(ctx, &domain.Device{ID: "d1", Address: "10.0.0.5"}))
	require.NoError(t, store.AppendAlerts(ctx, "d1", []domain.Alert{
		{ID: "a1", DeviceID: "d1", Type: domain.AlertHighResponseTime},
		{ID: "a2", DeviceID: "d1", Type: domain.AlertDeviceUnreachable},
	}))

	n, err := svc.AcknowledgeAlerts(ctx, "10.0.0.5", []string{"a2"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	alerts, err := store.ListAlerts(ctx, "d1")
	require.NoError(t, err)
	assert.False(t, alerts[0].Acknowledged)
	assert.True(t, alerts[1].Acknowledged)
	assert.Equal(t, clk.Now(), *alerts[1].ResolvedAt)

	n, err = svc.AcknowledgeAlerts(ctx, "10.0.0.5", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = svc.AcknowledgeAlerts(ctx, "10.9.9.9", nil)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestIngestModelKeepsWholeRunes(t *testing.T) {
	svc, store, _, _ := newTestService(nil)

	// 127 ASCII bytes put the cut inside a three byte rune
	descr := strings.Repeat("a", 127) + strings.Repeat("交換機", 20) + "\nsecond line"
	result := &domain.DiscoveryResult{
		Address:   "10.0.0.7",
		Reachable: true,
		SNMP:      &domain.SNMPData{SysDescr: descr},
	}

	_, err := svc.Ingest(context.Background(), result)
	require.NoError(t, err)

	stored, err := store.FindDevice(context.Background(), "10.0.0.7")
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(stored.Model))
	assert.Equal(t, maxModelRunes, utf8.RuneCountInString(stored.Model))
	assert.True(t, strings.HasSuffix(stored.Model, "a交"))
}
