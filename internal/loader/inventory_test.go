package loader

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netsentry/internal/clock"
	"netsentry/internal/domain"
	"netsentry/internal/repository"
)

const inventory = `
version: "1"
devices:
  core-switch:
    ip: 10.0.0.2
    type: switch
    vendor: Cisco
  nas:
    ip: 10.0.0.5
`

func TestParseInventory(t *testing.T) {
	devices, err := ParseInventory([]byte(inventory))
	require.NoError(t, err)
	require.Len(t, devices, 2)

	assert.Equal(t, "10.0.0.2", devices[0].Address)
	assert.Equal(t, "core-switch", devices[0].DisplayName)
	assert.Equal(t, domain.DeviceTypeSwitch, devices[0].DeviceType)
	assert.Equal(t, domain.DeviceTypeUnknown, devices[1].DeviceType)
}

func TestParseInventoryRejectsBadEntries(t *testing.T) {
	_, err := ParseInventory([]byte("devices:\n  a:\n    ip: nope\n"))
	assert.ErrorContains(t, err, "invalid ip")

	_, err = ParseInventory([]byte("devices:\n  a:\n    ip: 10.0.0.1\n  b:\n    ip: 10.0.0.1\n"))
	assert.ErrorContains(t, err, "already used")
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	clk := clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))

	require.NoError(t, store.CreateDevice(ctx, &domain.Device{
		ID:          "existing",
		Address:     "10.0.0.5",
		DisplayName: "old-name",
		Status:      domain.DeviceStatusOnline,
	}))

	devices, err := ParseInventory([]byte(inventory))
	require.NoError(t, err)

	created, err := Seed(ctx, store, clk, devices)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	sw, err := store.FindDevice(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.NotEmpty(t, sw.ID)
	assert.Equal(t, domain.DeviceStatus(""), sw.Status)

	nas, err := store.GetDevice(ctx, "existing")
	require.NoError(t, err)
	assert.Equal(t, "nas", nas.DisplayName)
	assert.Equal(t, domain.DeviceStatusOnline, nas.Status)

	// seeding again is a no-op
	created, err = Seed(ctx, store, clk, devices)
	require.NoError(t, err)
	assert.Equal(t, 0, created)
}
