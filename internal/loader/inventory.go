// Package loader reads the optional device inventory file used to seed the
// device store with hosts that should be monitored before any discovery.
package loader

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sort"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"netsentry/internal/clock"
	"netsentry/internal/domain"
	"netsentry/internal/repository"
)

// InventoryYAML represents the inventory file structure
type InventoryYAML struct {
	Version string                 `yaml:"version"`
	Devices map[string]*DeviceYAML `yaml:"devices"`
}

// DeviceYAML represents a device entry, keyed by display name
type DeviceYAML struct {
	IP         string `yaml:"ip"`
	Type       string `yaml:"type,omitempty"`
	Vendor     string `yaml:"vendor,omitempty"`
	Model      string `yaml:"model,omitempty"`
	MACAddress string `yaml:"mac_address,omitempty"`
}

// LoadInventory loads devices from a YAML file
func LoadInventory(path string) ([]*domain.Device, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return ParseInventory(data)
}

// ParseInventory parses devices from YAML bytes. Devices come back sorted
// by address.
func ParseInventory(data []byte) ([]*domain.Device, error) {
	var y InventoryYAML
	if err := yaml.Unmarshal(data, &y); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	seen := make(map[string]string)
	var devices []*domain.Device

	for name, d := range y.Devices {
		if d == nil || net.ParseIP(d.IP) == nil {
			return nil, fmt.Errorf("device %q: invalid ip %q", name, ipOf(d))
		}
		if other, dup := seen[d.IP]; dup {
			return nil, fmt.Errorf("device %q: ip %s already used by %q", name, d.IP, other)
		}
		seen[d.IP] = name

		deviceType := domain.DeviceTypeUnknown
		if d.Type != "" {
			deviceType = domain.DeviceType(d.Type)
		}

		devices = append(devices, &domain.Device{
			Address:     d.IP,
			DisplayName: name,
			Vendor:      d.Vendor,
			Model:       d.Model,
			MACAddress:  d.MACAddress,
			DeviceType:  deviceType,
		})
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].Address < devices[j].Address })

	return devices, nil
}

func ipOf(d *DeviceYAML) string {
	if d == nil {
		return ""
	}
	return d.IP
}

// Seed creates inventory devices missing from the store. Existing devices
// only get their display name refreshed. Seeded devices start with no
// status so their first successful check is silent.
func Seed(ctx context.Context, store repository.Store, clk clock.Clock, devices []*domain.Device) (created int, err error) {
	for _, d := range devices {
		existing, err := store.FindDevice(ctx, d.Address)
		switch {
		case err == nil:
			if existing.DisplayName != d.DisplayName {
				name := d.DisplayName
				if err := store.UpdateDevice(ctx, existing.ID, domain.DevicePatch{DisplayName: &name}); err != nil {
					return created, fmt.Errorf("update %s: %w", d.Address, err)
				}
			}
			continue
		case !errors.Is(err, repository.ErrNotFound):
			return created, fmt.Errorf("find %s: %w", d.Address, err)
		}

		now := clk.Now()
		device := *d
		device.ID = uuid.NewString()
		device.CreatedAt = now
		device.UpdatedAt = now

		if err := store.CreateDevice(ctx, &device); err != nil {
			return created, fmt.Errorf("create %s: %w", d.Address, err)
		}
		created++
	}

	return created, nil
}
