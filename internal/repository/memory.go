package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"netsentry/internal/domain"
)

// MemoryStore is a map-backed Store. WithTx works on a copy and writes back
// the records it touched on success.
type MemoryStore struct {
	mu      sync.Mutex
	devices map[string]*domain.Device
	alerts  map[string][]domain.Alert
	dirty   map[string]bool
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		devices: make(map[string]*domain.Device),
		alerts:  make(map[string][]domain.Alert),
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) FindDevice(_ context.Context, address string) (*domain.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range m.devices {
		if d.Address == address {
			return m.snapshot(d), nil
		}
	}
	return nil, fmt.Errorf("device %s: %w", address, ErrNotFound)
}

func (m *MemoryStore) GetDevice(_ context.Context, id string) (*domain.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.devices[id]
	if !ok {
		return nil, fmt.Errorf("device %s: %w", id, ErrNotFound)
	}
	return m.snapshot(d), nil
}

func (m *MemoryStore) ListDevices(_ context.Context, filter domain.DeviceFilter) ([]*domain.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.Device
	for _, d := range m.devices {
		if filter.Matches(d) {
			out = append(out, m.snapshot(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })

	return out, nil
}

func (m *MemoryStore) ListAlerts(_ context.Context, deviceID string) ([]domain.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]domain.Alert(nil), m.alerts[deviceID]...), nil
}

func (m *MemoryStore) CreateDevice(_ context.Context, device *domain.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range m.devices {
		if d.Address == device.Address {
			return fmt.Errorf("device %s already exists", device.Address)
		}
	}

	cp := *device
	cp.Alerts = nil
	m.devices[device.ID] = &cp
	m.touch(device.ID)
	if len(device.Alerts) > 0 {
		m.alerts[device.ID] = append(m.alerts[device.ID], device.Alerts...)
	}

	return nil
}

func (m *MemoryStore) UpdateDevice(_ context.Context, id string, patch domain.DevicePatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.devices[id]
	if !ok {
		return fmt.Errorf("device %s: %w", id, ErrNotFound)
	}

	patch.Apply(d)
	d.UpdatedAt = time.Now().UTC()
	m.touch(id)

	return nil
}

func (m *MemoryStore) AppendAlerts(_ context.Context, deviceID string, alerts []domain.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.alerts[deviceID] = append(m.alerts[deviceID], alerts...)
	m.touch(deviceID)

	return nil
}

func (m *MemoryStore) AcknowledgeAlerts(_ context.Context, deviceID string, matcher domain.AlertMatcher, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	list := m.alerts[deviceID]
	for i := range list {
		if matcher.Matches(list[i]) {
			resolved := at
			list[i].Acknowledged = true
			list[i].ResolvedAt = &resolved
			n++
		}
	}
	if n > 0 {
		m.touch(deviceID)
	}

	return n, nil
}

// WithTx runs fn against a private copy and commits it if fn succeeds
func (m *MemoryStore) WithTx(_ context.Context, fn func(Store) error) error {
	m.mu.Lock()
	tx := m.clone()
	m.mu.Unlock()

	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Last write wins per device
	for id := range tx.dirty {
		if d, ok := tx.devices[id]; ok {
			m.devices[id] = d
		}
		if a, ok := tx.alerts[id]; ok {
			m.alerts[id] = a
		}
	}

	return nil
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) snapshot(d *domain.Device) *domain.Device {
	cp := *d
	cp.OpenPorts = append([]int(nil), d.OpenPorts...)
	cp.Services = append([]string(nil), d.Services...)
	cp.Alerts = append([]domain.Alert(nil), m.alerts[d.ID]...)
	return &cp
}

func (m *MemoryStore) touch(id string) {
	if m.dirty != nil {
		m.dirty[id] = true
	}
}

func (m *MemoryStore) clone() *MemoryStore {
	c := NewMemoryStore()
	c.dirty = make(map[string]bool)
	for id, d := range m.devices {
		cp := *d
		c.devices[id] = &cp
	}
	for id, a := range m.alerts {
		c.alerts[id] = append([]domain.Alert(nil), a...)
	}
	return c
}
