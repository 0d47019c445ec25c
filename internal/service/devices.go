package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"netsentry/internal/clock"
	"netsentry/internal/domain"
	"netsentry/internal/logger"
	"netsentry/internal/repository"
)

// Discoverer runs a discovery pass for one address
type Discoverer interface {
	Discover(ctx context.Context, address string, creds domain.Credentials, methods []domain.ProbeMethod) (*domain.DiscoveryResult, error)
}

// DeviceService provides business logic for devices
type DeviceService struct {
	store      repository.Store
	discoverer Discoverer
	eventBus   *EventBus
	clock      clock.Clock
	logger     logger.Logger
}

// NewDeviceService creates a new device service
func NewDeviceService(store repository.Store, discoverer Discoverer, eventBus *EventBus, clk clock.Clock, log logger.Logger) *DeviceService {
	return &DeviceService{
		store:      store,
		discoverer: discoverer,
		eventBus:   eventBus,
		clock:      clk,
		logger:     log.WithComponent("devices"),
	}
}

// ListDevices returns devices matching filter
func (s *DeviceService) ListDevices(ctx context.Context, filter domain.DeviceFilter) ([]*domain.Device, error) {
	return s.store.ListDevices(ctx, filter)
}

// GetDevice returns the device at address
func (s *DeviceService) GetDevice(ctx context.Context, address string) (*domain.Device, error) {
	return s.store.FindDevice(ctx, address)
}

// AcknowledgeAlerts acknowledges the device's open alerts. Empty ids
// acknowledges all of them.
func (s *DeviceService) AcknowledgeAlerts(ctx context.Context, address string, ids []string) (int, error) {
	device, err := s.store.FindDevice(ctx, address)
	if err != nil {
		return 0, err
	}

	n, err := s.store.AcknowledgeAlerts(ctx, device.ID, domain.AlertMatcher{IDs: ids}, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("acknowledge alerts for %s: %w", address, err)
	}

	s.logger.Info().Str("address", address).Int("count", n).Msg("Alerts acknowledged")
	return n, nil
}

// SystemAlerts returns the host resource alert log
func (s *DeviceService) SystemAlerts(ctx context.Context) ([]domain.Alert, error) {
	return s.store.ListAlerts(ctx, domain.SystemDeviceID)
}

// Discover probes address and stores the result. An unreachable address
// is returned as the domain error, not stored.
func (s *DeviceService) Discover(ctx context.Context, address string, creds domain.Credentials, methods []domain.ProbeMethod) (*domain.DiscoveryResult, *domain.Device, error) {
	result, err := s.discoverer.Discover(ctx, address, creds, methods)
	if err != nil {
		return nil, nil, err
	}

	device, err := s.Ingest(ctx, result)
	if err != nil {
		return result, nil, err
	}

	return result, device, nil
}

// Ingest folds result into the device at result.Address, creating it if needed
func (s *DeviceService) Ingest(ctx context.Context, result *domain.DiscoveryResult) (*domain.Device, error) {
	existing, err := s.store.FindDevice(ctx, result.Address)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return s.create(ctx, result)
	case err != nil:
		return nil, fmt.Errorf("find device %s: %w", result.Address, err)
	}

	patch := patchFromResult(result)
	if !patch.IsEmpty() {
		if err := s.store.UpdateDevice(ctx, existing.ID, patch); err != nil {
			return nil, fmt.Errorf("update device %s: %w", result.Address, err)
		}
		patch.Apply(existing)
	}

	s.logger.Debug().Str("address", result.Address).Msg("Updated device from discovery")
	return existing, nil
}

func (s *DeviceService) create(ctx context.Context, result *domain.DiscoveryResult) (*domain.Device, error) {
	now := s.clock.Now()

	device := &domain.Device{
		ID:         uuid.NewString(),
		Address:    result.Address,
		Hostname:   result.Hostname,
		Vendor:     result.Vendor,
		Model:      modelFromResult(result),
		MACAddress: result.MACAddress,
		DeviceType: result.DeviceType,
		Status:     domain.DeviceStatusOnline,
		Metrics: domain.Metrics{
			LastSeen:       &now,
			ResponseTimeMs: result.ResponseTimeMs,
		},
		OpenPorts: result.OpenPorts,
		Services:  result.Services,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateDevice(ctx, device); err != nil {
		return nil, fmt.Errorf("create device %s: %w", result.Address, err)
	}

	s.eventBus.Publish(Event{
		Type: EventDeviceDiscovered,
		Payload: map[string]string{
			"deviceId":   device.ID,
			"address":    device.Address,
			"deviceType": string(device.DeviceType),
		},
	})

	s.logger.Info().
		Str("address", device.Address).
		Str("device_type", string(device.DeviceType)).
		Msg("New device discovered")

	return device, nil
}

// patchFromResult updates identity fields only; status and metrics belong
// to the health monitor.
func patchFromResult(r *domain.DiscoveryResult) domain.DevicePatch {
	var p domain.DevicePatch

	if r.Hostname != "" {
		p.Hostname = &r.Hostname
	}
	if r.MACAddress != "" {
		p.MACAddress = &r.MACAddress
	}
	if r.Vendor != "" && r.Vendor != "Unknown" {
		p.Vendor = &r.Vendor
	}
	if model := modelFromResult(r); model != "" {
		p.Model = &model
	}
	if r.DeviceType != "" && r.DeviceType != domain.DeviceTypeUnknown {
		p.DeviceType = &r.DeviceType
	}
	if len(r.OpenPorts) > 0 {
		p.OpenPorts = r.OpenPorts
		p.Services = r.Services
	}

	return p
}

const maxModelRunes = 128

// modelFromResult takes the first line of sysDescr, capped at maxModelRunes
func modelFromResult(r *domain.DiscoveryResult) string {
	if r.SNMP == nil || r.SNMP.SysDescr == "" {
		return ""
	}
	line, _, _ := strings.Cut(r.SNMP.SysDescr, "\n")
	line = strings.TrimSpace(line)
	if runes := []rune(line); len(runes) > maxModelRunes {
		line = string(runes[:maxModelRunes])
	}
	return line
}
