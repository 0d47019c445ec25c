package repository

import (
	"context"
	"errors"
	"time"

	"netsentry/internal/domain"
)

// ErrNotFound is returned when a device does not exist
var ErrNotFound = errors.New("not found")

// Store defines device and alert persistence
type Store interface {
	// Read operations
	FindDevice(ctx context.Context, address string) (*domain.Device, error)
	GetDevice(ctx context.Context, id string) (*domain.Device, error)
	ListDevices(ctx context.Context, filter domain.DeviceFilter) ([]*domain.Device, error)
	ListAlerts(ctx context.Context, deviceID string) ([]domain.Alert, error)

	// Write operations
	CreateDevice(ctx context.Context, device *domain.Device) error
	UpdateDevice(ctx context.Context, id string, patch domain.DevicePatch) error
	AppendAlerts(ctx context.Context, deviceID string, alerts []domain.Alert) error
	// AcknowledgeAlerts marks every unacknowledged alert of deviceID that
	// matches as acknowledged and resolved at at, returning the count.
	AcknowledgeAlerts(ctx context.Context, deviceID string, matcher domain.AlertMatcher, at time.Time) (int, error)

	// WithTx runs fn against a Store whose writes commit together or not at all
	WithTx(ctx context.Context, fn func(Store) error) error

	// Close releases resources
	Close() error
}
