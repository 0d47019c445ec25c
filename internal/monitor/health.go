package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"netsentry/internal/clock"
	"netsentry/internal/domain"
	"netsentry/internal/logger"
	"netsentry/internal/policy"
	"netsentry/internal/repository"
	"netsentry/internal/service"
)

const (
	DefaultFailureThreshold = 3
	DefaultHighResponseMs   = 1000.0
)

// HealthConfig holds per-device check thresholds
type HealthConfig struct {
	// FailureThreshold is the number of consecutive failed probes before
	// an online device is marked offline
	FailureThreshold int
	// HighResponseMs raises a warning when a probe is slower than this
	HighResponseMs float64
}

// DefaultHealthConfig returns the standard thresholds
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		FailureThreshold: DefaultFailureThreshold,
		HighResponseMs:   DefaultHighResponseMs,
	}
}

// Prober runs a single reachability probe
type Prober interface {
	Probe(ctx context.Context, address string) (domain.ProbeResult, error)
}

// Publisher broadcasts monitor events
type Publisher interface {
	Publish(event service.Event)
}

// Evaluation is the outcome of folding one probe into a device
type Evaluation struct {
	At     time.Time
	Alive  bool
	Patch  domain.DevicePatch
	Status domain.DeviceStatus
	// StatusChanged is set on an online/offline flip, not on first evaluation
	StatusChanged bool
	NewAlerts     []domain.Alert
	// ResolveUnreachable acknowledges open Device Unreachable alerts
	ResolveUnreachable bool
	AutoAckIDs         []string
}

// HealthMonitor evaluates and persists device health
type HealthMonitor struct {
	store     repository.Store
	prober    Prober
	policy    *policy.Policy
	publisher Publisher
	clock     clock.Clock
	config    HealthConfig
	logger    logger.Logger
}

// NewHealthMonitor creates a HealthMonitor. Zero thresholds take defaults.
func NewHealthMonitor(store repository.Store, prober Prober, pol *policy.Policy, publisher Publisher, clk clock.Clock, config HealthConfig, log logger.Logger) *HealthMonitor {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultFailureThreshold
	}
	if config.HighResponseMs <= 0 {
		config.HighResponseMs = DefaultHighResponseMs
	}
	if pol == nil {
		pol = policy.New(policy.DefaultConfig())
	}

	return &HealthMonitor{
		store:     store,
		prober:    prober,
		policy:    pol,
		publisher: publisher,
		clock:     clk,
		config:    config,
		logger:    log.WithComponent("health"),
	}
}

// Evaluate folds probe into device without side effects. device.Alerts is
// the existing alert log used for deduplication and auto-acknowledgement.
func (m *HealthMonitor) Evaluate(device *domain.Device, probe domain.ProbeResult, probeErr error) Evaluation {
	now := m.clock.Now()
	alive := probeErr == nil && probe.Alive

	eval := Evaluation{
		At:     now,
		Alive:  alive,
		Status: device.Status,
	}
	metrics := device.Metrics

	if !alive {
		metrics.ConsecutiveFailures++

		if metrics.ConsecutiveFailures >= m.config.FailureThreshold && device.Status == domain.DeviceStatusOnline {
			eval.Status = domain.DeviceStatusOffline
			eval.StatusChanged = true
			eval.NewAlerts = append(eval.NewAlerts, m.newAlert(device, now,
				domain.AlertDeviceUnreachable,
				domain.SeverityCritical,
				fmt.Sprintf("%s (%s) is unreachable after %d consecutive failed checks",
					device.Name(), device.Address, metrics.ConsecutiveFailures),
				float64(metrics.ConsecutiveFailures),
				float64(m.config.FailureThreshold),
			))
		}
	} else {
		metrics.ConsecutiveFailures = 0
		seen := now
		metrics.LastSeen = &seen
		metrics.ResponseTimeMs = probe.ResponseTimeMs

		switch device.Status {
		case domain.DeviceStatusOffline:
			eval.Status = domain.DeviceStatusOnline
			eval.StatusChanged = true
			eval.ResolveUnreachable = true

			if !m.policy.ShouldSuppress(device.Alerts, domain.AlertDeviceBackOnline, now) {
				eval.NewAlerts = append(eval.NewAlerts, m.newAlert(device, now,
					domain.AlertDeviceBackOnline,
					domain.SeverityInfo,
					fmt.Sprintf("%s (%s) is back online", device.Name(), device.Address),
					0, 0,
				))
			}
		case domain.DeviceStatusOnline:
		default:
			eval.Status = domain.DeviceStatusOnline
		}

		if rt := probe.ResponseTimeMs; rt != nil && *rt > m.config.HighResponseMs {
			existing := append(append([]domain.Alert(nil), device.Alerts...), eval.NewAlerts...)
			if !m.policy.ShouldSuppress(existing, domain.AlertHighResponseTime, now) {
				eval.NewAlerts = append(eval.NewAlerts, m.newAlert(device, now,
					domain.AlertHighResponseTime,
					domain.SeverityWarning,
					fmt.Sprintf("%s (%s) responded in %.0fms", device.Name(), device.Address, *rt),
					*rt,
					m.config.HighResponseMs,
				))
			}
		}
	}

	eval.AutoAckIDs = m.policy.AutoAcknowledgeIDs(device.Alerts, now)

	eval.Patch.Metrics = &metrics
	if eval.Status != device.Status {
		status := eval.Status
		eval.Patch.Status = &status
	}

	return eval
}

// Check probes device, persists the evaluation in one transaction and
// broadcasts the resulting events.
func (m *HealthMonitor) Check(ctx context.Context, device *domain.Device) (Evaluation, error) {
	probe, probeErr := m.prober.Probe(ctx, device.Address)
	if probeErr != nil {
		m.logger.Debug().Err(probeErr).Str("address", device.Address).Msg("Probe failed")
	}

	eval := m.Evaluate(device, probe, probeErr)

	err := m.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.UpdateDevice(ctx, device.ID, eval.Patch); err != nil {
			return fmt.Errorf("update device: %w", err)
		}
		if eval.ResolveUnreachable {
			matcher := domain.AlertMatcher{Type: domain.AlertDeviceUnreachable}
			if _, err := tx.AcknowledgeAlerts(ctx, device.ID, matcher, eval.At); err != nil {
				return fmt.Errorf("resolve unreachable alerts: %w", err)
			}
		}
		if len(eval.AutoAckIDs) > 0 {
			matcher := domain.AlertMatcher{IDs: eval.AutoAckIDs}
			if _, err := tx.AcknowledgeAlerts(ctx, device.ID, matcher, eval.At); err != nil {
				return fmt.Errorf("auto-acknowledge alerts: %w", err)
			}
		}
		if len(eval.NewAlerts) > 0 {
			if err := tx.AppendAlerts(ctx, device.ID, eval.NewAlerts); err != nil {
				return fmt.Errorf("append alerts: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return eval, fmt.Errorf("persist health of %s: %w", device.Address, err)
	}

	eval.Patch.Apply(device)
	m.broadcast(device, eval)

	return eval, nil
}

func (m *HealthMonitor) broadcast(device *domain.Device, eval Evaluation) {
	if m.publisher == nil {
		return
	}

	for _, alert := range eval.NewAlerts {
		m.publisher.Publish(service.NewAlertEvent(alert, device))
	}

	if eval.StatusChanged {
		m.logger.Info().
			Str("address", device.Address).
			Str("status", string(eval.Status)).
			Msg("Device status changed")

		m.publisher.Publish(service.Event{
			Type: service.EventDeviceStatusChanged,
			Payload: service.StatusChangedPayload{
				DeviceID:       device.ID,
				Address:        device.Address,
				Status:         eval.Status,
				ResponseTimeMs: device.Metrics.ResponseTimeMs,
				Timestamp:      eval.At,
			},
		})
	}
}

func (m *HealthMonitor) newAlert(device *domain.Device, at time.Time, alertType string, severity domain.Severity, message string, value, threshold float64) domain.Alert {
	return domain.Alert{
		ID:        uuid.NewString(),
		DeviceID:  device.ID,
		Type:      alertType,
		Severity:  severity,
		Message:   message,
		Value:     value,
		Threshold: threshold,
		Timestamp: at,
	}
}
