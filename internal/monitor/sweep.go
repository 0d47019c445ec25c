package monitor

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"netsentry/internal/domain"
)

// SweepSummary counts the outcome of one device sweep
type SweepSummary struct {
	Devices       int `json:"devices"`
	Checked       int `json:"checked"`
	Failed        int `json:"failed"`
	StatusChanges int `json:"status_changes"`
	Alerts        int `json:"alerts"`
}

// Sweep checks every known device concurrently and waits for all of them.
// concurrency <= 0 leaves the fan-out unbounded. A persistence failure on
// one device is logged and counted; the rest of the sweep continues.
func (m *HealthMonitor) Sweep(ctx context.Context, concurrency int) (SweepSummary, error) {
	devices, err := m.store.ListDevices(ctx, domain.DeviceFilter{})
	if err != nil {
		return SweepSummary{}, fmt.Errorf("list devices: %w", err)
	}

	var checked, failed, changes, alerts atomic.Int32

	var g errgroup.Group
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}

	for _, device := range devices {
		g.Go(func() error {
			eval, err := m.Check(ctx, device)
			if err != nil {
				failed.Add(1)
				m.logger.Error().Err(err).Str("address", device.Address).Msg("Health check failed")
				return nil
			}

			checked.Add(1)
			alerts.Add(int32(len(eval.NewAlerts)))
			if eval.StatusChanged {
				changes.Add(1)
			}
			return nil
		})
	}

	_ = g.Wait()

	summary := SweepSummary{
		Devices:       len(devices),
		Checked:       int(checked.Load()),
		Failed:        int(failed.Load()),
		StatusChanges: int(changes.Load()),
		Alerts:        int(alerts.Load()),
	}

	m.logger.Debug().
		Int("devices", summary.Devices).
		Int("failed", summary.Failed).
		Int("status_changes", summary.StatusChanges).
		Msg("Device sweep complete")

	return summary, nil
}
