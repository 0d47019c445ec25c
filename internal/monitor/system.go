package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"netsentry/internal/clock"
	"netsentry/internal/domain"
	"netsentry/internal/logger"
	"netsentry/internal/policy"
	"netsentry/internal/repository"
	"netsentry/internal/service"
)

// SystemStats reads host resource usage
type SystemStats interface {
	MemoryPercent(ctx context.Context) (float64, error)
	CPUPercent(ctx context.Context) (float64, error)
	Uptime(ctx context.Context) (time.Duration, error)
}

// HostStats reads resource usage of the local host through gopsutil
type HostStats struct {
	sampleInterval time.Duration
}

// NewHostStats creates HostStats sampling CPU over sampleInterval
func NewHostStats(sampleInterval time.Duration) *HostStats {
	if sampleInterval <= 0 {
		sampleInterval = 500 * time.Millisecond
	}
	return &HostStats{sampleInterval: sampleInterval}
}

func (h *HostStats) MemoryPercent(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent, nil
}

func (h *HostStats) CPUPercent(ctx context.Context) (float64, error) {
	percent, err := cpu.PercentWithContext(ctx, h.sampleInterval, false)
	if err != nil {
		return 0, err
	}
	if len(percent) == 0 {
		return 0, fmt.Errorf("no cpu samples")
	}
	return percent[0], nil
}

func (h *HostStats) Uptime(ctx context.Context) (time.Duration, error) {
	secs, err := host.UptimeWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs) * time.Second, nil
}

// SystemConfig holds host resource thresholds
type SystemConfig struct {
	MemoryPercent float64
	CPUPercent    float64
	// MinUptime raises System Restarted when the host has been up for less
	MinUptime time.Duration
}

// DefaultSystemConfig returns the standard host thresholds
func DefaultSystemConfig() SystemConfig {
	return SystemConfig{
		MemoryPercent: 90,
		CPUPercent:    90,
		MinUptime:     10 * time.Minute,
	}
}

// SystemChecker raises alerts against the reserved system device
type SystemChecker struct {
	store     repository.Store
	stats     SystemStats
	policy    *policy.Policy
	publisher Publisher
	clock     clock.Clock
	config    SystemConfig
	logger    logger.Logger
}

// NewSystemChecker creates a SystemChecker. Zero thresholds take defaults.
func NewSystemChecker(store repository.Store, stats SystemStats, pol *policy.Policy, publisher Publisher, clk clock.Clock, config SystemConfig, log logger.Logger) *SystemChecker {
	defaults := DefaultSystemConfig()
	if config.MemoryPercent <= 0 {
		config.MemoryPercent = defaults.MemoryPercent
	}
	if config.CPUPercent <= 0 {
		config.CPUPercent = defaults.CPUPercent
	}
	if config.MinUptime <= 0 {
		config.MinUptime = defaults.MinUptime
	}
	if pol == nil {
		pol = policy.New(policy.DefaultConfig())
	}

	return &SystemChecker{
		store:     store,
		stats:     stats,
		policy:    pol,
		publisher: publisher,
		clock:     clk,
		config:    config,
		logger:    log.WithComponent("system"),
	}
}

// Check samples host resources and records any new system alerts. A stat
// that cannot be read is skipped.
func (c *SystemChecker) Check(ctx context.Context) ([]domain.Alert, error) {
	sample := c.sample(ctx)
	now := c.clock.Now()
	var raised []domain.Alert

	err := c.store.WithTx(ctx, func(tx repository.Store) error {
		existing, err := tx.ListAlerts(ctx, domain.SystemDeviceID)
		if err != nil {
			return fmt.Errorf("list system alerts: %w", err)
		}

		if ids := c.policy.AutoAcknowledgeIDs(existing, now); len(ids) > 0 {
			matcher := domain.AlertMatcher{IDs: ids}
			if _, err := tx.AcknowledgeAlerts(ctx, domain.SystemDeviceID, matcher, now); err != nil {
				return fmt.Errorf("auto-acknowledge system alerts: %w", err)
			}
		}

		raised = c.evaluate(sample, existing, now)
		if len(raised) == 0 {
			return nil
		}
		return tx.AppendAlerts(ctx, domain.SystemDeviceID, raised)
	})
	if err != nil {
		return nil, err
	}

	if c.publisher != nil {
		for _, alert := range raised {
			c.publisher.Publish(service.NewAlertEvent(alert, nil))
		}
	}

	return raised, nil
}

// hostSample holds one reading of each stat; nil means unreadable
type hostSample struct {
	memory *float64
	cpu    *float64
	uptime *time.Duration
}

func (c *SystemChecker) sample(ctx context.Context) hostSample {
	var s hostSample

	if used, err := c.stats.MemoryPercent(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to read memory usage")
	} else {
		s.memory = &used
	}

	if used, err := c.stats.CPUPercent(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to read CPU usage")
	} else {
		s.cpu = &used
	}

	if up, err := c.stats.Uptime(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to read host uptime")
	} else {
		s.uptime = &up
	}

	return s
}

func (c *SystemChecker) evaluate(s hostSample, existing []domain.Alert, now time.Time) []domain.Alert {
	var raised []domain.Alert

	raise := func(alertType string, severity domain.Severity, message string, value, threshold float64) {
		if c.policy.ShouldSuppress(existing, alertType, now) {
			return
		}
		raised = append(raised, domain.Alert{
			ID:        uuid.NewString(),
			DeviceID:  domain.SystemDeviceID,
			Type:      alertType,
			Severity:  severity,
			Message:   message,
			Value:     value,
			Threshold: threshold,
			Timestamp: now,
		})
	}

	if s.memory != nil && *s.memory > c.config.MemoryPercent {
		raise(domain.AlertHighMemoryUsage, domain.SeverityWarning,
			fmt.Sprintf("Memory usage at %.1f%%", *s.memory), *s.memory, c.config.MemoryPercent)
	}

	if s.cpu != nil && *s.cpu > c.config.CPUPercent {
		raise(domain.AlertHighCPUUsage, domain.SeverityWarning,
			fmt.Sprintf("CPU usage at %.1f%%", *s.cpu), *s.cpu, c.config.CPUPercent)
	}

	if s.uptime != nil && *s.uptime < c.config.MinUptime {
		up := *s.uptime
		raise(domain.AlertSystemRestarted, domain.SeverityInfo,
			fmt.Sprintf("Host restarted %s ago", up.Round(time.Second)),
			up.Minutes(), c.config.MinUptime.Minutes())
	}

	return raised
}
