package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"netsentry/internal/clock"
	"netsentry/internal/coordinator"
	"netsentry/internal/logger"
)

// DefaultIntervalMinutes is used when Start is given a non-positive interval
const DefaultIntervalMinutes = 5

// ErrTickInProgress is returned by TriggerChecks while a tick is running
var ErrTickInProgress = errors.New("monitoring tick already in progress")

// Status reports scheduler state
type Status struct {
	Running         bool       `json:"running"`
	UptimeSeconds   float64    `json:"uptime_seconds"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	LastRunAt       *time.Time `json:"last_run_at,omitempty"`
	IntervalMinutes int        `json:"interval_minutes"`
	Ticks           int64      `json:"ticks"`
}

// TickSummary reports what one tick did
type TickSummary struct {
	At           time.Time     `json:"at"`
	SystemAlerts int           `json:"system_alerts"`
	SweepSkipped bool          `json:"sweep_skipped"`
	SkipReason   string        `json:"skip_reason,omitempty"`
	Sweep        *SweepSummary `json:"sweep,omitempty"`
}

// SchedulerConfig wires a Scheduler
type SchedulerConfig struct {
	Health      *HealthMonitor
	System      *SystemChecker
	Coordinator *coordinator.Coordinator
	Clock       clock.Clock
	// SweepConcurrency bounds parallel device checks; 0 is unbounded
	SweepConcurrency int
	Logger           logger.Logger
}

// Scheduler runs monitoring ticks on a fixed interval
type Scheduler struct {
	health      *HealthMonitor
	system      *SystemChecker
	coord       *coordinator.Coordinator
	clock       clock.Clock
	concurrency int
	logger      logger.Logger

	mu              sync.Mutex
	running         bool
	intervalMinutes int
	startedAt       *time.Time
	lastRunAt       *time.Time
	stop            chan struct{}
	reset           chan time.Duration

	ticking atomic.Bool
	ticks   atomic.Int64
	wg      sync.WaitGroup
}

// NewScheduler creates a stopped Scheduler
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewTestLogger()
	}

	return &Scheduler{
		health:          cfg.Health,
		system:          cfg.System,
		coord:           cfg.Coordinator,
		clock:           cfg.Clock,
		concurrency:     cfg.SweepConcurrency,
		logger:          cfg.Logger.WithComponent("scheduler"),
		intervalMinutes: DefaultIntervalMinutes,
	}
}

// Start begins ticking every intervalMinutes, running the first tick
// immediately. Starting a running scheduler does nothing. Ticks outlive
// ctx cancellation; use Stop to end them.
func (s *Scheduler) Start(ctx context.Context, intervalMinutes int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Info().Int("interval_minutes", s.intervalMinutes).Msg("Monitoring already running")
		return
	}

	if intervalMinutes <= 0 {
		intervalMinutes = DefaultIntervalMinutes
	}

	now := s.clock.Now()
	s.running = true
	s.intervalMinutes = intervalMinutes
	s.startedAt = &now
	s.stop = make(chan struct{})
	s.reset = make(chan time.Duration, 1)

	ticker := s.clock.NewTicker(minutes(intervalMinutes))

	s.wg.Add(1)
	go s.loop(context.WithoutCancel(ctx), ticker, s.stop, s.reset)

	s.logger.Info().Int("interval_minutes", intervalMinutes).Msg("Monitoring started")
}

// Stop halts the timer. An in-flight tick is left to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	close(s.stop)
	s.running = false
	s.startedAt = nil

	s.logger.Info().Msg("Monitoring stopped")
}

// SetInterval changes the tick interval, restarting the timer if running
func (s *Scheduler) SetInterval(intervalMinutes int) {
	if intervalMinutes <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.intervalMinutes == intervalMinutes {
		return
	}
	s.intervalMinutes = intervalMinutes

	if s.running {
		// drop a pending reset that was never picked up
		select {
		case <-s.reset:
		default:
		}
		s.reset <- minutes(intervalMinutes)
	}

	s.logger.Info().Int("interval_minutes", intervalMinutes).Msg("Monitoring interval changed")
}

// Wait blocks until the timer goroutine and in-flight ticks have finished
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Status returns a snapshot of scheduler state
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Running:         s.running,
		IntervalMinutes: s.intervalMinutes,
		Ticks:           s.ticks.Load(),
	}
	if s.startedAt != nil {
		started := *s.startedAt
		st.StartedAt = &started
		st.UptimeSeconds = s.clock.Now().Sub(started).Seconds()
	}
	if s.lastRunAt != nil {
		last := *s.lastRunAt
		st.LastRunAt = &last
	}

	return st
}

// TriggerChecks runs one tick synchronously. The tick is detached from ctx
// cancellation so results are persisted even if the caller goes away.
func (s *Scheduler) TriggerChecks(ctx context.Context) (TickSummary, error) {
	return s.guardedTick(context.WithoutCancel(ctx))
}

func (s *Scheduler) loop(ctx context.Context, ticker clock.Ticker, stop <-chan struct{}, reset <-chan time.Duration) {
	defer s.wg.Done()
	defer func() { ticker.Stop() }()

	s.spawnTick(ctx)

	for {
		select {
		case <-stop:
			return
		case d := <-reset:
			ticker.Stop()
			ticker = s.clock.NewTicker(d)
		case <-ticker.Chan():
			s.spawnTick(ctx)
		}
	}
}

func (s *Scheduler) spawnTick(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.guardedTick(ctx); errors.Is(err, ErrTickInProgress) {
			s.logger.Warn().Msg("Previous tick still running, skipping")
		}
	}()
}

func (s *Scheduler) guardedTick(ctx context.Context) (TickSummary, error) {
	if !s.ticking.CompareAndSwap(false, true) {
		return TickSummary{}, ErrTickInProgress
	}

	summary := s.runTick(ctx)

	s.mu.Lock()
	at := summary.At
	s.lastRunAt = &at
	s.mu.Unlock()

	s.ticking.Store(false)
	s.ticks.Add(1)

	return summary, nil
}

func (s *Scheduler) runTick(ctx context.Context) TickSummary {
	summary := TickSummary{At: s.clock.Now()}

	if s.system != nil {
		alerts, err := s.system.Check(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("System check failed")
		}
		summary.SystemAlerts = len(alerts)
	}

	if s.coord != nil {
		state, err := s.coord.TryRead(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Scan state unreadable, skipping device sweep")
			summary.SweepSkipped = true
			summary.SkipReason = "scan state unreadable"
			return summary
		}
		if state.IsRunning {
			s.logger.Info().Str("owner", state.Owner).Msg("Bulk scan in progress, skipping device sweep")
			summary.SweepSkipped = true
			summary.SkipReason = "bulk scan in progress"
			return summary
		}
	}

	sweep, err := s.health.Sweep(ctx, s.concurrency)
	if err != nil {
		s.logger.Error().Err(err).Msg("Device sweep failed")
		return summary
	}
	summary.Sweep = &sweep

	return summary
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
