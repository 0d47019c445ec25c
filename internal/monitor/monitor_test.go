package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"netsentry/internal/clock"
	"netsentry/internal/coordinator"
	"netsentry/internal/domain"
	"netsentry/internal/logger"
	"netsentry/internal/policy"
	"netsentry/internal/repository"
	"netsentry/internal/service"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeProber struct {
	mu    sync.Mutex
	alive bool
	rtt   *float64
	err   error
	calls int
}

func (p *fakeProber) set(alive bool, rtt float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alive = alive
	p.rtt = nil
	if alive {
		p.rtt = &rtt
	}
}

func (p *fakeProber) Probe(_ context.Context, _ string) (domain.ProbeResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return domain.ProbeResult{}, p.err
	}
	return domain.ProbeResult{Alive: p.alive, ResponseTimeMs: p.rtt}, nil
}

func (p *fakeProber) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type recorder struct {
	mu     sync.Mutex
	events []service.Event
}

func (r *recorder) Publish(ev service.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) ofType(t service.EventType) []service.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []service.Event
	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type fakeStats struct {
	memory float64
	cpu    float64
	uptime time.Duration
	err    error
}

func (f *fakeStats) MemoryPercent(context.Context) (float64, error) { return f.memory, f.err }
func (f *fakeStats) CPUPercent(context.Context) (float64, error)    { return f.cpu, f.err }
func (f *fakeStats) Uptime(context.Context) (time.Duration, error)  { return f.uptime, f.err }

type brokenStateStore struct{}

func (brokenStateStore) LoadScanState(context.Context) (domain.ScanState, error) {
	return domain.ScanState{}, errors.New("state file unreadable")
}

func (brokenStateStore) AcquireScanState(context.Context, string, time.Time) (bool, error) {
	return false, errors.New("state file unreadable")
}

func (brokenStateStore) ReleaseScanState(context.Context, string) error {
	return errors.New("state file unreadable")
}

func (brokenStateStore) TakeOverScanState(context.Context, string, string, time.Time) (bool, error) {
	return false, errors.New("state file unreadable")
}

type harness struct {
	store  repository.Store
	prober *fakeProber
	pub    *recorder
	clock  *clock.Fake
	health *HealthMonitor
}

func newHarness(store repository.Store) *harness {
	if store == nil {
		store = repository.NewMemoryStore()
	}
	h := &harness{
		store:  store,
		prober: &fakeProber{},
		pub:    &recorder{},
		clock:  clock.NewFake(t0),
	}
	h.health = NewHealthMonitor(store, h.prober, policy.New(policy.DefaultConfig()), h.pub, h.clock, DefaultHealthConfig(), logger.NewTestLogger())
	return h
}

func (h *harness) scheduler(states coordinator.StateStore) *Scheduler {
	return NewScheduler(SchedulerConfig{
		Health:      h.health,
		Coordinator: coordinator.New(states, h.clock, logger.NewTestLogger()),
		Clock:       h.clock,
		Logger:      logger.NewTestLogger(),
	})
}

func (h *harness) addDevice(ctx context.Context, status domain.DeviceStatus, failures int) *domain.Device {
	d := &domain.Device{
		ID:         "dev-1",
		Address:    "10.0.0.5",
		Hostname:   "nas",
		DeviceType: domain.DeviceTypeNAS,
		Status:     status,
		Metrics:    domain.Metrics{ConsecutiveFailures: failures},
		CreatedAt:  t0,
		UpdatedAt:  t0,
	}
	if err := h.store.CreateDevice(ctx, d); err != nil {
		panic(err)
	}
	return d
}

// check reloads the device and runs one health check against it
func (h *harness) check(ctx context.Context) (Evaluation, error) {
	d, err := h.store.FindDevice(ctx, "10.0.0.5")
	if err != nil {
		return Evaluation{}, err
	}
	return h.health.Check(ctx, d)
}

func countAlerts(alerts []domain.Alert, alertType string, unackedOnly bool) int {
	n := 0
	for _, a := range alerts {
		if a.Type != alertType {
			continue
		}
		if unackedOnly && a.Acknowledged {
			continue
		}
		n++
	}
	return n
}
