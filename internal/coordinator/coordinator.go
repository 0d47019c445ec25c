// Package coordinator arbitrates between a bulk discovery scan and the
// periodic health sweep. The bulk scanner holds a Lease while it writes
// device state; the monitor only ever reads the flag.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"netsentry/internal/clock"
	"netsentry/internal/domain"
	"netsentry/internal/logger"
)

// ErrScanInProgress is returned by Acquire when another owner holds the lease
var ErrScanInProgress = errors.New("bulk scan already in progress")

// DefaultReadTimeout bounds TryRead so a stuck store cannot stall a tick
const DefaultReadTimeout = 2 * time.Second

// DefaultLeaseTTL is the longest a bulk scan may hold the lease. A flag
// older than this was left by a scanner that died and is ignored.
const DefaultLeaseTTL = time.Hour

// StateStore persists the scan flag
type StateStore interface {
	LoadScanState(ctx context.Context) (domain.ScanState, error)
	// AcquireScanState sets the flag for owner if it is clear and reports
	// whether it did.
	AcquireScanState(ctx context.Context, owner string, at time.Time) (bool, error)
	// ReleaseScanState clears the flag only if owner holds it.
	ReleaseScanState(ctx context.Context, owner string) error
	// TakeOverScanState hands a running flag from staleOwner to owner if
	// staleOwner still holds it, and reports whether it did.
	TakeOverScanState(ctx context.Context, staleOwner, owner string, at time.Time) (bool, error)
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithLeaseTTL sets how long a lease stays valid; zero or less disables
// expiry
func WithLeaseTTL(ttl time.Duration) Option {
	return func(c *Coordinator) {
		c.leaseTTL = ttl
	}
}

// Coordinator hands out scan leases and answers TryRead
type Coordinator struct {
	store       StateStore
	clock       clock.Clock
	logger      logger.Logger
	readTimeout time.Duration
	leaseTTL    time.Duration
}

// New creates a Coordinator over store
func New(store StateStore, clk clock.Clock, log logger.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:       store,
		clock:       clk,
		logger:      log.WithComponent("coordinator"),
		readTimeout: DefaultReadTimeout,
		leaseTTL:    DefaultLeaseTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LeaseTTL returns how long a lease stays valid; zero means forever
func (c *Coordinator) LeaseTTL() time.Duration {
	return max(c.leaseTTL, 0)
}

// Acquire takes the scan lease for owner
func (c *Coordinator) Acquire(ctx context.Context, owner string) (*Lease, error) {
	now := c.clock.Now()

	ok, err := c.store.AcquireScanState(ctx, owner, now)
	if err != nil {
		return nil, fmt.Errorf("acquire scan lease: %w", err)
	}
	if !ok {
		if ok, err = c.takeOverExpired(ctx, owner, now); err != nil {
			return nil, fmt.Errorf("acquire scan lease: %w", err)
		}
		if !ok {
			return nil, ErrScanInProgress
		}
	}

	c.logger.Info().Str("owner", owner).Msg("Scan lease acquired")

	return &Lease{coord: c, owner: owner, acquiredAt: now}, nil
}

// TryRead returns the current scan state without waiting on the lease.
// Callers must treat an error as "a scan may be running".
func (c *Coordinator) TryRead(ctx context.Context) (domain.ScanState, error) {
	ctx, cancel := context.WithTimeout(ctx, c.readTimeout)
	defer cancel()

	state, err := c.store.LoadScanState(ctx)
	if err != nil {
		return domain.ScanState{}, fmt.Errorf("read scan state: %w", err)
	}

	if c.expired(state, c.clock.Now()) {
		c.logger.Warn().
			Str("owner", state.Owner).
			Time("started_at", state.StartedAt).
			Msg("Ignoring expired scan lease")
		return domain.ScanState{}, nil
	}

	return state, nil
}

// takeOverExpired replaces a lease whose holder outlived the TTL
func (c *Coordinator) takeOverExpired(ctx context.Context, owner string, now time.Time) (bool, error) {
	state, err := c.store.LoadScanState(ctx)
	if err != nil {
		return false, err
	}
	if !c.expired(state, now) {
		return false, nil
	}

	ok, err := c.store.TakeOverScanState(ctx, state.Owner, owner, now)
	if err != nil {
		return false, err
	}
	if ok {
		c.logger.Warn().
			Str("owner", owner).
			Str("expired_owner", state.Owner).
			Time("started_at", state.StartedAt).
			Msg("Took over expired scan lease")
	}
	return ok, nil
}

func (c *Coordinator) expired(state domain.ScanState, now time.Time) bool {
	ttl := c.LeaseTTL()
	return state.IsRunning && ttl > 0 && now.Sub(state.StartedAt) > ttl
}

// Lease is held by the bulk scanner for the duration of one scan
type Lease struct {
	coord      *Coordinator
	owner      string
	acquiredAt time.Time

	once sync.Once
	err  error
}

// Owner returns the lease holder's name
func (l *Lease) Owner() string { return l.owner }

// AcquiredAt returns when the lease was taken
func (l *Lease) AcquiredAt() time.Time { return l.acquiredAt }

// Release clears the flag. Subsequent calls return the first result.
func (l *Lease) Release(ctx context.Context) error {
	l.once.Do(func() {
		if err := l.coord.store.ReleaseScanState(ctx, l.owner); err != nil {
			l.err = fmt.Errorf("release scan lease: %w", err)
			return
		}
		l.coord.logger.Info().
			Str("owner", l.owner).
			Dur("held", l.coord.clock.Now().Sub(l.acquiredAt)).
			Msg("Scan lease released")
	})
	return l.err
}
