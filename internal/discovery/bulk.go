package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"netsentry/internal/clock"
	"netsentry/internal/coordinator"
	"netsentry/internal/domain"
	"netsentry/internal/logger"
)

// Scan progress event types
const (
	EventScanStarted   = "scan.started"
	EventScanCompleted = "scan.completed"
)

// DefaultBulkConcurrency bounds parallel Discover calls in one bulk scan
const DefaultBulkConcurrency = 10

// HostLister finds live hosts in a target range
type HostLister interface {
	ListHosts(ctx context.Context, target string) ([]string, error)
}

// Discoverer is satisfied by *Engine
type Discoverer interface {
	Discover(ctx context.Context, address string, creds domain.Credentials, methods []domain.ProbeMethod) (*domain.DiscoveryResult, error)
}

// ResultSink folds a discovery result into persisted device state
type ResultSink interface {
	Ingest(ctx context.Context, result *domain.DiscoveryResult) (*domain.Device, error)
}

// EventPublisher receives scan progress events
type EventPublisher interface {
	PublishDiscoveryEvent(eventType string, payload interface{})
}

// BulkScanSummary reports the outcome of one bulk scan
type BulkScanSummary struct {
	Owner       string    `json:"owner"`
	Target      string    `json:"target"`
	HostsFound  int       `json:"hosts_found"`
	Discovered  int       `json:"discovered"`
	Unreachable int       `json:"unreachable"`
	Failed      int       `json:"failed"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Error       string    `json:"error,omitempty"`
}

// BulkScanner sweeps a range and discovers every live host while holding
// the scan lease.
type BulkScanner struct {
	engine      Discoverer
	lister      HostLister
	coord       *coordinator.Coordinator
	sink        ResultSink
	publisher   EventPublisher
	clock       clock.Clock
	concurrency int
	logger      logger.Logger

	wg sync.WaitGroup
}

// BulkScannerConfig wires a BulkScanner
type BulkScannerConfig struct {
	Engine      Discoverer
	Lister      HostLister
	Coordinator *coordinator.Coordinator
	Sink        ResultSink
	Publisher   EventPublisher
	Clock       clock.Clock
	Concurrency int
	Logger      logger.Logger
}

// NewBulkScanner creates a BulkScanner
func NewBulkScanner(cfg BulkScannerConfig) *BulkScanner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultBulkConcurrency
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewTestLogger()
	}

	return &BulkScanner{
		engine:      cfg.Engine,
		lister:      cfg.Lister,
		coord:       cfg.Coordinator,
		sink:        cfg.Sink,
		publisher:   cfg.Publisher,
		clock:       cfg.Clock,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger.WithComponent("bulk-scan"),
	}
}

// Scan runs a bulk scan of target synchronously. It fails with
// coordinator.ErrScanInProgress if another scan holds the lease.
func (b *BulkScanner) Scan(ctx context.Context, target string, creds domain.Credentials) (*BulkScanSummary, error) {
	lease, err := b.acquire(ctx)
	if err != nil {
		return nil, err
	}

	return b.run(ctx, lease, target, creds)
}

// Start acquires the lease and runs the scan in the background. The lease
// error is returned immediately; the scan outcome is published as an event.
func (b *BulkScanner) Start(ctx context.Context, target string, creds domain.Credentials) (string, error) {
	lease, err := b.acquire(ctx)
	if err != nil {
		return "", err
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if _, err := b.run(context.WithoutCancel(ctx), lease, target, creds); err != nil {
			b.logger.Error().Err(err).Str("target", target).Msg("Bulk scan failed")
		}
	}()

	return lease.Owner(), nil
}

// Wait blocks until background scans finish
func (b *BulkScanner) Wait() {
	b.wg.Wait()
}

func (b *BulkScanner) acquire(ctx context.Context) (*coordinator.Lease, error) {
	return b.coord.Acquire(ctx, "bulk-scan-"+uuid.NewString())
}

func (b *BulkScanner) run(ctx context.Context, lease *coordinator.Lease, target string, creds domain.Credentials) (*BulkScanSummary, error) {
	summary := &BulkScanSummary{
		Owner:     lease.Owner(),
		Target:    target,
		StartedAt: b.clock.Now(),
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := lease.Release(releaseCtx); err != nil {
			b.logger.Error().Err(err).Str("owner", lease.Owner()).Msg("Failed to release scan lease")
		}
	}()

	// Stop before the lease expires and another scanner may take it over
	if ttl := b.coord.LeaseTTL(); ttl > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ttl)
		defer cancel()
	}

	b.publish(EventScanStarted, map[string]interface{}{
		"owner":  summary.Owner,
		"target": target,
	})

	hosts, err := b.lister.ListHosts(ctx, target)
	if err != nil {
		summary.Error = err.Error()
		summary.CompletedAt = b.clock.Now()
		b.publish(EventScanCompleted, summary)
		return summary, fmt.Errorf("list hosts in %s: %w", target, err)
	}

	summary.HostsFound = len(hosts)
	b.logger.Info().Str("target", target).Int("hosts", len(hosts)).Msg("Bulk scan started")

	var discovered, unreachable, failed atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for _, host := range hosts {
		g.Go(func() error {
			result, err := b.engine.Discover(gctx, host, creds, nil)
			if errors.Is(err, domain.ErrUnreachable) {
				unreachable.Add(1)
				return nil
			}
			if err != nil {
				failed.Add(1)
				b.logger.Warn().Err(err).Str("address", host).Msg("Discovery failed")
				return nil
			}

			if _, err := b.sink.Ingest(gctx, result); err != nil {
				failed.Add(1)
				b.logger.Error().Err(err).Str("address", host).Msg("Failed to store discovery result")
				return nil
			}

			discovered.Add(1)
			return nil
		})
	}

	_ = g.Wait()

	summary.Discovered = int(discovered.Load())
	summary.Unreachable = int(unreachable.Load())
	summary.Failed = int(failed.Load())
	summary.CompletedAt = b.clock.Now()

	b.publish(EventScanCompleted, summary)
	b.logger.Info().
		Str("target", target).
		Int("discovered", summary.Discovered).
		Int("unreachable", summary.Unreachable).
		Int("failed", summary.Failed).
		Msg("Bulk scan complete")

	return summary, nil
}

func (b *BulkScanner) publish(eventType string, payload interface{}) {
	if b.publisher != nil {
		b.publisher.PublishDiscoveryEvent(eventType, payload)
	}
}

// NmapHostLister finds live hosts with an nmap ping sweep (-sn)
type NmapHostLister struct {
	timeout time.Duration
	logger  logger.Logger
}

// NewNmapHostLister creates a lister bounding each sweep by timeout
func NewNmapHostLister(timeout time.Duration, log logger.Logger) *NmapHostLister {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &NmapHostLister{timeout: timeout, logger: log.WithComponent("nmap")}
}

func (n *NmapHostLister) ListHosts(ctx context.Context, target string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	scanner, err := nmap.NewScanner(
		ctx,
		nmap.WithTargets(target),
		nmap.WithPingScan(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scanner: %w", err)
	}

	result, warnings, err := scanner.Run()
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	if warnings != nil && len(*warnings) > 0 {
		n.logger.Debug().Strs("warnings", *warnings).Str("target", target).Msg("Nmap warnings")
	}

	return liveHosts(result), nil
}

// liveHosts extracts the IPv4 address of every host nmap reports up
func liveHosts(result *nmap.Run) []string {
	if result == nil {
		return nil
	}

	var hosts []string
	for _, host := range result.Hosts {
		if host.Status.State != "up" {
			continue
		}
		for _, addr := range host.Addresses {
			if addr.AddrType == "ipv4" {
				hosts = append(hosts, addr.Addr)
				break
			}
		}
	}

	return hosts
}
