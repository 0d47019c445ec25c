package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"netsentry/internal/domain"
	"netsentry/internal/logger"
)

// Config holds probe timeouts and sources for the discovery engine
type Config struct {
	// PingTimeout bounds one ICMP echo attempt
	PingTimeout time.Duration
	// PingRetries is the number of extra echo attempts after the first
	PingRetries int
	// PortTimeout bounds one TCP connect
	PortTimeout time.Duration
	// SNMPTimeout bounds one SNMP request
	SNMPTimeout time.Duration
	// SSHTimeout bounds one SSH login and its commands
	SSHTimeout time.Duration
	// NeighborTimeout bounds the ARP table read
	NeighborTimeout time.Duration
	// DNSTimeout bounds the reverse lookup
	DNSTimeout time.Duration
	// Ports is the TCP port table for the port scan
	Ports []int
	// ARPPath is the kernel neighbor table to read
	ARPPath string
	// OUIPath optionally points at a JSON-lines OUI file
	OUIPath string
	// DNSServer is an optional DNS server for PTR lookups
	DNSServer string
}

// DefaultConfig returns the standard probe timeouts
func DefaultConfig() Config {
	return Config{
		PingTimeout:     3 * time.Second,
		PingRetries:     1,
		PortTimeout:     2 * time.Second,
		SNMPTimeout:     2 * time.Second,
		SSHTimeout:      5 * time.Second,
		NeighborTimeout: time.Second,
		DNSTimeout:      2 * time.Second,
		Ports:           DefaultPorts(),
		ARPPath:         DefaultARPPath,
	}
}

// Pinger sends one reachability check and returns the round-trip time.
// ErrNoReply signals a clean timeout.
type Pinger interface {
	Ping(ctx context.Context, address string) (time.Duration, error)
}

// Dialer opens TCP connections for the port scan
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Resolver performs reverse DNS lookups
type Resolver interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// Engine orchestrates probe strategies for a single address
type Engine struct {
	config    Config
	pinger    Pinger
	neighbors NeighborTable
	oui       *OUIDatabase
	dialer    Dialer
	snmp      SNMPQuerier
	ssh       SSHProber
	resolver  Resolver
	logger    logger.Logger
}

// NewEngine creates an engine backed by the real network probes unless
// replaced through options.
func NewEngine(config Config, opts ...Option) *Engine {
	defaults := DefaultConfig()
	if config.PingTimeout <= 0 {
		config.PingTimeout = defaults.PingTimeout
	}
	if config.PingRetries < 0 {
		config.PingRetries = 0
	}
	if config.PortTimeout <= 0 {
		config.PortTimeout = defaults.PortTimeout
	}
	if config.SNMPTimeout <= 0 {
		config.SNMPTimeout = defaults.SNMPTimeout
	}
	if config.SSHTimeout <= 0 {
		config.SSHTimeout = defaults.SSHTimeout
	}
	if config.NeighborTimeout <= 0 {
		config.NeighborTimeout = defaults.NeighborTimeout
	}
	if config.DNSTimeout <= 0 {
		config.DNSTimeout = defaults.DNSTimeout
	}
	if len(config.Ports) == 0 {
		config.Ports = defaults.Ports
	}
	if config.ARPPath == "" {
		config.ARPPath = defaults.ARPPath
	}

	e := &Engine{
		config:    config,
		pinger:    NewICMPPinger(config.PingTimeout),
		neighbors: NewARPTable(config.ARPPath),
		oui:       NewOUIDatabase(),
		dialer:    &net.Dialer{Timeout: config.PortTimeout},
		snmp:      NewGoSNMPQuerier(config.SNMPTimeout),
		ssh:       NewSSHFactProber(config.SSHTimeout),
		resolver:  newResolver(config.DNSServer),
		logger:    logger.NewTestLogger(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Discover runs methods against address in order and merges the results.
// An empty methods list means domain.DefaultMethods.
func (e *Engine) Discover(ctx context.Context, address string, creds domain.Credentials, methods []domain.ProbeMethod) (*domain.DiscoveryResult, error) {
	if net.ParseIP(address) == nil {
		return nil, fmt.Errorf("invalid address %q", address)
	}

	if len(methods) == 0 {
		methods = domain.DefaultMethods
	}

	result := &domain.DiscoveryResult{
		Address:    address,
		DeviceType: domain.DeviceTypeUnknown,
	}

	for _, method := range methods {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		e.runTask(ctx, method, result, creds)

		// A lone reachability request fails fast
		if method == domain.MethodReachability && len(methods) == 1 && !result.Reachable {
			return nil, &domain.UnreachableError{Address: address, Methods: methods}
		}
	}

	if !result.Reachable {
		e.logger.Debug().Str("address", address).Msg("No method reached device")
		return nil, &domain.UnreachableError{Address: address, Methods: methods}
	}

	if result.Hostname == "" {
		result.Hostname = e.resolveHostname(ctx, address)
	}
	result.DeviceType = Classify(result)

	e.logger.Debug().
		Str("address", address).
		Str("device_type", string(result.DeviceType)).
		Ints("open_ports", result.OpenPorts).
		Msg("Discovery complete")

	return result, nil
}

// Probe runs the reachability probe alone
func (e *Engine) Probe(ctx context.Context, address string) (domain.ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.taskTimeout(domain.MethodReachability, domain.Credentials{}))
	defer cancel()

	rtt, err := e.ping(ctx, address)
	if err != nil {
		if errors.Is(err, ErrNoReply) {
			return domain.ProbeResult{Alive: false}, nil
		}
		return domain.ProbeResult{Alive: false}, fmt.Errorf("probe %s: %w", address, err)
	}

	ms := durationMs(rtt)
	return domain.ProbeResult{Alive: true, ResponseTimeMs: &ms}, nil
}

// runTask executes one pipeline stage under its own deadline
func (e *Engine) runTask(ctx context.Context, method domain.ProbeMethod, result *domain.DiscoveryResult, creds domain.Credentials) {
	taskCtx, cancel := context.WithTimeout(ctx, e.taskTimeout(method, creds))
	defer cancel()

	switch method {
	case domain.MethodReachability:
		e.runReachability(taskCtx, result)
	case domain.MethodMACResolution:
		e.runMACResolution(taskCtx, result)
	case domain.MethodPortScan:
		e.runPortScan(taskCtx, result)
	case domain.MethodSNMP:
		e.runSNMP(taskCtx, result, creds)
	case domain.MethodSSH:
		e.runSSH(taskCtx, result, creds)
	default:
		e.logger.Warn().Str("method", string(method)).Msg("Unknown probe method")
	}
}

func (e *Engine) taskTimeout(method domain.ProbeMethod, creds domain.Credentials) time.Duration {
	const slack = 500 * time.Millisecond

	switch method {
	case domain.MethodReachability:
		return time.Duration(e.config.PingRetries+1)*e.config.PingTimeout + slack
	case domain.MethodMACResolution:
		return e.config.NeighborTimeout
	case domain.MethodPortScan:
		return e.config.PortTimeout + slack
	case domain.MethodSNMP:
		n := len(CommunityCandidates(creds.SNMPCommunities))
		return time.Duration(n)*2*e.config.SNMPTimeout + slack
	case domain.MethodSSH:
		n := len(creds.SSH)
		if n == 0 {
			n = 1
		}
		return time.Duration(n)*e.config.SSHTimeout + slack
	default:
		return slack
	}
}

func (e *Engine) runReachability(ctx context.Context, result *domain.DiscoveryResult) {
	rtt, err := e.ping(ctx, result.Address)
	if err != nil {
		e.logger.Debug().Err(err).Str("address", result.Address).Msg("Reachability probe failed")
		return
	}

	ms := durationMs(rtt)
	result.ResponseTimeMs = &ms
	result.MarkReachable(domain.MethodReachability)
}

// ping makes the first attempt plus PingRetries retries
func (e *Engine) ping(ctx context.Context, address string) (time.Duration, error) {
	var lastErr error

	for attempt := 0; attempt <= e.config.PingRetries; attempt++ {
		rtt, err := e.pinger.Ping(ctx, address)
		if err == nil {
			return rtt, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	return 0, lastErr
}

func (e *Engine) runMACResolution(ctx context.Context, result *domain.DiscoveryResult) {
	mac, ok, err := e.neighbors.Lookup(ctx, result.Address)
	if err != nil {
		e.logger.Debug().Err(err).Str("address", result.Address).Msg("Neighbor table lookup failed")
		return
	}
	if !ok {
		return
	}

	result.MACAddress = mac
	result.Vendor = e.oui.Lookup(mac)
	result.MarkReachable(domain.MethodMACResolution)
}

func (e *Engine) runPortScan(ctx context.Context, result *domain.DiscoveryResult) {
	open := scanPorts(ctx, e.dialer, result.Address, e.config.Ports)
	if len(open) == 0 {
		return
	}

	result.OpenPorts = open
	result.Services = serviceNames(open)
	result.MarkReachable(domain.MethodPortScan)
}

func (e *Engine) runSNMP(ctx context.Context, result *domain.DiscoveryResult, creds domain.Credentials) {
	if !result.Reachable && !result.HasPort(snmpPort) {
		return
	}

	for _, community := range CommunityCandidates(creds.SNMPCommunities) {
		data, err := e.snmp.Query(ctx, result.Address, community)
		if err != nil {
			e.logger.Debug().Err(err).Str("address", result.Address).Msg("SNMP candidate failed")
			if ctx.Err() != nil {
				return
			}
			continue
		}

		result.SNMP = data
		if data.SysName != "" {
			result.Hostname = data.SysName
		}
		result.MarkReachable(domain.MethodSNMP)
		return
	}
}

func (e *Engine) runSSH(ctx context.Context, result *domain.DiscoveryResult, creds domain.Credentials) {
	if len(creds.SSH) == 0 {
		return
	}
	if !result.HasPort(sshPort) && !result.Reachable {
		return
	}

	for _, cred := range creds.SSH {
		facts, err := e.ssh.Facts(ctx, result.Address, sshPort, cred)
		if err != nil {
			e.logger.Debug().Err(err).Str("address", result.Address).Str("user", cred.Username).Msg("SSH candidate failed")
			if ctx.Err() != nil {
				return
			}
			continue
		}

		result.OS = facts.OS
		if facts.Hostname != "" && (result.SNMP == nil || result.SNMP.SysName == "") {
			result.Hostname = facts.Hostname
		}
		result.MarkReachable(domain.MethodSSH)
		return
	}
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
