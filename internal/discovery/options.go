package discovery

import "netsentry/internal/logger"

// Option is a functional option for configuring Engine
type Option func(*Engine)

// WithPinger replaces the ICMP reachability probe
func WithPinger(p Pinger) Option {
	return func(e *Engine) {
		e.pinger = p
	}
}

// WithNeighborTable replaces the ARP table source
func WithNeighborTable(t NeighborTable) Option {
	return func(e *Engine) {
		e.neighbors = t
	}
}

// WithOUIDatabase sets the vendor lookup table
func WithOUIDatabase(db *OUIDatabase) Option {
	return func(e *Engine) {
		e.oui = db
	}
}

// WithDialer replaces the TCP dialer used by the port scan
func WithDialer(d Dialer) Option {
	return func(e *Engine) {
		e.dialer = d
	}
}

// WithSNMPQuerier replaces the SNMP client
func WithSNMPQuerier(q SNMPQuerier) Option {
	return func(e *Engine) {
		e.snmp = q
	}
}

// WithSSHProber replaces the SSH fact prober
func WithSSHProber(p SSHProber) Option {
	return func(e *Engine) {
		e.ssh = p
	}
}

// WithResolver replaces the reverse DNS resolver
func WithResolver(r Resolver) Option {
	return func(e *Engine) {
		e.resolver = r
	}
}

// WithLogger sets the engine logger
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		e.logger = l.WithComponent("discovery")
	}
}
