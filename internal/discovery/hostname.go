package discovery

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

// newResolver returns the system resolver, or one pinned to dnsServer
func newResolver(dnsServer string) Resolver {
	if dnsServer == "" {
		return net.DefaultResolver
	}

	if _, _, err := net.SplitHostPort(dnsServer); err != nil {
		dnsServer = net.JoinHostPort(dnsServer, "53")
	}

	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			d := net.Dialer{Timeout: 2 * time.Second}
			return d.DialContext(ctx, network, dnsServer)
		},
	}
}

// resolveHostname tries a reverse lookup, then the address heuristic
func (e *Engine) resolveHostname(ctx context.Context, address string) string {
	ctx, cancel := context.WithTimeout(ctx, e.config.DNSTimeout)
	defer cancel()

	names, err := e.resolver.LookupAddr(ctx, address)
	if err == nil && len(names) > 0 && names[0] != "" {
		return strings.TrimSuffix(names[0], ".")
	}

	return HeuristicHostname(address)
}

// HeuristicHostname names a host from the last octet of its IPv4 address:
// .1 is the gateway, .254 the router and 100-199 generic devices.
func HeuristicHostname(address string) string {
	ip := net.ParseIP(address).To4()
	if ip == nil {
		return ""
	}

	last := int(ip[3])
	switch {
	case last == 1:
		return "gateway"
	case last == 254:
		return "router"
	case last >= 100 && last <= 199:
		return fmt.Sprintf("device-%d", last)
	default:
		return ""
	}
}
