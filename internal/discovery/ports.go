package discovery

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

const (
	sshPort    = 22
	telnetPort = 23
	httpPort   = 80
	snmpPort   = 161
	httpsPort  = 443
)

// wellKnownPorts maps the scanned ports to their typical service names
var wellKnownPorts = map[int]string{
	22:   "ssh",
	23:   "telnet",
	25:   "smtp",
	53:   "dns",
	80:   "http",
	110:  "pop3",
	143:  "imap",
	161:  "snmp",
	443:  "https",
	993:  "imaps",
	995:  "pop3s",
	3389: "rdp",
	5900: "vnc",
}

// DefaultPorts returns the port table scanned by the port-scan method
func DefaultPorts() []int {
	ports := make([]int, 0, len(wellKnownPorts))
	for p := range wellKnownPorts {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports
}

// scanPorts connects to every port concurrently and returns the open ones sorted
func scanPorts(ctx context.Context, dialer Dialer, address string, ports []int) []int {
	var (
		mu   sync.Mutex
		open []int
		g    errgroup.Group
	)

	for _, port := range ports {
		g.Go(func() error {
			if probePort(ctx, dialer, address, port) {
				mu.Lock()
				open = append(open, port)
				mu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()

	sort.Ints(open)
	return open
}

// probePort reports whether a TCP connect to address:port succeeds
func probePort(ctx context.Context, dialer Dialer, address string, port int) bool {
	conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", address, port))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// serviceNames maps open ports to service names, in port order
func serviceNames(ports []int) []string {
	var services []string
	for _, p := range ports {
		if name, ok := wellKnownPorts[p]; ok {
			services = append(services, name)
		}
	}
	return services
}
