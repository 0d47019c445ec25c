package discovery

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultARPPath is the Linux kernel neighbor table
const DefaultARPPath = "/proc/net/arp"

// NeighborTable resolves an IP address to a link-layer address
type NeighborTable interface {
	Lookup(ctx context.Context, address string) (mac string, ok bool, err error)
}

// ARPTable reads the kernel ARP cache from a procfs-style file
type ARPTable struct {
	path string
}

// NewARPTable creates a table reading path
func NewARPTable(path string) *ARPTable {
	return &ARPTable{path: path}
}

// Lookup returns the MAC address for address if the kernel has a complete entry
func (a *ARPTable) Lookup(ctx context.Context, address string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	f, err := os.Open(a.path)
	if err != nil {
		return "", false, fmt.Errorf("open neighbor table: %w", err)
	}
	defer f.Close()

	entries, err := ParseARP(f)
	if err != nil {
		return "", false, err
	}

	mac, ok := entries[address]
	return mac, ok, nil
}

// ParseARP parses /proc/net/arp content into address -> MAC.
// Incomplete entries (flags 0x0 or an all-zero MAC) are skipped.
func ParseARP(r io.Reader) (map[string]string, error) {
	entries := make(map[string]string)
	scanner := bufio.NewScanner(r)

	first := true
	for scanner.Scan() {
		if first {
			first = false
			continue
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}

		ip, flags, mac := fields[0], fields[2], strings.ToUpper(fields[3])
		if flags == "0x0" || mac == "00:00:00:00:00:00" {
			continue
		}

		entries[ip] = mac
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read neighbor table: %w", err)
	}

	return entries, nil
}
