// Package discovery probes a single network address and merges what each
// strategy learns into a domain.DiscoveryResult.
//
// # Probe Strategies
//
// The Engine runs the requested methods as an ordered pipeline, each task
// under its own timeout:
//
//   - reachability-probe: ICMP echo with one retry, records round-trip time
//   - mac-resolution: kernel neighbor table lookup plus OUI vendor lookup
//   - port-scan: concurrent TCP connects against a fixed well-known port table
//   - snmp: system group and interface descriptions, community candidates in order
//   - ssh: uname and hostname facts using supplied credentials
//
// A strategy swallows its own transport errors and only contributes a
// negative signal. Discover fails with *domain.UnreachableError when no
// strategy marks the address reachable.
//
// # Bulk Scans
//
// BulkScanner sweeps a CIDR with nmap, runs Discover for every live host
// and holds the coordinator lease for the duration so the health monitor
// stays out of the way.
package discovery
