// Package domain defines the core types for the netsentry discovery and
// health-monitoring engine.
//
// # Core Types
//
// Device is a monitored host keyed by its network address. The health
// monitor mutates its Status and Metrics on every tick; devices are never
// deleted here.
//
// Alert is a notable event tied to a device, or to the reserved SystemDeviceID
// for host resource alerts. Alerts form an append-only log per device.
//
// DiscoveryResult is the ephemeral output of one discovery pass. It is
// folded into a Device by the discovery service and never stored on its own.
//
// ScanState is the bulk-scan flag read by the monitor before each sweep.
//
// # Design Principles
//
// - No database or external dependencies
// - Pure value types with meaningful constants
package domain
