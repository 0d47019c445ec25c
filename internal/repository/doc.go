// Package repository defines the persistence interface for netsentry.
//
// The Store interface covers devices, their append-only alert logs and
// the bulk-acknowledge operation used by the health monitor. System
// resource alerts are stored under domain.SystemDeviceID, which has no
// device row.
//
// # Implementations
//
// The sqlite subpackage is the production store. It also implements
// coordinator.StateStore through its single-row scan_state table, so a
// scan started by another process is visible to the monitor.
//
// MemoryStore is a map-backed Store for tests and ephemeral runs.
//
// # Transactions
//
// WithTx gives the health monitor one commit per device: the device patch,
// new alerts and acknowledgements become visible together.
package repository
