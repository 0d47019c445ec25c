// Package monitor runs periodic health checks against known devices and
// the host itself.
//
// HealthMonitor probes one device, folds the outcome into its status with
// hysteresis and raises or resolves alerts. Scheduler drives ticks: system
// resource checks first, then a device sweep unless a bulk scan holds the
// scan lease.
package monitor
