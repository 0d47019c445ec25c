// Package service implements the application services that sit between
// the HTTP handlers, the monitoring engine and the repository.
//
// # Services
//
// DeviceService runs single-address discovery and folds each
// DiscoveryResult into a persisted Device, creating it on first sight.
// It is also the ResultSink for bulk scans.
//
// # Event System
//
// EventBus fans events out to subscribers without blocking the publisher.
// The SSE/WebSocket hub and the MQTT publisher subscribe to it; the health
// monitor and the bulk scanner publish newAlert, device.statusChanged,
// scan.started and scan.completed.
package service
