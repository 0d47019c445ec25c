// Package handler implements the HTTP API for netsentry.
//
// # Endpoints
//
//	GET  /healthz                          liveness
//	GET  /api/devices                      list devices (?status=, ?type=)
//	GET  /api/devices/{address}            one device with its alerts
//	POST /api/devices/{address}/alerts/ack acknowledge alerts
//	GET  /api/alerts/system                host resource alerts
//	POST /api/discover                     discover one address
//	POST /api/scan                         start a bulk scan
//	GET  /api/scan/state                   bulk scan lease state
//	GET  /api/monitor/status               scheduler status
//	POST /api/monitor/start                start the scheduler
//	POST /api/monitor/stop                 stop the scheduler
//	POST /api/monitor/trigger              run one tick now
//
// Errors are returned as JSON with an {error, details} structure. Active
// endpoints are refused with 403 when the configured mode does not allow
// them.
package handler
