package handler

import (
	"net/http"
)

// Register mounts the API routes on mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)

	mux.HandleFunc("GET /api/devices", h.ListDevices)
	mux.HandleFunc("GET /api/devices/{address}", h.GetDevice)
	mux.HandleFunc("POST /api/devices/{address}/alerts/ack", h.AcknowledgeAlerts)
	mux.HandleFunc("GET /api/alerts/system", h.SystemAlerts)

	mux.HandleFunc("POST /api/discover", h.Discover)
	mux.HandleFunc("POST /api/scan", h.StartScan)
	mux.HandleFunc("GET /api/scan/state", h.ScanState)

	mux.HandleFunc("GET /api/monitor/status", h.MonitorStatus)
	mux.HandleFunc("POST /api/monitor/start", h.StartMonitor)
	mux.HandleFunc("POST /api/monitor/stop", h.StopMonitor)
	mux.HandleFunc("POST /api/monitor/trigger", h.TriggerChecks)
}
