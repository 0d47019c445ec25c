package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"netsentry/internal/config"
	"netsentry/internal/coordinator"
	"netsentry/internal/domain"
	"netsentry/internal/logger"
	"netsentry/internal/monitor"
	"netsentry/internal/repository"
)

// DeviceService reads devices and runs single-address discovery
type DeviceService interface {
	ListDevices(ctx context.Context, filter domain.DeviceFilter) ([]*domain.Device, error)
	GetDevice(ctx context.Context, address string) (*domain.Device, error)
	Discover(ctx context.Context, address string, creds domain.Credentials, methods []domain.ProbeMethod) (*domain.DiscoveryResult, *domain.Device, error)
	AcknowledgeAlerts(ctx context.Context, address string, ids []string) (int, error)
	SystemAlerts(ctx context.Context) ([]domain.Alert, error)
}

// Scheduler controls periodic monitoring
type Scheduler interface {
	Start(ctx context.Context, intervalMinutes int)
	Stop()
	TriggerChecks(ctx context.Context) (monitor.TickSummary, error)
	Status() monitor.Status
}

// BulkScanner starts background range scans
type BulkScanner interface {
	Start(ctx context.Context, target string, creds domain.Credentials) (string, error)
}

// ScanStateReader reads the bulk scan lease
type ScanStateReader interface {
	TryRead(ctx context.Context) (domain.ScanState, error)
}

// Config wires a Handler
type Config struct {
	Devices   DeviceService
	Scheduler Scheduler
	Scanner   BulkScanner
	ScanState ScanStateReader
	Mode      config.Mode
	// Credentials are used when a request supplies none
	Credentials     domain.Credentials
	IntervalMinutes int
	Logger          logger.Logger
}

// Handler serves the netsentry API
type Handler struct {
	devices         DeviceService
	scheduler       Scheduler
	scanner         BulkScanner
	scanState       ScanStateReader
	mode            config.Mode
	creds           domain.Credentials
	intervalMinutes int
	logger          logger.Logger
}

// New creates a Handler
func New(cfg Config) *Handler {
	if cfg.Mode == "" {
		cfg.Mode = config.ModeDiscovery
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewTestLogger()
	}

	return &Handler{
		devices:         cfg.Devices,
		scheduler:       cfg.Scheduler,
		scanner:         cfg.Scanner,
		scanState:       cfg.ScanState,
		mode:            cfg.Mode,
		creds:           cfg.Credentials,
		intervalMinutes: cfg.IntervalMinutes,
		logger:          cfg.Logger.WithComponent("http"),
	}
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Healthz reports liveness
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// ListDevices returns devices, optionally filtered by status and type
func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	filter := domain.DeviceFilter{
		Status:     domain.DeviceStatus(r.URL.Query().Get("status")),
		DeviceType: domain.DeviceType(r.URL.Query().Get("type")),
	}

	devices, err := h.devices.ListDevices(r.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list devices")
		h.writeError(w, "Failed to list devices", err.Error(), http.StatusInternalServerError)
		return
	}
	if devices == nil {
		devices = []*domain.Device{}
	}

	h.writeJSON(w, devices, http.StatusOK)
}

// GetDevice returns one device by address
func (h *Handler) GetDevice(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")

	device, err := h.devices.GetDevice(r.Context(), address)
	if errors.Is(err, repository.ErrNotFound) {
		h.writeError(w, "Device not found", address, http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("address", address).Msg("Failed to get device")
		h.writeError(w, "Failed to get device", err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, device, http.StatusOK)
}

// AckRequest selects alerts to acknowledge; empty IDs means all
type AckRequest struct {
	IDs []string `json:"ids"`
}

// AcknowledgeAlerts acknowledges a device's open alerts
func (h *Handler) AcknowledgeAlerts(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")

	var req AckRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
			return
		}
	}

	n, err := h.devices.AcknowledgeAlerts(r.Context(), address, req.IDs)
	if errors.Is(err, repository.ErrNotFound) {
		h.writeError(w, "Device not found", address, http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("address", address).Msg("Failed to acknowledge alerts")
		h.writeError(w, "Failed to acknowledge alerts", err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]int{"acknowledged": n}, http.StatusOK)
}

// SystemAlerts returns host resource alerts
func (h *Handler) SystemAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.devices.SystemAlerts(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list system alerts")
		h.writeError(w, "Failed to list system alerts", err.Error(), http.StatusInternalServerError)
		return
	}
	if alerts == nil {
		alerts = []domain.Alert{}
	}

	h.writeJSON(w, alerts, http.StatusOK)
}

// DiscoverRequest asks for a discovery pass on one address
type DiscoverRequest struct {
	Address         string                 `json:"address"`
	Methods         []domain.ProbeMethod   `json:"methods,omitempty"`
	SNMPCommunities []string               `json:"snmp_communities,omitempty"`
	SSH             []domain.SSHCredential `json:"ssh,omitempty"`
}

// DiscoverResponse carries the raw result and the stored device
type DiscoverResponse struct {
	Result *domain.DiscoveryResult `json:"result"`
	Device *domain.Device          `json:"device"`
}

// Discover runs single-address discovery
func (h *Handler) Discover(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(w, config.ModeDiscovery) {
		return
	}

	var req DiscoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if net.ParseIP(req.Address) == nil {
		h.writeError(w, "Invalid address", req.Address, http.StatusBadRequest)
		return
	}

	result, device, err := h.devices.Discover(r.Context(), req.Address, h.credentials(req.SNMPCommunities, req.SSH), req.Methods)
	if errors.Is(err, domain.ErrUnreachable) {
		h.writeError(w, "Device unreachable", err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("address", req.Address).Msg("Discovery failed")
		h.writeError(w, "Discovery failed", err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, DiscoverResponse{Result: result, Device: device}, http.StatusOK)
}

// ScanRequest asks for a bulk scan of a range
type ScanRequest struct {
	Target          string                 `json:"target"`
	SNMPCommunities []string               `json:"snmp_communities,omitempty"`
	SSH             []domain.SSHCredential `json:"ssh,omitempty"`
}

// StartScan starts a background bulk scan
func (h *Handler) StartScan(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(w, config.ModeDiscovery) {
		return
	}

	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if req.Target == "" {
		h.writeError(w, "Target is required", "", http.StatusBadRequest)
		return
	}

	owner, err := h.scanner.Start(r.Context(), req.Target, h.credentials(req.SNMPCommunities, req.SSH))
	if errors.Is(err, coordinator.ErrScanInProgress) {
		h.writeError(w, "Bulk scan already in progress", "", http.StatusConflict)
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("target", req.Target).Msg("Failed to start bulk scan")
		h.writeError(w, "Failed to start bulk scan", err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]string{"status": "started", "owner": owner, "target": req.Target}, http.StatusAccepted)
}

// ScanState reports whether a bulk scan holds the lease
func (h *Handler) ScanState(w http.ResponseWriter, r *http.Request) {
	state, err := h.scanState.TryRead(r.Context())
	if err != nil {
		h.writeError(w, "Scan state unavailable", err.Error(), http.StatusServiceUnavailable)
		return
	}

	h.writeJSON(w, state, http.StatusOK)
}

// MonitorStatus returns scheduler status
func (h *Handler) MonitorStatus(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, h.scheduler.Status(), http.StatusOK)
}

// StartMonitorRequest optionally overrides the interval
type StartMonitorRequest struct {
	IntervalMinutes int `json:"interval_minutes"`
}

// StartMonitor starts the scheduler; starting twice is harmless
func (h *Handler) StartMonitor(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(w, config.ModeMonitor) {
		return
	}

	var req StartMonitorRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
			return
		}
	}
	if req.IntervalMinutes < 0 {
		h.writeError(w, "interval_minutes must be positive", "", http.StatusBadRequest)
		return
	}

	interval := req.IntervalMinutes
	if interval == 0 {
		interval = h.intervalMinutes
	}

	h.scheduler.Start(r.Context(), interval)
	h.writeJSON(w, h.scheduler.Status(), http.StatusOK)
}

// StopMonitor stops the scheduler
func (h *Handler) StopMonitor(w http.ResponseWriter, _ *http.Request) {
	h.scheduler.Stop()
	h.writeJSON(w, h.scheduler.Status(), http.StatusOK)
}

// TriggerChecks runs one monitoring tick synchronously
func (h *Handler) TriggerChecks(w http.ResponseWriter, r *http.Request) {
	if !h.allowed(w, config.ModeMonitor) {
		return
	}

	summary, err := h.scheduler.TriggerChecks(r.Context())
	if errors.Is(err, monitor.ErrTickInProgress) {
		h.writeError(w, "Checks already running", "", http.StatusConflict)
		return
	}
	if err != nil {
		h.writeError(w, "Checks failed", err.Error(), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, summary, http.StatusOK)
}

// credentials prefers request-supplied credentials over configured ones
func (h *Handler) credentials(communities []string, ssh []domain.SSHCredential) domain.Credentials {
	creds := h.creds
	if len(communities) > 0 {
		creds.SNMPCommunities = communities
	}
	if len(ssh) > 0 {
		creds.SSH = ssh
	}
	return creds
}

func (h *Handler) allowed(w http.ResponseWriter, required config.Mode) bool {
	if h.mode.Allows(required) {
		return true
	}
	h.writeError(w, "Not allowed in "+string(h.mode)+" mode", "requires "+string(required), http.StatusForbidden)
	return false
}

func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode JSON")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, error, details string, statusCode int) {
	h.writeJSON(w, ErrorResponse{Error: error, Details: details}, statusCode)
}
