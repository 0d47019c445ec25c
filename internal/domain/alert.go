package domain

import "time"

// SystemDeviceID is the reserved device ID that owns host resource alerts
const SystemDeviceID = "system"

// Severity of an alert
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Well-known alert types. Type is free-form; these are the ones raised here.
const (
	AlertDeviceUnreachable = "Device Unreachable"
	AlertDeviceBackOnline  = "Device Back Online"
	AlertHighResponseTime  = "High Response Time"
	AlertHighMemoryUsage   = "High Memory Usage"
	AlertHighCPUUsage      = "High CPU Usage"
	AlertSystemRestarted   = "System Restarted"
)

// Alert is a single notable event tied to a device or to the system
type Alert struct {
	ID           string     `json:"id"`
	DeviceID     string     `json:"device_id"`
	Type         string     `json:"type"`
	Severity     Severity   `json:"severity"`
	Message      string     `json:"message"`
	Value        float64    `json:"value,omitempty"`
	Threshold    float64    `json:"threshold,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
	Acknowledged bool       `json:"acknowledged"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

// AlertMatcher selects alerts for bulk acknowledgement
type AlertMatcher struct {
	// IDs restricts the match to these alert IDs when non-empty
	IDs []string
	// Type restricts the match to one alert type when non-empty
	Type string
}

// Matches reports whether a is unacknowledged and selected by m
func (m AlertMatcher) Matches(a Alert) bool {
	if a.Acknowledged {
		return false
	}
	if m.Type != "" && a.Type != m.Type {
		return false
	}
	if len(m.IDs) > 0 {
		for _, id := range m.IDs {
			if id == a.ID {
				return true
			}
		}
		return false
	}
	return true
}
