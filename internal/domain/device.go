package domain

import "time"

// DeviceType is the best-effort classification of a device
type DeviceType string

const (
	DeviceTypeRouter   DeviceType = "router"
	DeviceTypeSwitch   DeviceType = "switch"
	DeviceTypeServer   DeviceType = "server"
	DeviceTypePrinter  DeviceType = "printer"
	DeviceTypeCamera   DeviceType = "camera"
	DeviceTypeNAS      DeviceType = "nas"
	DeviceTypeComputer DeviceType = "computer"
	DeviceTypeUnknown  DeviceType = "unknown"
)

// DeviceStatus is the debounced reachability state of a device.
// The zero value means the device has never been evaluated.
type DeviceStatus string

const (
	DeviceStatusOnline  DeviceStatus = "online"
	DeviceStatusOffline DeviceStatus = "offline"
)

// Metrics holds per-device health counters
type Metrics struct {
	LastSeen            *time.Time `json:"last_seen,omitempty"`
	ResponseTimeMs      *float64   `json:"response_time_ms,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
}

// Device represents a monitored network host
type Device struct {
	ID          string       `json:"id"`
	Address     string       `json:"address"`
	DisplayName string       `json:"display_name,omitempty"`
	Hostname    string       `json:"hostname,omitempty"`
	Vendor      string       `json:"vendor,omitempty"`
	Model       string       `json:"model,omitempty"`
	MACAddress  string       `json:"mac_address,omitempty"`
	DeviceType  DeviceType   `json:"device_type"`
	Status      DeviceStatus `json:"status,omitempty"`
	Metrics     Metrics      `json:"metrics"`
	OpenPorts   []int        `json:"open_ports,omitempty"`
	Services    []string     `json:"services,omitempty"`
	Alerts      []Alert      `json:"alerts,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Name returns the label shown to operators: display name, then hostname,
// then the address.
func (d *Device) Name() string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	if d.Hostname != "" {
		return d.Hostname
	}
	return d.Address
}

// UnacknowledgedAlerts returns the alerts still awaiting acknowledgement
func (d *Device) UnacknowledgedAlerts() []Alert {
	var out []Alert
	for _, a := range d.Alerts {
		if !a.Acknowledged {
			out = append(out, a)
		}
	}
	return out
}

// DevicePatch is a partial device update. Nil fields are left unchanged.
type DevicePatch struct {
	DisplayName *string
	Hostname    *string
	Vendor      *string
	Model       *string
	MACAddress  *string
	DeviceType  *DeviceType
	Status      *DeviceStatus
	Metrics     *Metrics
	OpenPorts   []int
	Services    []string
}

// IsEmpty reports whether the patch changes nothing
func (p DevicePatch) IsEmpty() bool {
	return p.DisplayName == nil && p.Hostname == nil && p.Vendor == nil &&
		p.Model == nil && p.MACAddress == nil && p.DeviceType == nil &&
		p.Status == nil && p.Metrics == nil && p.OpenPorts == nil && p.Services == nil
}

// Apply writes the non-nil fields of p onto d
func (p DevicePatch) Apply(d *Device) {
	if p.DisplayName != nil {
		d.DisplayName = *p.DisplayName
	}
	if p.Hostname != nil {
		d.Hostname = *p.Hostname
	}
	if p.Vendor != nil {
		d.Vendor = *p.Vendor
	}
	if p.Model != nil {
		d.Model = *p.Model
	}
	if p.MACAddress != nil {
		d.MACAddress = *p.MACAddress
	}
	if p.DeviceType != nil {
		d.DeviceType = *p.DeviceType
	}
	if p.Status != nil {
		d.Status = *p.Status
	}
	if p.Metrics != nil {
		d.Metrics = *p.Metrics
	}
	if p.OpenPorts != nil {
		d.OpenPorts = p.OpenPorts
	}
	if p.Services != nil {
		d.Services = p.Services
	}
}

// DeviceFilter narrows ListDevices. Zero values match everything.
type DeviceFilter struct {
	Status     DeviceStatus
	DeviceType DeviceType
}

// Matches reports whether d passes the filter
func (f DeviceFilter) Matches(d *Device) bool {
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	if f.DeviceType != "" && d.DeviceType != f.DeviceType {
		return false
	}
	return true
}
