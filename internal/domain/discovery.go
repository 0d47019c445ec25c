package domain

import "time"

// ProbeMethod names one probe strategy of the discovery engine
type ProbeMethod string

const (
	MethodReachability  ProbeMethod = "reachability-probe"
	MethodMACResolution ProbeMethod = "mac-resolution"
	MethodPortScan      ProbeMethod = "port-scan"
	MethodSNMP          ProbeMethod = "snmp"
	MethodSSH           ProbeMethod = "ssh"
)

// DefaultMethods is the order used when a caller requests no methods
var DefaultMethods = []ProbeMethod{
	MethodReachability,
	MethodMACResolution,
	MethodPortScan,
	MethodSNMP,
}

// SNMPData holds the system group values read from an agent
type SNMPData struct {
	SysName        string   `json:"sys_name,omitempty"`
	SysDescr       string   `json:"sys_descr,omitempty"`
	SysObjectID    string   `json:"sys_object_id,omitempty"`
	SysUpTimeTicks uint32   `json:"sys_uptime_ticks,omitempty"`
	Interfaces     []string `json:"interfaces,omitempty"`
}

// DiscoveryResult is the merged output of one discovery pass for one address
type DiscoveryResult struct {
	Address        string        `json:"address"`
	Reachable      bool          `json:"reachable"`
	ResponseTimeMs *float64      `json:"response_time_ms,omitempty"`
	MACAddress     string        `json:"mac_address,omitempty"`
	Vendor         string        `json:"vendor,omitempty"`
	Hostname       string        `json:"hostname,omitempty"`
	OpenPorts      []int         `json:"open_ports,omitempty"`
	Services       []string      `json:"services,omitempty"`
	SNMP           *SNMPData     `json:"snmp,omitempty"`
	OS             string        `json:"os,omitempty"`
	DeviceType     DeviceType    `json:"device_type"`
	Methods        []ProbeMethod `json:"methods,omitempty"`
}

// HasPort reports whether port was found open
func (r *DiscoveryResult) HasPort(port int) bool {
	for _, p := range r.OpenPorts {
		if p == port {
			return true
		}
	}
	return false
}

// MarkReachable records that method saw the device
func (r *DiscoveryResult) MarkReachable(method ProbeMethod) {
	r.Reachable = true
	for _, m := range r.Methods {
		if m == method {
			return
		}
	}
	r.Methods = append(r.Methods, method)
}

// ProbeResult is a single reachability observation
type ProbeResult struct {
	Alive          bool     `json:"alive"`
	ResponseTimeMs *float64 `json:"response_time_ms,omitempty"`
}

// ScanState is the bulk-scan coordination flag
type ScanState struct {
	IsRunning bool      `json:"is_running"`
	Owner     string    `json:"owner,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
}

// SSHCredential is one login candidate for the SSH fact probe
type SSHCredential struct {
	Username   string `json:"username" yaml:"username"`
	Password   string `json:"password,omitempty" yaml:"password,omitempty"`
	PrivateKey string `json:"private_key,omitempty" yaml:"private_key,omitempty"`
}

// Credentials are the candidates a discovery pass may try
type Credentials struct {
	SNMPCommunities []string        `json:"snmp_communities,omitempty" yaml:"snmp_communities,omitempty"`
	SSH             []SSHCredential `json:"ssh,omitempty" yaml:"ssh,omitempty"`
}
