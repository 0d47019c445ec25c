package config

import (
	"time"
)

// Config is the root configuration structure
type Config struct {
	Version     int               `yaml:"version"`
	Mode        Mode              `yaml:"mode"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Database    DatabaseConfig    `yaml:"database"`
	Monitor     MonitorConfig     `yaml:"monitor"`
	Alerts      AlertConfig       `yaml:"alerts"`
	System      SystemConfig      `yaml:"system"`
	Discovery   DiscoveryConfig   `yaml:"discovery"`
	Credentials CredentialsConfig `yaml:"credentials"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	// Inventory optionally points at a YAML device list seeded at startup
	Inventory string `yaml:"inventory,omitempty"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level string `yaml:"level"`
	Debug bool   `yaml:"debug"`
}

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// MonitorConfig holds scheduler and per-device thresholds
type MonitorConfig struct {
	IntervalMinutes  int     `yaml:"interval_minutes"`
	Autostart        bool    `yaml:"autostart"`
	FailureThreshold int     `yaml:"failure_threshold"`
	HighResponseMs   float64 `yaml:"high_response_ms"`
	SweepConcurrency int     `yaml:"sweep_concurrency"` // 0 = unbounded
}

// AlertConfig holds alert policy windows
type AlertConfig struct {
	DedupWindow  Duration `yaml:"dedup_window"`
	AutoAckAfter Duration `yaml:"auto_ack_after"`
}

// SystemConfig holds host resource thresholds
type SystemConfig struct {
	Enabled       bool     `yaml:"enabled"`
	MemoryPercent float64  `yaml:"memory_percent"`
	CPUPercent    float64  `yaml:"cpu_percent"`
	MinUptime     Duration `yaml:"min_uptime"`
	CPUSample     Duration `yaml:"cpu_sample"`
}

// DiscoveryConfig holds probe timeouts and sources
type DiscoveryConfig struct {
	PingTimeout     Duration `yaml:"ping_timeout"`
	PingRetries     int      `yaml:"ping_retries"`
	PortTimeout     Duration `yaml:"port_timeout"`
	SNMPTimeout     Duration `yaml:"snmp_timeout"`
	SSHTimeout      Duration `yaml:"ssh_timeout"`
	Ports           []int    `yaml:"ports,omitempty"`
	ARPPath         string   `yaml:"arp_path"`
	OUIPath         string   `yaml:"oui_path,omitempty"`
	DNSServer       string   `yaml:"dns_server,omitempty"`
	BulkConcurrency int      `yaml:"bulk_concurrency"`
	NmapTimeout     Duration `yaml:"nmap_timeout"`
	// MaxScanDuration bounds a bulk scan; an older scan lease is treated
	// as abandoned
	MaxScanDuration Duration `yaml:"max_scan_duration"`
}

// CredentialsConfig holds probe credentials. SSH keys are referenced by
// path, not stored inline.
type CredentialsConfig struct {
	SNMPCommunities []string        `yaml:"snmp_communities,omitempty"`
	SSH             []SSHCredential `yaml:"ssh,omitempty"`
}

// SSHCredential is one SSH login candidate
type SSHCredential struct {
	Username string `yaml:"username"`
	Password string `yaml:"password,omitempty"`
	KeyPath  string `yaml:"key_path,omitempty"`
}

// MQTTConfig holds the optional broker connection; empty Broker disables it
type MQTTConfig struct {
	Broker      string `yaml:"broker,omitempty"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
}

// Duration wraps time.Duration for YAML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
