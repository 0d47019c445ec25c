// Package config provides configuration management for netsentry.
//
// Settings come from a YAML file, then NETSENTRY_* environment variables
// (optionally from a .env file) override individual values.
//
// Config file locations (priority order):
//  1. $NETSENTRY_CONFIG
//  2. ./netsentry.yaml
//  3. ~/.config/netsentry/config.yaml
//  4. /etc/netsentry/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"netsentry/internal/domain"
)

// Load reads .env, finds and loads the config file (or defaults if none is
// found) and applies environment overrides.
func Load() (*Config, string, error) {
	LoadDotEnv()

	path := FindConfigPath()

	var (
		cfg *Config
		err error
	)
	if path == "" {
		cfg = DefaultConfig()
	} else if cfg, _, err = LoadFromPath(path); err != nil {
		return nil, path, err
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}

	return cfg, path, nil
}

// LoadFromPath loads config from a specific path. Keys missing from the
// file keep their default values.
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	return cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	return &Config{
		Version:  1,
		Mode:     ModeDiscovery,
		Server:   ServerConfig{Addr: ":8080"},
		Log:      LogConfig{Level: "info"},
		Database: DatabaseConfig{Path: "./netsentry.db"},
		Monitor: MonitorConfig{
			IntervalMinutes:  5,
			Autostart:        true,
			FailureThreshold: 3,
			HighResponseMs:   1000,
		},
		Alerts: AlertConfig{
			DedupWindow:  Duration(5 * time.Minute),
			AutoAckAfter: Duration(time.Hour),
		},
		System: SystemConfig{
			Enabled:       true,
			MemoryPercent: 90,
			CPUPercent:    90,
			MinUptime:     Duration(10 * time.Minute),
			CPUSample:     Duration(500 * time.Millisecond),
		},
		Discovery: DiscoveryConfig{
			PingTimeout:     Duration(3 * time.Second),
			PingRetries:     1,
			PortTimeout:     Duration(2 * time.Second),
			SNMPTimeout:     Duration(2 * time.Second),
			SSHTimeout:      Duration(5 * time.Second),
			ARPPath:         "/proc/net/arp",
			BulkConcurrency: 10,
			NmapTimeout:     Duration(10 * time.Minute),
			MaxScanDuration: Duration(time.Hour),
		},
		MQTT: MQTTConfig{
			ClientID:    "netsentry",
			TopicPrefix: "netsentry",
		},
	}
}

// applyDefaults fills in zeroed values with defaults
func (c *Config) applyDefaults() {
	d := DefaultConfig()

	if c.Version == 0 {
		c.Version = d.Version
	}
	if c.Mode == "" {
		c.Mode = d.Mode
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Database.Path == "" {
		c.Database.Path = d.Database.Path
	}
	if c.Monitor.IntervalMinutes <= 0 {
		c.Monitor.IntervalMinutes = d.Monitor.IntervalMinutes
	}
	if c.Monitor.FailureThreshold <= 0 {
		c.Monitor.FailureThreshold = d.Monitor.FailureThreshold
	}
	if c.Monitor.HighResponseMs <= 0 {
		c.Monitor.HighResponseMs = d.Monitor.HighResponseMs
	}
	if c.Alerts.DedupWindow <= 0 {
		c.Alerts.DedupWindow = d.Alerts.DedupWindow
	}
	if c.Alerts.AutoAckAfter <= 0 {
		c.Alerts.AutoAckAfter = d.Alerts.AutoAckAfter
	}
	if c.Discovery.BulkConcurrency <= 0 {
		c.Discovery.BulkConcurrency = d.Discovery.BulkConcurrency
	}
	if c.Discovery.MaxScanDuration <= 0 {
		c.Discovery.MaxScanDuration = d.Discovery.MaxScanDuration
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = d.MQTT.ClientID
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = d.MQTT.TopicPrefix
	}
}

// Validate rejects settings the engine cannot run with
func (c *Config) Validate() error {
	if !c.Mode.Valid() {
		return fmt.Errorf("invalid mode %q", c.Mode)
	}
	if c.Monitor.IntervalMinutes <= 0 {
		return fmt.Errorf("monitor.interval_minutes must be positive, got %d", c.Monitor.IntervalMinutes)
	}
	if c.Monitor.SweepConcurrency < 0 {
		return fmt.Errorf("monitor.sweep_concurrency must not be negative")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	for i, cred := range c.Credentials.SSH {
		if cred.Username == "" {
			return fmt.Errorf("credentials.ssh[%d]: username is required", i)
		}
		if cred.Password == "" && cred.KeyPath == "" {
			return fmt.Errorf("credentials.ssh[%d]: password or key_path is required", i)
		}
	}
	return nil
}

// ProbeCredentials resolves configured credentials, reading SSH key files
func (c *Config) ProbeCredentials() (domain.Credentials, error) {
	creds := domain.Credentials{
		SNMPCommunities: append([]string(nil), c.Credentials.SNMPCommunities...),
	}

	for _, sc := range c.Credentials.SSH {
		cred := domain.SSHCredential{Username: sc.Username, Password: sc.Password}
		if sc.KeyPath != "" {
			key, err := os.ReadFile(sc.KeyPath)
			if err != nil {
				return domain.Credentials{}, fmt.Errorf("read ssh key for %s: %w", sc.Username, err)
			}
			cred.PrivateKey = string(key)
		}
		creds.SSH = append(creds.SSH, cred)
	}

	return creds, nil
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	summary := fmt.Sprintf("Mode: %s, Interval: %dm, Database: %s\n", c.Mode, c.Monitor.IntervalMinutes, c.Database.Path)
	summary += fmt.Sprintf("Failure threshold: %d, Dedup: %s, Auto-ack: %s",
		c.Monitor.FailureThreshold, c.Alerts.DedupWindow.Duration(), c.Alerts.AutoAckAfter.Duration())
	if c.MQTT.Broker != "" {
		summary += fmt.Sprintf("\nMQTT: %s (%s/...)", c.MQTT.Broker, c.MQTT.TopicPrefix)
	}
	return summary
}
