package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment overrides
const (
	EnvMode             = "NETSENTRY_MODE"
	EnvAddr             = "NETSENTRY_ADDR"
	EnvLogLevel         = "NETSENTRY_LOG_LEVEL"
	EnvDebug            = "NETSENTRY_DEBUG"
	EnvDBPath           = "NETSENTRY_DB_PATH"
	EnvIntervalMinutes  = "NETSENTRY_INTERVAL_MINUTES"
	EnvAutostart        = "NETSENTRY_AUTOSTART"
	EnvFailureThreshold = "NETSENTRY_FAILURE_THRESHOLD"
	EnvHighResponseMs   = "NETSENTRY_HIGH_RESPONSE_MS"
	EnvDedupWindow      = "NETSENTRY_DEDUP_WINDOW"
	EnvAutoAckAfter     = "NETSENTRY_AUTO_ACK_AFTER"
	EnvSNMPCommunities  = "NETSENTRY_SNMP_COMMUNITIES"
	EnvDNSServer        = "NETSENTRY_DNS_SERVER"
	EnvMQTTBroker       = "NETSENTRY_MQTT_BROKER"
	EnvMQTTUsername     = "NETSENTRY_MQTT_USERNAME"
	EnvMQTTPassword     = "NETSENTRY_MQTT_PASSWORD"
	EnvMQTTTopicPrefix  = "NETSENTRY_MQTT_TOPIC_PREFIX"
)

// LoadDotEnv loads a .env file from the working directory if one exists
func LoadDotEnv() {
	_ = godotenv.Load()
}

// ApplyEnv overrides file values with NETSENTRY_* variables. Values that
// fail to parse are ignored.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvMode); v != "" {
		c.Mode = ParseMode(v)
	}
	c.Server.Addr = getEnv(EnvAddr, c.Server.Addr)
	c.Log.Level = getEnv(EnvLogLevel, c.Log.Level)
	c.Log.Debug = getEnvBool(EnvDebug, c.Log.Debug)
	c.Database.Path = getEnv(EnvDBPath, c.Database.Path)

	c.Monitor.IntervalMinutes = getEnvInt(EnvIntervalMinutes, c.Monitor.IntervalMinutes)
	c.Monitor.Autostart = getEnvBool(EnvAutostart, c.Monitor.Autostart)
	c.Monitor.FailureThreshold = getEnvInt(EnvFailureThreshold, c.Monitor.FailureThreshold)
	c.Monitor.HighResponseMs = getEnvFloat(EnvHighResponseMs, c.Monitor.HighResponseMs)
	c.Alerts.DedupWindow = getEnvDuration(EnvDedupWindow, c.Alerts.DedupWindow)
	c.Alerts.AutoAckAfter = getEnvDuration(EnvAutoAckAfter, c.Alerts.AutoAckAfter)

	if v := os.Getenv(EnvSNMPCommunities); v != "" {
		var communities []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				communities = append(communities, part)
			}
		}
		c.Credentials.SNMPCommunities = communities
	}
	c.Discovery.DNSServer = getEnv(EnvDNSServer, c.Discovery.DNSServer)

	c.MQTT.Broker = getEnv(EnvMQTTBroker, c.MQTT.Broker)
	c.MQTT.Username = getEnv(EnvMQTTUsername, c.MQTT.Username)
	c.MQTT.Password = getEnv(EnvMQTTPassword, c.MQTT.Password)
	c.MQTT.TopicPrefix = getEnv(EnvMQTTTopicPrefix, c.MQTT.TopicPrefix)
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue Duration) Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return Duration(d)
}
