package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath names an explicit config file
	EnvConfigPath = "NETSENTRY_CONFIG"
	// ConfigFileName is looked up in the working directory
	ConfigFileName = "netsentry.yaml"
	// ConfigDirName is the directory under XDG and /etc
	ConfigDirName = "netsentry"
)

// searchPaths lists config candidates in priority order:
// $NETSENTRY_CONFIG, ./netsentry.yaml, $XDG_CONFIG_HOME/netsentry/config.yaml,
// ~/.config/netsentry/config.yaml, /etc/netsentry/config.yaml
func searchPaths() []string {
	var paths []string

	if p := os.Getenv(EnvConfigPath); p != "" {
		paths = append(paths, p)
	}
	if abs, err := filepath.Abs(ConfigFileName); err == nil {
		paths = append(paths, abs)
	} else {
		paths = append(paths, ConfigFileName)
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, ConfigDirName, "config.yaml"))
	}
	if home := os.Getenv("HOME"); home != "" {
		paths = append(paths, filepath.Join(home, ".config", ConfigDirName, "config.yaml"))
	}

	return append(paths, filepath.Join("/etc", ConfigDirName, "config.yaml"))
}

// FindConfigPath returns the first existing candidate from searchPaths, or
// "" when there is none
func FindConfigPath() string {
	for _, p := range searchPaths() {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}
