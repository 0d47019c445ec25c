package config

import "strings"

// Mode caps how much active probing this instance may do
type Mode string

const (
	ModePassive   Mode = "passive"   // API only, nothing is probed
	ModeMonitor   Mode = "monitor"   // + scheduled health checks
	ModeDiscovery Mode = "discovery" // + on-demand discovery and bulk scans
)

var modeLevels = map[Mode]int{
	ModePassive:   0,
	ModeMonitor:   1,
	ModeDiscovery: 2,
}

// ParseMode reads a mode name case-insensitively. Unknown names fall back
// to ModeMonitor.
func ParseMode(s string) Mode {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if m.Valid() {
		return m
	}
	return ModeMonitor
}

// Valid reports whether m is a known mode
func (m Mode) Valid() bool {
	_, ok := modeLevels[m]
	return ok
}

// Level orders modes by capability; unknown modes rank as monitor
func (m Mode) Level() int {
	if level, ok := modeLevels[m]; ok {
		return level
	}
	return modeLevels[ModeMonitor]
}

// Allows reports whether m includes everything required permits
func (m Mode) Allows(required Mode) bool {
	return m.Level() >= required.Level()
}
