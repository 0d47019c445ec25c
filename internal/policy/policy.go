// Package policy holds the alert deduplication and auto-acknowledge rules
// shared by device alerts and system resource alerts. Everything here is
// pure: callers decide what to do with the answers.
package policy

import (
	"time"

	"netsentry/internal/domain"
)

const (
	DefaultDedupWindow  = 5 * time.Minute
	DefaultAutoAckAfter = time.Hour
)

// ShouldSuppress reports whether an unacknowledged alert of candidateType
// was raised within window of now.
func ShouldSuppress(existing []domain.Alert, candidateType string, window time.Duration, now time.Time) bool {
	for _, a := range existing {
		if a.Acknowledged || a.Type != candidateType {
			continue
		}
		if now.Sub(a.Timestamp) < window {
			return true
		}
	}
	return false
}

// ShouldAutoAcknowledge reports whether an info alert has been pending for
// longer than after.
func ShouldAutoAcknowledge(alert domain.Alert, after time.Duration, now time.Time) bool {
	return alert.Severity == domain.SeverityInfo &&
		!alert.Acknowledged &&
		now.Sub(alert.Timestamp) > after
}

// Config holds the policy windows
type Config struct {
	DedupWindow  time.Duration
	AutoAckAfter time.Duration
}

// DefaultConfig returns the five minute dedup and one hour auto-ack windows
func DefaultConfig() Config {
	return Config{
		DedupWindow:  DefaultDedupWindow,
		AutoAckAfter: DefaultAutoAckAfter,
	}
}

// Policy applies the rules with configured windows
type Policy struct {
	cfg Config
}

// New creates a Policy, filling zero windows with defaults
func New(cfg Config) *Policy {
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = DefaultDedupWindow
	}
	if cfg.AutoAckAfter <= 0 {
		cfg.AutoAckAfter = DefaultAutoAckAfter
	}
	return &Policy{cfg: cfg}
}

// Config returns the effective windows
func (p *Policy) Config() Config {
	return p.cfg
}

func (p *Policy) ShouldSuppress(existing []domain.Alert, candidateType string, now time.Time) bool {
	return ShouldSuppress(existing, candidateType, p.cfg.DedupWindow, now)
}

func (p *Policy) ShouldAutoAcknowledge(alert domain.Alert, now time.Time) bool {
	return ShouldAutoAcknowledge(alert, p.cfg.AutoAckAfter, now)
}

// AutoAcknowledgeIDs returns the IDs of alerts due for auto-acknowledgement
func (p *Policy) AutoAcknowledgeIDs(alerts []domain.Alert, now time.Time) []string {
	var ids []string
	for _, a := range alerts {
		if p.ShouldAutoAcknowledge(a, now) {
			ids = append(ids, a.ID)
		}
	}
	return ids
}
