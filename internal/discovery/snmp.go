package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"netsentry/internal/domain"
)

// System group and interface table OIDs
const (
	oidSysDescr    = ".1.3.6.1.2.1.1.1.0"
	oidSysObjectID = ".1.3.6.1.2.1.1.2.0"
	oidSysUpTime   = ".1.3.6.1.2.1.1.3.0"
	oidSysName     = ".1.3.6.1.2.1.1.5.0"
	oidIfDescr     = ".1.3.6.1.2.1.2.2.1.2"
)

var defaultCommunities = []string{"public", "private"}

// CommunityCandidates returns supplied communities followed by the defaults,
// deduplicated with order preserved.
func CommunityCandidates(supplied []string) []string {
	seen := make(map[string]bool)
	var out []string

	for _, c := range append(append([]string(nil), supplied...), defaultCommunities...) {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}

	return out
}

// SNMPQuerier reads the system group from one agent with one community
type SNMPQuerier interface {
	Query(ctx context.Context, address, community string) (*domain.SNMPData, error)
}

// GoSNMPQuerier is an SNMPv2c client built on gosnmp
type GoSNMPQuerier struct {
	timeout time.Duration
	port    uint16
}

// NewGoSNMPQuerier creates a querier with a per-request timeout
func NewGoSNMPQuerier(timeout time.Duration) *GoSNMPQuerier {
	return &GoSNMPQuerier{timeout: timeout, port: 161}
}

func (q *GoSNMPQuerier) Query(ctx context.Context, address, community string) (*domain.SNMPData, error) {
	client := &gosnmp.GoSNMP{
		Target:    address,
		Port:      q.port,
		Community: community,
		Version:   gosnmp.Version2c,
		Timeout:   q.timeout,
		Retries:   0,
		Context:   ctx,
		MaxOids:   gosnmp.MaxOids,
	}

	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer client.Conn.Close()

	packet, err := client.Get([]string{oidSysDescr, oidSysObjectID, oidSysUpTime, oidSysName})
	if err != nil {
		return nil, fmt.Errorf("get system group: %w", err)
	}
	if packet.Error != gosnmp.NoError {
		return nil, fmt.Errorf("agent error: %s", packet.Error)
	}

	data := parseSystemGroup(packet.Variables)

	// Interface descriptions are best-effort
	if pdus, err := client.BulkWalkAll(oidIfDescr); err == nil {
		for _, pdu := range pdus {
			if s, ok := pduString(pdu); ok && s != "" {
				data.Interfaces = append(data.Interfaces, s)
			}
		}
	}

	return data, nil
}

func parseSystemGroup(vars []gosnmp.SnmpPDU) *domain.SNMPData {
	data := &domain.SNMPData{}

	for _, v := range vars {
		switch v.Type {
		case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView, gosnmp.Null:
			continue
		}

		switch v.Name {
		case oidSysDescr:
			data.SysDescr, _ = pduString(v)
		case oidSysName:
			data.SysName, _ = pduString(v)
		case oidSysObjectID:
			data.SysObjectID, _ = pduString(v)
		case oidSysUpTime:
			data.SysUpTimeTicks = uint32(gosnmp.ToBigInt(v.Value).Uint64())
		}
	}

	return data
}

func pduString(v gosnmp.SnmpPDU) (string, bool) {
	switch val := v.Value.(type) {
	case []byte:
		return strings.TrimSpace(string(val)), true
	case string:
		return strings.TrimSpace(val), true
	default:
		return "", false
	}
}
