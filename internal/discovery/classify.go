package discovery

import (
	"strings"

	"netsentry/internal/domain"
)

// descrKeywords is checked in order; appliance keywords come before OS
// names because many appliances report a Linux kernel.
var descrKeywords = []struct {
	keywords []string
	typ      domain.DeviceType
}{
	{[]string{"router", "routeros", "edgeos"}, domain.DeviceTypeRouter},
	{[]string{"switch"}, domain.DeviceTypeSwitch},
	{[]string{"printer", "laserjet", "jetdirect"}, domain.DeviceTypePrinter},
	{[]string{"camera", "ipcam", "nvr"}, domain.DeviceTypeCamera},
	{[]string{"nas", "diskstation", "synology", "qnap", "truenas"}, domain.DeviceTypeNAS},
	{[]string{"linux", "windows", "darwin", "freebsd", "macos", "ubuntu"}, domain.DeviceTypeComputer},
}

// Classify picks a device type: SNMP sysDescr keywords first, then an SSH
// reported OS, then the open port signature.
func Classify(r *domain.DiscoveryResult) domain.DeviceType {
	if r.SNMP != nil && r.SNMP.SysDescr != "" {
		if t := classifyDescr(r.SNMP.SysDescr); t != domain.DeviceTypeUnknown {
			return t
		}
	}

	if r.OS != "" {
		return domain.DeviceTypeComputer
	}

	return classifyPorts(r.OpenPorts)
}

// classifyDescr matches keywords anywhere in the description so vendor
// compounds like RouterBOARD or DiskStation still hit.
func classifyDescr(descr string) domain.DeviceType {
	descr = strings.ToLower(descr)

	for _, group := range descrKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(descr, kw) {
				return group.typ
			}
		}
	}

	return domain.DeviceTypeUnknown
}

func classifyPorts(ports []int) domain.DeviceType {
	set := make(map[int]bool, len(ports))
	for _, p := range ports {
		set[p] = true
	}

	switch {
	case set[snmpPort]:
		return domain.DeviceTypeSwitch
	case set[telnetPort] && !set[httpPort]:
		return domain.DeviceTypeRouter
	case set[httpPort] || set[httpsPort]:
		return domain.DeviceTypeServer
	default:
		return domain.DeviceTypeUnknown
	}
}
