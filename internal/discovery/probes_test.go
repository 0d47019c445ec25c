package discovery

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gosnmp/gosnmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const arpFixture = `IP address       HW type     Flags       HW address            Mask     Device
192.168.1.1      0x1         0x2         aa:bb:cc:dd:ee:ff     *        eth0
192.168.1.20     0x1         0x0         00:00:00:00:00:00     *        eth0
192.168.1.150    0x1         0x2         b8:27:eb:11:22:33     *        wlan0
`

func TestParseARP(t *testing.T) {
	entries, err := ParseARP(strings.NewReader(arpFixture))
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"192.168.1.1":   "AA:BB:CC:DD:EE:FF",
		"192.168.1.150": "B8:27:EB:11:22:33",
	}, entries)
}

func TestARPTableLookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arp")
	require.NoError(t, os.WriteFile(path, []byte(arpFixture), 0o644))

	table := NewARPTable(path)

	mac, ok, err := table.Lookup(context.Background(), "192.168.1.1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", mac)

	_, ok, err = table.Lookup(context.Background(), "192.168.1.20")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = NewARPTable(filepath.Join(t.TempDir(), "missing")).Lookup(context.Background(), "192.168.1.1")
	assert.Error(t, err)
}

func TestOUIDatabase(t *testing.T) {
	db := NewOUIDatabase()

	assert.Equal(t, "VMware", db.Lookup("00:50:56:aa:bb:cc"))
	assert.Equal(t, "VMware", db.Lookup("00-50-56-AA-BB-CC"))
	assert.Equal(t, UnknownVendor, db.Lookup("12:34:56:78:9a:bc"))
	assert.Equal(t, UnknownVendor, db.Lookup(""))

	path := filepath.Join(t.TempDir(), "oui.jsonl")
	content := `{"oui": "12:34:56", "company": "Acme Networks"}
not json
{"oui": "00:50:56", "company": "VMware, Inc."}
{"oui": "", "company": "Nobody"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	n, err := db.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "Acme Networks", db.Lookup("12:34:56:78:9a:bc"))
	assert.Equal(t, "VMware, Inc.", db.Lookup("00:50:56:00:00:01"))
}

func TestParseSystemGroup(t *testing.T) {
	data := parseSystemGroup([]gosnmp.SnmpPDU{
		{Name: oidSysDescr, Type: gosnmp.OctetString, Value: []byte("RouterOS CCR1009 ")},
		{Name: oidSysName, Type: gosnmp.OctetString, Value: []byte("edge-1")},
		{Name: oidSysObjectID, Type: gosnmp.ObjectIdentifier, Value: ".1.3.6.1.4.1.14988.1"},
		{Name: oidSysUpTime, Type: gosnmp.TimeTicks, Value: uint32(123456)},
	})

	assert.Equal(t, "RouterOS CCR1009", data.SysDescr)
	assert.Equal(t, "edge-1", data.SysName)
	assert.Equal(t, ".1.3.6.1.4.1.14988.1", data.SysObjectID)
	assert.Equal(t, uint32(123456), data.SysUpTimeTicks)
}

func TestParseSystemGroupSkipsMissing(t *testing.T) {
	data := parseSystemGroup([]gosnmp.SnmpPDU{
		{Name: oidSysDescr, Type: gosnmp.NoSuchObject},
		{Name: oidSysName, Type: gosnmp.OctetString, Value: []byte("ap-2")},
	})

	assert.Empty(t, data.SysDescr)
	assert.Equal(t, "ap-2", data.SysName)
}

func TestBuildSSHConfig(t *testing.T) {
	p := NewSSHFactProber(0)

	_, err := p.buildSSHConfig(domainCred("", "pw", ""))
	assert.Error(t, err)

	_, err = p.buildSSHConfig(domainCred("ops", "", ""))
	assert.Error(t, err)

	_, err = p.buildSSHConfig(domainCred("ops", "", "not a key"))
	assert.Error(t, err)

	cfg, err := p.buildSSHConfig(domainCred("ops", "pw", ""))
	require.NoError(t, err)
	assert.Equal(t, "ops", cfg.User)
	assert.Len(t, cfg.Auth, 1)
}
