package discovery

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// UnknownVendor is returned for MAC prefixes not in the table
const UnknownVendor = "Unknown"

// OUIEntry is one line of a JSON-lines OUI file
type OUIEntry struct {
	OUI     string `json:"oui"`
	Company string `json:"company"`
}

// OUIDatabase maps the first three octets of a MAC address to a vendor
type OUIDatabase struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewOUIDatabase returns a database seeded with common vendors
func NewOUIDatabase() *OUIDatabase {
	db := &OUIDatabase{entries: make(map[string]string)}
	db.initializeDefaults()
	return db
}

func (db *OUIDatabase) initializeDefaults() {
	for prefix, vendor := range map[string]string{
		"00:00:0C": "Cisco",
		"00:18:0A": "Cisco Meraki",
		"00:03:93": "Apple",
		"00:14:22": "Dell",
		"00:1B:21": "Intel",
		"00:50:56": "VMware",
		"00:0C:29": "VMware",
		"B8:27:EB": "Raspberry Pi Foundation",
		"DC:A6:32": "Raspberry Pi Trading",
		"F0:9F:C2": "Ubiquiti",
		"00:11:32": "Synology",
		"00:08:9B": "QNAP",
		"3C:84:6A": "TP-Link",
		"00:80:77": "Brother",
		"00:00:48": "Seiko Epson",
		"44:19:B6": "Hikvision",
		"00:17:88": "Philips Lighting",
	} {
		db.entries[prefix] = vendor
	}
}

// LoadFile merges a JSON-lines file of {"oui", "company"} entries.
// Malformed lines are skipped. Returns the number of entries loaded.
func (db *OUIDatabase) LoadFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open OUI database: %w", err)
	}
	defer f.Close()

	db.mu.Lock()
	defer db.mu.Unlock()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry OUIEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}

		prefix := normalizeOUI(entry.OUI)
		if prefix == "" || entry.Company == "" {
			continue
		}

		db.entries[prefix] = entry.Company
		count++
	}

	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("read OUI database: %w", err)
	}

	return count, nil
}

// Lookup returns the vendor for mac, or UnknownVendor
func (db *OUIDatabase) Lookup(mac string) string {
	prefix := normalizeOUI(mac)
	if prefix == "" {
		return UnknownVendor
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	if vendor, ok := db.entries[prefix]; ok {
		return vendor
	}
	return UnknownVendor
}

// normalizeOUI returns the upper-case "AA:BB:CC" prefix of a MAC or OUI
func normalizeOUI(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.NewReplacer("-", "", ":", "", ".", "").Replace(s)
	if len(s) < 6 {
		return ""
	}
	return s[0:2] + ":" + s[2:4] + ":" + s[4:6]
}
