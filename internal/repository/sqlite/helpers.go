package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"netsentry/internal/domain"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// Timestamps are stored as RFC3339Nano text in UTC.
const timeLayout = time.RFC3339Nano

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// timeToText formats t for storage
func timeToText(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// textToTime parses a stored timestamp
func textToTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// timePtrToNull converts *time.Time to a nullable text column
func timePtrToNull(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: timeToText(*t), Valid: true}
}

// nullToTimePtr parses a nullable text column into *time.Time
func nullToTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := textToTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// floatPtrToNull converts *float64 to sql.NullFloat64
func floatPtrToNull(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// nullToFloatPtr converts sql.NullFloat64 to *float64
func nullToFloatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}

// boolToInt stores booleans as 0/1
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ============================================================================
// JSON Marshaling Helpers
// ============================================================================

// unmarshalJSONField safely unmarshals JSON from nullable string into target
func unmarshalJSONField(ns sql.NullString, target interface{}) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(ns.String), target)
}

// marshalSliceToNull marshals a slice to nullable JSON; empty slices are NULL
func marshalSliceToNull[T any](v []T) (sql.NullString, error) {
	if len(v) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// ============================================================================
// Device Row Scanner
// ============================================================================

// deviceRow holds all columns from a device query for scanning
type deviceRow struct {
	ID                  string
	Address             string
	DisplayName         sql.NullString
	Hostname            sql.NullString
	Vendor              sql.NullString
	Model               sql.NullString
	MACAddress          sql.NullString
	DeviceType          string
	Status              sql.NullString
	LastSeen            sql.NullString
	ResponseTimeMs      sql.NullFloat64
	ConsecutiveFailures int
	OpenPortsJSON       sql.NullString
	ServicesJSON        sql.NullString
	CreatedAt           string
	UpdatedAt           string
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match deviceColumns order exactly
func (r *deviceRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,                  // 1
		&r.Address,             // 2
		&r.DisplayName,         // 3
		&r.Hostname,            // 4
		&r.Vendor,              // 5
		&r.Model,               // 6
		&r.MACAddress,          // 7
		&r.DeviceType,          // 8
		&r.Status,              // 9
		&r.LastSeen,            // 10
		&r.ResponseTimeMs,      // 11
		&r.ConsecutiveFailures, // 12
		&r.OpenPortsJSON,       // 13
		&r.ServicesJSON,        // 14
		&r.CreatedAt,           // 15
		&r.UpdatedAt,           // 16
	}
}

// toDomain converts the scanned row to a domain.Device
func (r *deviceRow) toDomain() (*domain.Device, error) {
	d := &domain.Device{
		ID:          r.ID,
		Address:     r.Address,
		DisplayName: nullToString(r.DisplayName),
		Hostname:    nullToString(r.Hostname),
		Vendor:      nullToString(r.Vendor),
		Model:       nullToString(r.Model),
		MACAddress:  nullToString(r.MACAddress),
		DeviceType:  domain.DeviceType(r.DeviceType),
		Status:      domain.DeviceStatus(nullToString(r.Status)),
		Metrics: domain.Metrics{
			ResponseTimeMs:      nullToFloatPtr(r.ResponseTimeMs),
			ConsecutiveFailures: r.ConsecutiveFailures,
		},
	}

	var err error
	if d.Metrics.LastSeen, err = nullToTimePtr(r.LastSeen); err != nil {
		return nil, fmt.Errorf("parse last_seen: %w", err)
	}
	if d.CreatedAt, err = textToTime(r.CreatedAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if d.UpdatedAt, err = textToTime(r.UpdatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	if err := unmarshalJSONField(r.OpenPortsJSON, &d.OpenPorts); err != nil {
		return nil, fmt.Errorf("unmarshal open_ports: %w", err)
	}
	if err := unmarshalJSONField(r.ServicesJSON, &d.Services); err != nil {
		return nil, fmt.Errorf("unmarshal services: %w", err)
	}

	return d, nil
}

// deviceColumns returns the SELECT column list for device queries
const deviceColumns = `id, address, display_name, hostname, vendor, model, mac_address,
	device_type, status, last_seen, response_time_ms, consecutive_failures,
	open_ports, services, created_at, updated_at`

// ============================================================================
// Alert Row Scanner
// ============================================================================

// alertRow holds all columns from an alert query for scanning
type alertRow struct {
	ID           string
	DeviceID     string
	Type         string
	Severity     string
	Message      sql.NullString
	Value        sql.NullFloat64
	Threshold    sql.NullFloat64
	Timestamp    string
	Acknowledged int
	ResolvedAt   sql.NullString
}

// scanArgs returns pointers to all fields for sql.Scan()
// MUST match alertColumns order exactly
func (r *alertRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,           // 1
		&r.DeviceID,     // 2
		&r.Type,         // 3
		&r.Severity,     // 4
		&r.Message,      // 5
		&r.Value,        // 6
		&r.Threshold,    // 7
		&r.Timestamp,    // 8
		&r.Acknowledged, // 9
		&r.ResolvedAt,   // 10
	}
}

// toDomain converts the scanned row to a domain.Alert
func (r *alertRow) toDomain() (domain.Alert, error) {
	a := domain.Alert{
		ID:           r.ID,
		DeviceID:     r.DeviceID,
		Type:         r.Type,
		Severity:     domain.Severity(r.Severity),
		Message:      nullToString(r.Message),
		Value:        r.Value.Float64,
		Threshold:    r.Threshold.Float64,
		Acknowledged: r.Acknowledged != 0,
	}

	var err error
	if a.Timestamp, err = textToTime(r.Timestamp); err != nil {
		return a, fmt.Errorf("parse timestamp: %w", err)
	}
	if a.ResolvedAt, err = nullToTimePtr(r.ResolvedAt); err != nil {
		return a, fmt.Errorf("parse resolved_at: %w", err)
	}

	return a, nil
}

// alertColumns returns the SELECT column list for alert queries
const alertColumns = `id, device_id, type, severity, message, value, threshold,
	timestamp, acknowledged, resolved_at`

// ============================================================================
// Device Write Helpers
// ============================================================================

// deviceInsertArgs prepares arguments for device INSERT, in deviceColumns order
func deviceInsertArgs(d *domain.Device) ([]interface{}, error) {
	portsJSON, err := marshalSliceToNull(d.OpenPorts)
	if err != nil {
		return nil, fmt.Errorf("marshal open_ports: %w", err)
	}

	servicesJSON, err := marshalSliceToNull(d.Services)
	if err != nil {
		return nil, fmt.Errorf("marshal services: %w", err)
	}

	deviceType := d.DeviceType
	if deviceType == "" {
		deviceType = domain.DeviceTypeUnknown
	}

	return []interface{}{
		d.ID,
		d.Address,
		stringToNull(d.DisplayName),
		stringToNull(d.Hostname),
		stringToNull(d.Vendor),
		stringToNull(d.Model),
		stringToNull(d.MACAddress),
		string(deviceType),
		stringToNull(string(d.Status)),
		timePtrToNull(d.Metrics.LastSeen),
		floatPtrToNull(d.Metrics.ResponseTimeMs),
		d.Metrics.ConsecutiveFailures,
		portsJSON,
		servicesJSON,
		timeToText(d.CreatedAt),
		timeToText(d.UpdatedAt),
	}, nil
}

// alertInsertArgs prepares arguments for alert INSERT, in alertColumns order
func alertInsertArgs(deviceID string, a domain.Alert) []interface{} {
	return []interface{}{
		a.ID,
		deviceID,
		a.Type,
		string(a.Severity),
		stringToNull(a.Message),
		a.Value,
		a.Threshold,
		timeToText(a.Timestamp),
		boolToInt(a.Acknowledged),
		timePtrToNull(a.ResolvedAt),
	}
}

// patchAssignments turns a DevicePatch into SET clauses and arguments
func patchAssignments(p domain.DevicePatch) ([]string, []interface{}, error) {
	var (
		sets []string
		args []interface{}
	)

	add := func(col string, v interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if p.DisplayName != nil {
		add("display_name", stringToNull(*p.DisplayName))
	}
	if p.Hostname != nil {
		add("hostname", stringToNull(*p.Hostname))
	}
	if p.Vendor != nil {
		add("vendor", stringToNull(*p.Vendor))
	}
	if p.Model != nil {
		add("model", stringToNull(*p.Model))
	}
	if p.MACAddress != nil {
		add("mac_address", stringToNull(*p.MACAddress))
	}
	if p.DeviceType != nil {
		add("device_type", string(*p.DeviceType))
	}
	if p.Status != nil {
		add("status", stringToNull(string(*p.Status)))
	}
	if p.Metrics != nil {
		add("last_seen", timePtrToNull(p.Metrics.LastSeen))
		add("response_time_ms", floatPtrToNull(p.Metrics.ResponseTimeMs))
		add("consecutive_failures", p.Metrics.ConsecutiveFailures)
	}
	if p.OpenPorts != nil {
		v, err := marshalSliceToNull(p.OpenPorts)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal open_ports: %w", err)
		}
		add("open_ports", v)
	}
	if p.Services != nil {
		v, err := marshalSliceToNull(p.Services)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal services: %w", err)
		}
		add("services", v)
	}

	return sets, args, nil
}
