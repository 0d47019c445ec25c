package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"netsentry/internal/domain"
	"netsentry/internal/repository"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Repository implements repository.Store using SQLite
type Repository struct {
	db   *sql.DB
	q    querier
	inTx bool
}

var _ repository.Store = (*Repository)(nil)

// New creates a new SQLite repository. dbPath ":memory:" gives a private
// in-memory database.
func New(dbPath string) (*Repository, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps :memory: databases shared and serialises writers
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	repo := &Repository{db: db, q: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS devices (
		id TEXT PRIMARY KEY,
		address TEXT NOT NULL UNIQUE,
		display_name TEXT,
		hostname TEXT,
		vendor TEXT,
		model TEXT,
		mac_address TEXT,
		device_type TEXT NOT NULL DEFAULT 'unknown',
		status TEXT,
		last_seen TEXT,
		response_time_ms REAL,
		consecutive_failures INTEGER NOT NULL DEFAULT 0,
		open_ports TEXT,
		services TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS alerts (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		device_id TEXT NOT NULL,
		type TEXT NOT NULL,
		severity TEXT NOT NULL,
		message TEXT,
		value REAL,
		threshold REAL,
		timestamp TEXT NOT NULL,
		acknowledged INTEGER NOT NULL DEFAULT 0,
		resolved_at TEXT
	);

	CREATE TABLE IF NOT EXISTS scan_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		is_running INTEGER NOT NULL DEFAULT 0,
		owner TEXT,
		started_at TEXT
	);

	INSERT OR IGNORE INTO scan_state (id, is_running) VALUES (1, 0);

	CREATE INDEX IF NOT EXISTS idx_devices_status ON devices(status);
	CREATE INDEX IF NOT EXISTS idx_alerts_device ON alerts(device_id, seq);
	CREATE INDEX IF NOT EXISTS idx_alerts_pending ON alerts(device_id, acknowledged);
	`

	_, err := r.db.Exec(schema)
	return err
}

// FindDevice looks a device up by address, alerts included
func (r *Repository) FindDevice(ctx context.Context, address string) (*domain.Device, error) {
	return r.getDeviceWhere(ctx, "address = ?", address)
}

// GetDevice looks a device up by ID, alerts included
func (r *Repository) GetDevice(ctx context.Context, id string) (*domain.Device, error) {
	return r.getDeviceWhere(ctx, "id = ?", id)
}

func (r *Repository) getDeviceWhere(ctx context.Context, where string, arg interface{}) (*domain.Device, error) {
	var row deviceRow
	err := r.q.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE `+where, arg,
	).Scan(row.scanArgs()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("device %v: %w", arg, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query device: %w", err)
	}

	device, err := row.toDomain()
	if err != nil {
		return nil, err
	}

	if device.Alerts, err = r.ListAlerts(ctx, device.ID); err != nil {
		return nil, err
	}

	return device, nil
}

// ListDevices returns devices matching filter ordered by address
func (r *Repository) ListDevices(ctx context.Context, filter domain.DeviceFilter) ([]*domain.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices`
	var (
		conds []string
		args  []interface{}
	)
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.DeviceType != "" {
		conds = append(conds, "device_type = ?")
		args = append(args, string(filter.DeviceType))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY address"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}

	var devices []*domain.Device
	byID := make(map[string]*domain.Device)
	for rows.Next() {
		var row deviceRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		d, err := row.toDomain()
		if err != nil {
			rows.Close()
			return nil, err
		}
		devices = append(devices, d)
		byID[d.ID] = d
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("error iterating devices: %w", err)
	}

	if len(devices) == 0 {
		return devices, nil
	}

	// Single connection: the device cursor must be closed before this query
	alertRows, err := r.q.QueryContext(ctx, `SELECT `+alertColumns+` FROM alerts ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer alertRows.Close()

	for alertRows.Next() {
		var row alertRow
		if err := alertRows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		d, ok := byID[row.DeviceID]
		if !ok {
			continue
		}
		a, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		d.Alerts = append(d.Alerts, a)
	}

	if err := alertRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}

	return devices, nil
}

// ListAlerts returns the alert log of deviceID in insertion order
func (r *Repository) ListAlerts(ctx context.Context, deviceID string) ([]domain.Alert, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE device_id = ? ORDER BY seq`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		var row alertRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}

	return alerts, nil
}

// CreateDevice inserts a new device and any alerts it carries
func (r *Repository) CreateDevice(ctx context.Context, device *domain.Device) error {
	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	if device.UpdatedAt.IsZero() {
		device.UpdatedAt = now
	}

	args, err := deviceInsertArgs(device)
	if err != nil {
		return err
	}

	return r.WithTx(ctx, func(s repository.Store) error {
		tx := s.(*Repository)
		if _, err := tx.q.ExecContext(ctx,
			`INSERT INTO devices (`+deviceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			args...,
		); err != nil {
			return fmt.Errorf("failed to insert device: %w", err)
		}
		return tx.AppendAlerts(ctx, device.ID, device.Alerts)
	})
}

// UpdateDevice applies patch to the device with id
func (r *Repository) UpdateDevice(ctx context.Context, id string, patch domain.DevicePatch) error {
	sets, args, err := patchAssignments(patch)
	if err != nil {
		return err
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, timeToText(time.Now()), id)

	result, err := r.q.ExecContext(ctx,
		`UPDATE devices SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update device: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update device: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("device %s: %w", id, repository.ErrNotFound)
	}

	return nil
}

// AppendAlerts appends alerts to the log of deviceID in slice order
func (r *Repository) AppendAlerts(ctx context.Context, deviceID string, alerts []domain.Alert) error {
	for _, a := range alerts {
		if _, err := r.q.ExecContext(ctx,
			`INSERT INTO alerts (`+alertColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			alertInsertArgs(deviceID, a)...,
		); err != nil {
			return fmt.Errorf("failed to insert alert %s: %w", a.ID, err)
		}
	}
	return nil
}

// AcknowledgeAlerts acknowledges and resolves matching pending alerts
func (r *Repository) AcknowledgeAlerts(ctx context.Context, deviceID string, matcher domain.AlertMatcher, at time.Time) (int, error) {
	query := `UPDATE alerts SET acknowledged = 1, resolved_at = ?
		WHERE device_id = ? AND acknowledged = 0`
	args := []interface{}{timeToText(at), deviceID}

	if matcher.Type != "" {
		query += " AND type = ?"
		args = append(args, matcher.Type)
	}
	if len(matcher.IDs) > 0 {
		query += " AND id IN (?" + strings.Repeat(", ?", len(matcher.IDs)-1) + ")"
		for _, id := range matcher.IDs {
			args = append(args, id)
		}
	}

	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to acknowledge alerts: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to acknowledge alerts: %w", err)
	}

	return int(n), nil
}

// WithTx runs fn inside a transaction. Nested calls join the outer one.
func (r *Repository) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	if r.inTx {
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Repository{db: r.db, q: tx, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	if r.inTx {
		return nil
	}
	return r.db.Close()
}
