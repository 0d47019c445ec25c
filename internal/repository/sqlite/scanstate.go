package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"netsentry/internal/domain"
)

// LoadScanState reads the bulk-scan flag
func (r *Repository) LoadScanState(ctx context.Context) (domain.ScanState, error) {
	var (
		running   int
		owner     sql.NullString
		startedAt sql.NullString
	)

	err := r.q.QueryRowContext(ctx,
		`SELECT is_running, owner, started_at FROM scan_state WHERE id = 1`,
	).Scan(&running, &owner, &startedAt)
	if err != nil {
		return domain.ScanState{}, fmt.Errorf("failed to query scan state: %w", err)
	}

	state := domain.ScanState{IsRunning: running != 0, Owner: nullToString(owner)}
	if started, err := nullToTimePtr(startedAt); err != nil {
		return domain.ScanState{}, fmt.Errorf("parse started_at: %w", err)
	} else if started != nil {
		state.StartedAt = *started
	}

	return state, nil
}

// AcquireScanState sets the flag for owner if no scan is running
func (r *Repository) AcquireScanState(ctx context.Context, owner string, at time.Time) (bool, error) {
	result, err := r.q.ExecContext(ctx,
		`UPDATE scan_state SET is_running = 1, owner = ?, started_at = ?
		 WHERE id = 1 AND is_running = 0`,
		owner, timeToText(at))
	if err != nil {
		return false, fmt.Errorf("failed to set scan state: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to set scan state: %w", err)
	}

	return n == 1, nil
}

// ReleaseScanState clears the flag if owner holds it
func (r *Repository) ReleaseScanState(ctx context.Context, owner string) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE scan_state SET is_running = 0, owner = NULL, started_at = NULL
		 WHERE id = 1 AND owner = ?`,
		owner)
	if err != nil {
		return fmt.Errorf("failed to clear scan state: %w", err)
	}
	return nil
}

// TakeOverScanState moves a running flag from staleOwner to owner. Nothing
// changes if someone else took it first.
func (r *Repository) TakeOverScanState(ctx context.Context, staleOwner, owner string, at time.Time) (bool, error) {
	result, err := r.q.ExecContext(ctx,
		`UPDATE scan_state SET owner = ?, started_at = ?
		 WHERE id = 1 AND is_running = 1 AND owner = ?`,
		owner, timeToText(at), staleOwner)
	if err != nil {
		return false, fmt.Errorf("failed to take over scan state: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to take over scan state: %w", err)
	}

	return n == 1, nil
}
