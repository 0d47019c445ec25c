package coordinator

import (
	"context"
	"sync"
	"time"

	"netsentry/internal/domain"
)

// MemoryStore is a process-local StateStore
type MemoryStore struct {
	mu    sync.Mutex
	state domain.ScanState
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) LoadScanState(ctx context.Context) (domain.ScanState, error) {
	if err := ctx.Err(); err != nil {
		return domain.ScanState{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state, nil
}

func (m *MemoryStore) AcquireScanState(ctx context.Context, owner string, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.IsRunning {
		return false, nil
	}

	m.state = domain.ScanState{IsRunning: true, Owner: owner, StartedAt: at}

	return true, nil
}

func (m *MemoryStore) ReleaseScanState(_ context.Context, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.IsRunning && m.state.Owner == owner {
		m.state = domain.ScanState{}
	}

	return nil
}

func (m *MemoryStore) TakeOverScanState(_ context.Context, staleOwner, owner string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.IsRunning || m.state.Owner != staleOwner {
		return false, nil
	}

	m.state = domain.ScanState{IsRunning: true, Owner: owner, StartedAt: at}

	return true, nil
}
