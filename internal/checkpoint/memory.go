package checkpoint

import (
	"context"
	"sync"
)

// MemStore is an in-memory Store for tests and ephemeral runs. It deep
// copies on both sides so callers can keep mutating their state object
// without aliasing the stored snapshot.
type MemStore struct {
	mu    sync.Mutex
	state *SyncState

	// SaveCount tracks successful saves; tests use it to assert on
	// per-batch checkpointing.
	SaveCount int
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Load implements Store.Load.
func (m *MemStore) Load(_ context.Context) (*SyncState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, nil
	}
	return m.state.Clone(), nil
}

// Save implements Store.Save.
func (m *MemStore) Save(_ context.Context, state *SyncState) error {
	// Clone may fail semantics-wise only via marshal; mirror FileStore by
	// refusing to persist an unadopted legacy state.
	if _, err := state.MarshalJSON(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state.Clone()
	m.SaveCount++
	return nil
}

// Clear implements Store.Clear.
func (m *MemStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = nil
	return nil
}
