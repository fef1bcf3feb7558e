package index

import (
	"context"
	"sync"

	"github.com/agentscan/regsync/internal/registry"
)

// MemIndex is an in-memory Index for tests and dry runs. It records call
// counts so tests can assert on exactly which operations a sync issued.
type MemIndex struct {
	mu      sync.Mutex
	records map[Ref]*registry.CanonicalAgent

	IndexOneCalls   int
	IndexManyCalls  int
	DeleteManyCalls int

	// Err, when set, is returned by every operation. Tests use it to
	// simulate a transient indexing service failure.
	Err error
}

// NewMemIndex creates an empty in-memory index.
func NewMemIndex() *MemIndex {
	return &MemIndex{records: make(map[Ref]*registry.CanonicalAgent)}
}

// IndexOne implements Index.
func (m *MemIndex) IndexOne(_ context.Context, rec *registry.CanonicalAgent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.IndexOneCalls++
	m.records[Ref{ChainID: rec.ChainID, ID: rec.ID}] = rec
	return nil
}

// IndexMany implements Index.
func (m *MemIndex) IndexMany(_ context.Context, recs []*registry.CanonicalAgent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.IndexManyCalls++
	for _, rec := range recs {
		m.records[Ref{ChainID: rec.ChainID, ID: rec.ID}] = rec
	}
	return nil
}

// DeleteMany implements Index. Absent records are ignored.
func (m *MemIndex) DeleteMany(_ context.Context, refs []Ref) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.DeleteManyCalls++
	for _, ref := range refs {
		delete(m.records, ref)
	}
	return nil
}

// Get returns the indexed record for a ref, or nil.
func (m *MemIndex) Get(ref Ref) *registry.CanonicalAgent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[ref]
}

// Len returns the number of indexed records.
func (m *MemIndex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Calls returns the total number of service calls issued.
func (m *MemIndex) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.IndexOneCalls + m.IndexManyCalls + m.DeleteManyCalls
}
