// Package checkpoint persists per-chain sync progress: the last-seen
// watermark and the fingerprints of records believed present and unchanged.
//
// The Store contract is what makes crash recovery work: Save is atomic from
// the caller's perspective (a crash mid-save must leave either the old or
// the new complete state observable, never a truncated one), and a missing
// state is not an error but the genesis signal. The sync runner is the sole
// writer to a store instance; stores are not designed for multi-writer use.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
)

// PartitionState is the checkpoint for a single chain.
type PartitionState struct {
	// LastWatermark is the highest watermark successfully indexed. It never
	// decreases across saves for the same chain. Empty means genesis.
	LastWatermark string `json:"lastWatermark"`

	// RecordHashes maps record ID to content fingerprint. An entry exists
	// only for records currently believed present and unchanged since the
	// last successful write; absence means "never indexed" or "tombstoned".
	RecordHashes map[string]string `json:"recordHashes"`
}

// Clone returns a deep copy.
func (p *PartitionState) Clone() *PartitionState {
	hashes := make(map[string]string, len(p.RecordHashes))
	for id, fp := range p.RecordHashes {
		hashes[id] = fp
	}
	return &PartitionState{
		LastWatermark: p.LastWatermark,
		RecordHashes:  hashes,
	}
}

// SyncState is the root persisted object: chain ID to checkpoint.
//
// It serializes as a flat JSON object keyed by chain ID. A state persisted
// before multi-chain support (a single flat checkpoint with no chain key)
// is carried in the legacy slot on load and adopted exactly once by the
// first chain the runner resolves; the next successful save rewrites the
// document in the multi-chain shape.
type SyncState struct {
	Chains map[string]*PartitionState

	legacy *PartitionState
}

// NewSyncState returns an empty (genesis) state.
func NewSyncState() *SyncState {
	return &SyncState{Chains: make(map[string]*PartitionState)}
}

// newLegacyState wraps a pre-partition flat checkpoint.
func newLegacyState(ps *PartitionState) *SyncState {
	s := NewSyncState()
	s.legacy = ps
	return s
}

// Partition returns the checkpoint for a chain, creating an empty one if
// none exists yet.
func (s *SyncState) Partition(chainID string) *PartitionState {
	if ps, ok := s.Chains[chainID]; ok {
		return ps
	}
	ps := &PartitionState{RecordHashes: make(map[string]string)}
	s.Chains[chainID] = ps
	return ps
}

// SetPartition replaces a chain's checkpoint wholesale. The runner builds
// each batch's delta on a copy and swaps it in here, so a mid-batch failure
// never leaves a half-mutated checkpoint behind.
func (s *SyncState) SetPartition(chainID string, ps *PartitionState) {
	s.Chains[chainID] = ps
}

// AdoptLegacy moves a pre-partition flat checkpoint, if one was loaded,
// under the given chain. It consumes the legacy slot: the adoption happens
// at most once per loaded state, and only if the chain has no checkpoint of
// its own. Reports whether an adoption took place.
func (s *SyncState) AdoptLegacy(chainID string) bool {
	if s.legacy == nil {
		return false
	}
	legacy := s.legacy
	s.legacy = nil
	if _, ok := s.Chains[chainID]; ok {
		return false
	}
	if legacy.RecordHashes == nil {
		legacy.RecordHashes = make(map[string]string)
	}
	s.Chains[chainID] = legacy
	return true
}

// Clone returns a deep copy, including any unconsumed legacy checkpoint.
func (s *SyncState) Clone() *SyncState {
	out := NewSyncState()
	for chainID, ps := range s.Chains {
		out.Chains[chainID] = ps.Clone()
	}
	if s.legacy != nil {
		out.legacy = s.legacy.Clone()
	}
	return out
}

// MarshalJSON emits the flat chain-keyed object described in the package
// comment. An unconsumed legacy checkpoint is never written back: saving a
// loaded legacy state without adopting it first would silently drop it, so
// that is an error.
func (s *SyncState) MarshalJSON() ([]byte, error) {
	if s.legacy != nil {
		return nil, fmt.Errorf("legacy checkpoint has not been adopted by a chain")
	}
	return json.Marshal(s.Chains)
}

// UnmarshalJSON accepts both the current multi-chain shape and the legacy
// flat single-checkpoint shape.
func (s *SyncState) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse sync state: %w", err)
	}

	if isLegacyShape(raw) {
		var ps PartitionState
		if err := json.Unmarshal(data, &ps); err != nil {
			return fmt.Errorf("failed to parse legacy sync state: %w", err)
		}
		s.Chains = make(map[string]*PartitionState)
		s.legacy = &ps
		return nil
	}

	chains := make(map[string]*PartitionState, len(raw))
	for chainID, msg := range raw {
		var ps PartitionState
		if err := json.Unmarshal(msg, &ps); err != nil {
			return fmt.Errorf("failed to parse state for chain %s: %w", chainID, err)
		}
		if ps.RecordHashes == nil {
			ps.RecordHashes = make(map[string]string)
		}
		chains[chainID] = &ps
	}
	s.Chains = chains
	s.legacy = nil
	return nil
}

// isLegacyShape reports whether the top-level keys are those of a flat
// PartitionState rather than a chain map. An empty object is the (empty)
// current shape.
func isLegacyShape(raw map[string]json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	for key := range raw {
		if key != "lastWatermark" && key != "recordHashes" {
			return false
		}
	}
	return true
}

// Store persists SyncState across runs.
type Store interface {
	// Load reads the persisted state. A nil state with a nil error means
	// no prior state exists: start from genesis. Any other persistence
	// failure is fatal to the run.
	Load(ctx context.Context) (*SyncState, error)

	// Save atomically persists the entire state. After a crash during
	// Save, a subsequent Load observes either the previous or the new
	// complete state.
	Save(ctx context.Context, state *SyncState) error

	// Clear resets to genesis. Clearing an already-empty store is a no-op.
	Clear(ctx context.Context) error
}
