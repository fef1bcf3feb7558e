package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// sampleState builds a two-chain state.
func sampleState() *SyncState {
	state := NewSyncState()
	eth := state.Partition("ethereum")
	eth.LastWatermark = "1700000000"
	eth.RecordHashes["agent-1"] = "aaaaaaaaaaaaaaaa"
	eth.RecordHashes["agent-2"] = "bbbbbbbbbbbbbbbb"
	base := state.Partition("base")
	base.LastWatermark = "25"
	return state
}

func TestFileStoreGenesis(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "checkpoint.json"))

	state, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if state != nil {
		t.Fatalf("expected nil state for missing file, got %+v", state)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "checkpoint.json"))

	if err := store.Save(ctx, sampleState()); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected state, got nil")
	}
	eth := loaded.Chains["ethereum"]
	if eth == nil {
		t.Fatal("missing ethereum state")
	}
	if eth.LastWatermark != "1700000000" {
		t.Errorf("expected watermark 1700000000, got %s", eth.LastWatermark)
	}
	if len(eth.RecordHashes) != 2 {
		t.Errorf("expected 2 hashes, got %d", len(eth.RecordHashes))
	}
	if loaded.Chains["base"].LastWatermark != "25" {
		t.Errorf("expected base watermark 25, got %s", loaded.Chains["base"].LastWatermark)
	}
}

func TestFileStoreSaveLeavesNoTempFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "checkpoint.json"))

	if err := store.Save(ctx, sampleState()); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", entry.Name())
		}
	}
}

func TestFileStoreCreatesParentDir(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "nested", "deeper", "checkpoint.json"))

	if err := store.Save(ctx, sampleState()); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, err := store.Load(ctx); err != nil {
		t.Fatalf("load failed: %v", err)
	}
}

func TestFileStoreClear(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(filepath.Join(t.TempDir(), "checkpoint.json"))

	if err := store.Save(ctx, sampleState()); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}

	state, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load after clear failed: %v", err)
	}
	if state != nil {
		t.Error("expected genesis after clear")
	}

	// Clearing an already-empty store is a no-op.
	if err := store.Clear(ctx); err != nil {
		t.Errorf("second clear failed: %v", err)
	}
}

func TestFileStoreLoadsLegacyShape(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "checkpoint.json")

	legacy := `{
  "lastWatermark": "42",
  "recordHashes": {"agent-1": "cafecafecafecafe"}
}`
	if err := os.WriteFile(path, []byte(legacy), 0644); err != nil {
		t.Fatalf("failed to write legacy file: %v", err)
	}

	store := NewFileStore(path)
	state, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if state == nil {
		t.Fatal("expected state, got nil")
	}
	if len(state.Chains) != 0 {
		t.Fatalf("legacy state should carry no chain entries yet, got %d", len(state.Chains))
	}

	if !state.AdoptLegacy("ethereum") {
		t.Fatal("expected legacy adoption")
	}
	eth := state.Chains["ethereum"]
	if eth == nil || eth.LastWatermark != "42" {
		t.Fatalf("legacy watermark not adopted: %+v", eth)
	}
	if eth.RecordHashes["agent-1"] != "cafecafecafecafe" {
		t.Error("legacy hashes not adopted")
	}

	// Adoption consumes the legacy slot exactly once.
	if state.AdoptLegacy("base") {
		t.Error("legacy must be adopted at most once")
	}

	// First save rewrites the file in the multi-chain shape.
	if err := store.Save(ctx, state); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	reloaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if reloaded.Chains["ethereum"] == nil {
		t.Error("rewritten file lost the adopted chain")
	}
	if reloaded.AdoptLegacy("base") {
		t.Error("rewritten file must not be legacy-shaped")
	}
}

func TestFileStoreRejectsUnadoptedLegacySave(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	if err := os.WriteFile(path, []byte(`{"lastWatermark": "7"}`), 0644); err != nil {
		t.Fatalf("failed to write legacy file: %v", err)
	}

	store := NewFileStore(path)
	state, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if err := store.Save(ctx, state); err == nil {
		t.Error("saving an unadopted legacy state must fail, not drop it")
	}
}

func TestFileStoreCorruptFileIsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	store := NewFileStore(path)
	if _, err := store.Load(context.Background()); err == nil {
		t.Error("corrupt checkpoint must be a fatal error, not genesis")
	}
}

func TestMemStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	state, err := store.Load(ctx)
	if err != nil || state != nil {
		t.Fatalf("expected genesis, got state=%v err=%v", state, err)
	}

	saved := sampleState()
	if err := store.Save(ctx, saved); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// Mutating the caller's copy must not affect the stored snapshot.
	saved.Partition("ethereum").LastWatermark = "9999999999"

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Chains["ethereum"].LastWatermark != "1700000000" {
		t.Error("stored snapshot aliased caller state")
	}
	if store.SaveCount != 1 {
		t.Errorf("expected 1 save, got %d", store.SaveCount)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if state, _ := store.Load(ctx); state != nil {
		t.Error("expected genesis after clear")
	}
}
