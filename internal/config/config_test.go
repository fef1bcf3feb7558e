package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "regsync.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "default_chain: ethereum\n"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.BatchSize != 100 {
		t.Errorf("expected default batch size 100, got %d", cfg.BatchSize)
	}
	if !cfg.IncludeOrphans {
		t.Error("orphan inclusion should default to true")
	}
	if cfg.Checkpoint.Backend != "file" {
		t.Errorf("expected file backend, got %s", cfg.Checkpoint.Backend)
	}
	if cfg.Daemon.Interval != time.Minute {
		t.Errorf("expected 1m daemon interval, got %s", cfg.Daemon.Interval)
	}
}

func TestLoadFullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
default_chain: base
batch_size: 250
include_orphans: false
chains:
  - name: ethereum
  - name: base
    endpoint: https://base.example.com/subgraph
endpoint_overrides:
  ethereum: https://eth.example.com/subgraph
checkpoint:
  backend: sqlite
  path: /var/lib/regsync/state.db
registry:
  api_key: reg-key
  timeout: 10s
index:
  url: https://index.example.com/v1
  api_key: idx-key
daemon:
  interval: 30s
`))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(cfg.Chains) != 2 || cfg.Chains[1].Endpoint != "https://base.example.com/subgraph" {
		t.Errorf("chains not parsed: %+v", cfg.Chains)
	}
	if cfg.EndpointOverrides["ethereum"] != "https://eth.example.com/subgraph" {
		t.Errorf("overrides not parsed: %+v", cfg.EndpointOverrides)
	}
	if cfg.BatchSize != 250 || cfg.IncludeOrphans {
		t.Errorf("scalars not parsed: batch=%d orphans=%v", cfg.BatchSize, cfg.IncludeOrphans)
	}
	if cfg.Checkpoint.Backend != "sqlite" || cfg.Checkpoint.Path != "/var/lib/regsync/state.db" {
		t.Errorf("checkpoint not parsed: %+v", cfg.Checkpoint)
	}
	if cfg.Registry.Timeout != 10*time.Second {
		t.Errorf("registry timeout not parsed: %s", cfg.Registry.Timeout)
	}
	if cfg.Index.URL != "https://index.example.com/v1" {
		t.Errorf("index not parsed: %+v", cfg.Index)
	}
	if cfg.Daemon.Interval != 30*time.Second {
		t.Errorf("daemon interval not parsed: %s", cfg.Daemon.Interval)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	_, err := Load(writeConfig(t, "checkpoint:\n  backend: etcd\n"))
	if err == nil {
		t.Error("expected error for unknown checkpoint backend")
	}
}

func TestLoadRejectsUnnamedChain(t *testing.T) {
	_, err := Load(writeConfig(t, "chains:\n  - endpoint: https://example.com\n"))
	if err == nil {
		t.Error("expected error for chain without a name")
	}
}

func TestLoadMissingExplicitFileIsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Error("expected error for missing explicit config file")
	}
}
