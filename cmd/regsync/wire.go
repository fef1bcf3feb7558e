package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/agentscan/regsync/internal/checkpoint"
	"github.com/agentscan/regsync/internal/config"
	"github.com/agentscan/regsync/internal/index"
	"github.com/agentscan/regsync/internal/ledger"
	"github.com/agentscan/regsync/internal/sync"
)

// openStore builds the configured checkpoint store. The returned cleanup
// releases any underlying resources and must always be called.
func openStore(cfg *config.Config) (checkpoint.Store, func(), error) {
	switch cfg.Checkpoint.Backend {
	case "file":
		return checkpoint.NewFileStore(cfg.Checkpoint.Path), func() {}, nil
	case "sqlite":
		store, err := checkpoint.OpenSQLite(cfg.Checkpoint.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	case "memory":
		return checkpoint.NewMemStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown checkpoint backend %q", cfg.Checkpoint.Backend)
	}
}

// buildIndex builds the indexing service adapter.
func buildIndex(cfg *config.Config) (index.Index, error) {
	if cfg.Index.URL == "" {
		return nil, fmt.Errorf("index.url is required")
	}
	idx := index.NewHTTPIndex(cfg.Index.URL, nil)
	if cfg.Index.APIKey != "" {
		idx = idx.WithAPIKey(cfg.Index.APIKey)
	}
	return idx, nil
}

// resolveOptions maps config onto target resolution inputs.
func resolveOptions(cfg *config.Config) sync.ResolveOptions {
	targets := make([]sync.TargetConfig, 0, len(cfg.Chains))
	for _, chain := range cfg.Chains {
		targets = append(targets, sync.TargetConfig{
			ChainID:  chain.Name,
			Endpoint: chain.Endpoint,
		})
	}

	newClient := func(endpoint string) ledger.QueryClient {
		httpClient := &http.Client{Timeout: cfg.Registry.Timeout}
		client := ledger.NewClient(endpoint, httpClient)
		if cfg.Registry.APIKey != "" {
			client = client.WithAPIKey(cfg.Registry.APIKey)
		}
		return client
	}

	return sync.ResolveOptions{
		Targets:           targets,
		EndpointOverrides: cfg.EndpointOverrides,
		DefaultChainID:    cfg.DefaultChain,
		DefaultEndpoint:   cfg.DefaultEndpoint,
		NewClient:         newClient,
	}
}

// buildRunner wires a complete runner from config.
func buildRunner(cfg *config.Config, store checkpoint.Store, logger *log.Logger) (*sync.Runner, error) {
	idx, err := buildIndex(cfg)
	if err != nil {
		return nil, err
	}
	return sync.NewRunner(sync.RunnerConfig{
		Store:          store,
		Index:          idx,
		Resolve:        resolveOptions(cfg),
		BatchSize:      cfg.BatchSize,
		IncludeOrphans: cfg.IncludeOrphans,
		Logger:         logger,
		Sink:           logSink(logger),
	})
}

// logSink routes sync events into the structured log.
func logSink(logger *log.Logger) sync.EventSink {
	if logger == nil {
		logger = log.New(os.Stderr, "[event] ", log.LstdFlags)
	}
	return func(event string, attrs map[string]any) {
		if len(attrs) == 0 {
			logger.Printf("event=%s", event)
			return
		}
		logger.Printf("event=%s attrs=%v", event, attrs)
	}
}
