package sync

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/agentscan/regsync/internal/ledger"
)

//go:embed endpoints.yaml
var defaultEndpointsYAML []byte

var (
	defaultEndpointsOnce sync.Once
	defaultEndpoints     map[string]string
	defaultEndpointsErr  error
)

// builtinEndpoint returns the built-in registry endpoint for a chain, if any.
func builtinEndpoint(chainID string) (string, error) {
	defaultEndpointsOnce.Do(func() {
		defaultEndpoints = make(map[string]string)
		defaultEndpointsErr = yaml.Unmarshal(defaultEndpointsYAML, &defaultEndpoints)
	})
	if defaultEndpointsErr != nil {
		return "", fmt.Errorf("failed to parse built-in endpoints: %w", defaultEndpointsErr)
	}
	return defaultEndpoints[chainID], nil
}

// ErrUnresolvedTarget is returned when a requested chain has no resolvable
// query client or endpoint. This is a configuration error: it is raised
// before any I/O and is not retryable.
var ErrUnresolvedTarget = errors.New("no registry endpoint resolvable for chain")

// Target binds one chain to a concrete query client.
type Target struct {
	ChainID string
	Client  ledger.QueryClient
}

// TargetConfig names a chain to sync and optionally pins how to reach it.
type TargetConfig struct {
	// ChainID is the chain to sync. Required.
	ChainID string

	// Client, when set, is used directly and wins over any endpoint.
	Client ledger.QueryClient

	// Endpoint, when set, wins over override maps and built-in defaults.
	Endpoint string
}

// ResolveOptions carries everything target resolution needs. The ambient
// default chain is an explicit parameter here on purpose: the resolver never
// reaches into environment or other global context itself.
type ResolveOptions struct {
	// Targets lists the chains to sync. When empty, resolution falls back
	// to the single implicit DefaultChainID.
	Targets []TargetConfig

	// EndpointOverrides maps chain ID to endpoint, consulted after an
	// explicit per-target endpoint and before built-in defaults.
	EndpointOverrides map[string]string

	// DefaultChainID is the ambient current chain. It serves two roles:
	// the implicit single target when Targets is empty, and the only chain
	// for which DefaultEndpoint may be used.
	DefaultChainID string

	// DefaultEndpoint is the ambient chain's endpoint shortcut. Used only
	// when no explicit endpoint, override or built-in default applies and
	// the target chain equals DefaultChainID.
	DefaultEndpoint string

	// NewClient builds a query client from an endpoint. Nil uses the
	// standard ledger client. Tests inject fakes here.
	NewClient func(endpoint string) ledger.QueryClient
}

// ResolveTargets binds each requested chain to a query client.
//
// Resolution order per chain: explicit client > explicit endpoint >
// override-map endpoint > built-in default endpoint > the ambient default
// endpoint (only for the ambient default chain). A chain that resolves to
// nothing fails the whole resolution; an empty requested set with no
// ambient default resolves to no targets at all.
func ResolveTargets(opts ResolveOptions) ([]Target, error) {
	newClient := opts.NewClient
	if newClient == nil {
		newClient = func(endpoint string) ledger.QueryClient {
			return ledger.NewClient(endpoint, nil)
		}
	}

	requested := opts.Targets
	if len(requested) == 0 {
		if opts.DefaultChainID == "" {
			return nil, nil
		}
		requested = []TargetConfig{{ChainID: opts.DefaultChainID}}
	}

	targets := make([]Target, 0, len(requested))
	seen := make(map[string]bool, len(requested))
	for _, tc := range requested {
		if tc.ChainID == "" {
			return nil, fmt.Errorf("target with empty chain ID")
		}
		if seen[tc.ChainID] {
			return nil, fmt.Errorf("chain %s listed more than once", tc.ChainID)
		}
		seen[tc.ChainID] = true

		if tc.Client != nil {
			targets = append(targets, Target{ChainID: tc.ChainID, Client: tc.Client})
			continue
		}

		endpoint := tc.Endpoint
		if endpoint == "" {
			endpoint = opts.EndpointOverrides[tc.ChainID]
		}
		if endpoint == "" {
			builtin, err := builtinEndpoint(tc.ChainID)
			if err != nil {
				return nil, err
			}
			endpoint = builtin
		}
		if endpoint == "" && tc.ChainID == opts.DefaultChainID {
			endpoint = opts.DefaultEndpoint
		}
		if endpoint == "" {
			return nil, fmt.Errorf("%w: %s", ErrUnresolvedTarget, tc.ChainID)
		}
		targets = append(targets, Target{ChainID: tc.ChainID, Client: newClient(endpoint)})
	}
	return targets, nil
}
