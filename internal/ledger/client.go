// Package ledger provides the query client for the on-chain agent registry.
//
// The registry is exposed through a subgraph-style GraphQL endpoint with a
// single paginated query: agents filtered by chain and a strict watermark
// lower bound, ordered ascending by watermark. Callers page until an empty
// result; there is no upper bound on total records.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/agentscan/regsync/internal/registry"
)

// QueryClient is the one operation the sync engine needs from the registry.
type QueryClient interface {
	// FetchAgents returns up to limit records on the given chain whose
	// watermark is strictly greater than sinceWatermark, ordered ascending
	// by watermark. An empty slice means the chain is exhausted.
	FetchAgents(ctx context.Context, chainID, sinceWatermark string, limit int) ([]registry.AgentRecord, error)
}

// agentsQuery pages through registrations by watermark. Ordering ties on
// updatedAt are broken by whatever stable order the subgraph applies; see
// the runner's stall guard for how equal-watermark pages are handled.
const agentsQuery = `query Agents($chain: String!, $since: BigInt!, $first: Int!) {
  agents(
    where: { chainId: $chain, updatedAt_gt: $since }
    orderBy: updatedAt
    orderDirection: asc
    first: $first
  ) {
    id
    chainId
    updatedAt
    profile {
      name
      description
      endpoint
      owner
      skills
      protocols
      tags
      avatarUrl
    }
  }
}`

// Client queries a registry subgraph endpoint over HTTP.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a query client for the given subgraph endpoint.
//
// If httpClient is nil, a default client with a 30 second timeout is used.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: httpClient,
	}
}

// WithAPIKey sets a bearer token sent with every request and returns the
// client for chaining.
func (c *Client) WithAPIKey(key string) *Client {
	c.apiKey = key
	return c
}

// graphqlRequest is the standard POST body for a GraphQL query.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type agentsResponse struct {
	Data struct {
		Agents []registry.AgentRecord `json:"agents"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

// FetchAgents implements QueryClient.
func (c *Client) FetchAgents(ctx context.Context, chainID, sinceWatermark string, limit int) ([]registry.AgentRecord, error) {
	if sinceWatermark == "" {
		sinceWatermark = registry.GenesisWatermark
	}

	body, err := json.Marshal(graphqlRequest{
		Query: agentsQuery,
		Variables: map[string]any{
			"chain": chainID,
			"since": sinceWatermark,
			"first": limit,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode registry query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build registry request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry query failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("registry query returned %s: %s", resp.Status, snippet)
	}

	var parsed agentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode registry response: %w", err)
	}
	if len(parsed.Errors) > 0 {
		return nil, fmt.Errorf("registry query error: %s", parsed.Errors[0].Message)
	}
	return parsed.Data.Agents, nil
}
