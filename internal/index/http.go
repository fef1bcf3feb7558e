package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/agentscan/regsync/internal/registry"
)

// deleteConcurrency caps parallel per-record delete requests.
const deleteConcurrency = 8

// HTTPIndex talks to the vector indexing service's JSON API.
//
//	POST   {base}/agents        one record
//	POST   {base}/agents/batch  many records
//	DELETE {base}/agents/{chain}/{id}
//
// Deletes are independent and commutative, so DeleteMany fans them out
// concurrently; index upserts are a single logical call and are not split.
type HTTPIndex struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPIndex creates an adapter for the indexing service at baseURL.
//
// If httpClient is nil, a default client with a 60 second timeout is used
// (batch upserts embed server-side and can be slow).
func NewHTTPIndex(baseURL string, httpClient *http.Client) *HTTPIndex {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPIndex{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// WithAPIKey sets a bearer token sent with every request and returns the
// adapter for chaining.
func (h *HTTPIndex) WithAPIKey(key string) *HTTPIndex {
	h.apiKey = key
	return h
}

// IndexOne implements Index.
func (h *HTTPIndex) IndexOne(ctx context.Context, rec *registry.CanonicalAgent) error {
	if err := h.post(ctx, h.baseURL+"/agents", rec); err != nil {
		return fmt.Errorf("failed to index record %s: %w", rec.ID, err)
	}
	return nil
}

// IndexMany implements Index.
func (h *HTTPIndex) IndexMany(ctx context.Context, recs []*registry.CanonicalAgent) error {
	if len(recs) == 0 {
		return nil
	}
	if err := h.post(ctx, h.baseURL+"/agents/batch", recs); err != nil {
		return fmt.Errorf("failed to index batch of %d records: %w", len(recs), err)
	}
	return nil
}

// DeleteMany implements Index. A 404 from the service counts as success:
// the record is already gone.
func (h *HTTPIndex) DeleteMany(ctx context.Context, refs []Ref) error {
	if len(refs) == 0 {
		return nil
	}

	sem := make(chan struct{}, deleteConcurrency)
	errs := make([]error, len(refs))
	var wg sync.WaitGroup

	for i, ref := range refs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, ref Ref) {
			defer wg.Done()
			defer func() { <-sem }()
			errs[i] = h.deleteOne(ctx, ref)
		}(i, ref)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (h *HTTPIndex) deleteOne(ctx context.Context, ref Ref) error {
	target := fmt.Sprintf("%s/agents/%s/%s",
		h.baseURL, url.PathEscape(ref.ChainID), url.PathEscape(ref.ID))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, target, nil)
	if err != nil {
		return fmt.Errorf("failed to build delete request for %s: %w", ref.ID, err)
	}
	h.setHeaders(req)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete record %s: %w", ref.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("delete of record %s returned %s: %s", ref.ID, resp.Status, snippet)
	}
	return nil
}

func (h *HTTPIndex) post(ctx context.Context, target string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	h.setHeaders(req)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("indexing service returned %s: %s", resp.Status, snippet)
	}
	return nil
}

func (h *HTTPIndex) setHeaders(req *http.Request) {
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}
}
