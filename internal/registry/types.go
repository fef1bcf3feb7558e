// Package registry provides data structures for on-chain agent registry
// records and their canonical projection used for indexing.
//
// AgentRecord is the shape returned by the ledger query service. It is
// read-only from this package's perspective: the registry contract creates
// and updates records, regsync only observes them. CanonicalAgent is the
// normalized projection that participates in change detection and indexing;
// it is rebuilt fresh every sync cycle and never persisted directly (only
// its fingerprint is).
package registry

import (
	"fmt"
)

// AgentRecord is a single registration as returned by the registry's
// paginated query endpoint.
type AgentRecord struct {
	// ID is the registry-assigned identifier, unique within a chain.
	ID string `json:"id"`

	// ChainID names the chain this registration lives on (e.g. "ethereum").
	ChainID string `json:"chainId"`

	// UpdatedAt is the registration's last-modified watermark: a decimal
	// string, monotonic per record. Kept as a string because on-chain
	// timestamps can exceed 2^53 and must not be squeezed through float64.
	UpdatedAt string `json:"updatedAt"`

	// Profile holds the agent's registered metadata. A nil profile means
	// the registration has been tombstoned (revoked or expired) and should
	// be removed from downstream indexes.
	Profile *AgentProfile `json:"profile"`
}

// AgentProfile is the mutable metadata attached to a registration.
//
// All fields are optional on the source side; the normalizer maps absent
// values to their neutral form so that fingerprints do not depend on
// null-vs-absent inconsistencies in the source encoding.
type AgentProfile struct {
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Endpoint    string   `json:"endpoint,omitempty"`
	Owner       string   `json:"owner,omitempty"`
	Skills      []string `json:"skills,omitempty"`
	Protocols   []string `json:"protocols,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	// AvatarURL is presentation-only and deliberately excluded from the
	// canonical projection: changing it must not trigger a re-index.
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// CanonicalAgent is the normalized, index-ready projection of a record.
// Slice fields are always non-nil and sorted so that structurally equal
// records fingerprint identically regardless of source field order.
type CanonicalAgent struct {
	ID           string   `json:"id"`
	ChainID      string   `json:"chainId"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Endpoint     string   `json:"endpoint"`
	Owner        string   `json:"owner"`
	Capabilities []string `json:"capabilities"`
	Tags         []string `json:"tags"`
}

// Validate checks that the record is structurally usable. A record failing
// validation is fundamentally unparseable and aborts the whole batch; the
// sync engine never silently drops individual records.
func (r *AgentRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("record id is required")
	}
	if r.ChainID == "" {
		return fmt.Errorf("record %s: chainId is required", r.ID)
	}
	if r.UpdatedAt == "" {
		return fmt.Errorf("record %s: updatedAt is required", r.ID)
	}
	if _, err := ParseWatermark(r.UpdatedAt); err != nil {
		return fmt.Errorf("record %s: %w", r.ID, err)
	}
	return nil
}

// Tombstoned reports whether the source has marked this registration
// inactive. Only an explicit tombstone triggers deletion downstream; a
// record that silently disappears from the source is never detected.
func (r *AgentRecord) Tombstoned() bool {
	return r.Profile == nil
}
