// Package index defines the indexing service consumed by the sync engine
// and provides HTTP and in-memory adapters.
//
// The service owns embedding computation and vector storage; this side only
// hands it canonical records. All operations are idempotent by contract:
// re-indexing an unchanged record or deleting an absent one is a harmless
// no-op, which is what makes the engine's at-least-once retries safe.
package index

import (
	"context"

	"github.com/agentscan/regsync/internal/registry"
)

// Ref identifies an indexed record for deletion.
type Ref struct {
	ChainID string `json:"chainId"`
	ID      string `json:"id"`
}

// Index is the indexing service surface the sync engine consumes.
type Index interface {
	// IndexOne embeds and upserts a single record.
	IndexOne(ctx context.Context, rec *registry.CanonicalAgent) error

	// IndexMany embeds and upserts a batch as one logical call.
	IndexMany(ctx context.Context, recs []*registry.CanonicalAgent) error

	// DeleteMany removes the given records. Deleting a record that is not
	// indexed is not an error.
	DeleteMany(ctx context.Context, refs []Ref) error
}
