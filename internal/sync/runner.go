// Package sync implements the incremental reconciliation engine that keeps
// the vector index consistent with the on-chain agent registry.
//
// A run processes each resolved chain sequentially: page new and updated
// records since the chain's checkpoint, diff them against stored
// fingerprints, batch-index the changes, batch-delete the tombstones, then
// persist the advanced checkpoint. Checkpointing the full cross-chain state
// after every batch bounds redundant re-work after a crash to at most one
// in-flight batch and keeps chains independently resumable.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	stdsync "sync"

	"github.com/agentscan/regsync/internal/checkpoint"
	"github.com/agentscan/regsync/internal/index"
	"github.com/agentscan/regsync/internal/registry"
)

// DefaultBatchSize is the page size requested from the registry when the
// config does not set one.
const DefaultBatchSize = 100

// ErrWatermarkStalled is returned when a full page fails to advance a
// chain's watermark. The registry filters strictly above the checkpoint, so
// a stalled full page means the source is misordering or repeating records;
// aborting loudly beats looping forever on the same page.
var ErrWatermarkStalled = errors.New("watermark did not advance over a full page")

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// Store persists per-chain checkpoints. Required.
	Store checkpoint.Store

	// Index is the indexing service. Required.
	Index index.Index

	// Resolve selects the chains to sync and how to reach the registry.
	Resolve ResolveOptions

	// BatchSize is the page size requested from the registry.
	// Defaults to DefaultBatchSize.
	BatchSize int

	// IncludeOrphans enables deletion of tombstoned records from the
	// index. When false, tombstones are skipped and any prior state for
	// them is left untouched.
	IncludeOrphans bool

	// Logger for sync activity. If nil, a default logger writing to
	// stderr is used.
	Logger *log.Logger

	// Sink receives structured sync events. Optional.
	Sink EventSink
}

// Runner drives reconciliation runs. A runner binds to a fixed set of
// targets, resolved once on first use; callers needing different targets
// construct a new runner. A runner must not share its checkpoint store with
// another concurrently running instance.
type Runner struct {
	store          checkpoint.Store
	idx            index.Index
	resolveOpts    ResolveOptions
	batchSize      int
	includeOrphans bool
	logger         *log.Logger
	sink           EventSink

	resolveOnce stdsync.Once
	targets     []Target
	resolveErr  error
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("checkpoint store is required")
	}
	if cfg.Index == nil {
		return nil, fmt.Errorf("indexing service is required")
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Runner{
		store:          cfg.Store,
		idx:            cfg.Index,
		resolveOpts:    cfg.Resolve,
		batchSize:      batchSize,
		includeOrphans: cfg.IncludeOrphans,
		logger:         logger,
		sink:           cfg.Sink,
	}, nil
}

// Targets returns the resolved sync targets, computed once and cached for
// the runner's lifetime.
func (r *Runner) Targets() ([]Target, error) {
	r.resolveOnce.Do(func() {
		r.targets, r.resolveErr = ResolveTargets(r.resolveOpts)
	})
	return r.targets, r.resolveErr
}

// RunReport summarizes one reconciliation run.
type RunReport struct {
	Chains  int
	Batches int
	Indexed int
	Deleted int
}

// NoOp reports whether the run produced zero writes.
func (rep *RunReport) NoOp() bool {
	return rep.Indexed == 0 && rep.Deleted == 0
}

// Run performs one full reconciliation pass over all resolved chains.
//
// A failure aborts the run for the remaining chains, but checkpoints
// already persisted in this run are kept: the in-progress chain resumes
// from its last completed batch on the next run, with at-least-once
// delivery to the (idempotent) indexing service for the aborted batch.
func (r *Runner) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{}

	targets, err := r.Targets()
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		r.logger.Printf("No sync targets resolved")
		r.emit(EventNoTargets, nil)
		return report, nil
	}

	state, err := r.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if state == nil {
		state = checkpoint.NewSyncState()
	}

	for _, target := range targets {
		report.Chains++
		if err := r.syncChain(ctx, state, target, report); err != nil {
			return report, fmt.Errorf("sync of chain %s failed: %w", target.ChainID, err)
		}
	}

	// One more save after all chains, so a run that only adopted a legacy
	// checkpoint or fetched nothing still rewrites durable state.
	if err := r.store.Save(ctx, state); err != nil {
		return report, fmt.Errorf("failed to persist final checkpoint: %w", err)
	}

	if report.NoOp() {
		r.logger.Printf("Sync complete: no changes across %d chain(s)", report.Chains)
		r.emit(EventRunNoop, map[string]any{"chains": report.Chains})
	} else {
		r.logger.Printf("Sync complete: chains=%d batches=%d indexed=%d deleted=%d",
			report.Chains, report.Batches, report.Indexed, report.Deleted)
	}
	return report, nil
}

// syncChain pages one chain forward until the registry is exhausted.
func (r *Runner) syncChain(ctx context.Context, state *checkpoint.SyncState, target Target, report *RunReport) error {
	if state.AdoptLegacy(target.ChainID) {
		r.logger.Printf("Chain %s: adopted legacy single-chain checkpoint", target.ChainID)
	}

	startIndexed, startDeleted := report.Indexed, report.Deleted

	for {
		ps := state.Partition(target.ChainID)

		records, err := target.Client.FetchAgents(ctx, target.ChainID, ps.LastWatermark, r.batchSize)
		if err != nil {
			return fmt.Errorf("failed to fetch records after watermark %q: %w", ps.LastWatermark, err)
		}
		if len(records) == 0 {
			break
		}

		delta, err := r.diffBatch(target.ChainID, ps, records)
		if err != nil {
			return err
		}

		advanced, err := registry.CompareWatermarks(delta.watermark, ps.LastWatermark)
		if err != nil {
			return err
		}
		if advanced <= 0 && len(records) >= r.batchSize {
			return fmt.Errorf("%w: chain %s, %d records at watermark %q",
				ErrWatermarkStalled, target.ChainID, len(records), ps.LastWatermark)
		}

		// WRITE: one indexing call, one deletion call. Both must succeed
		// before the checkpoint advances; a failure here aborts the batch
		// and the next run retries it from the last good watermark.
		switch len(delta.toIndex) {
		case 0:
		case 1:
			if err := r.idx.IndexOne(ctx, delta.toIndex[0]); err != nil {
				return fmt.Errorf("indexing failed: %w", err)
			}
		default:
			if err := r.idx.IndexMany(ctx, delta.toIndex); err != nil {
				return fmt.Errorf("batch indexing failed: %w", err)
			}
		}
		if len(delta.toDelete) > 0 {
			if err := r.idx.DeleteMany(ctx, delta.toDelete); err != nil {
				return fmt.Errorf("deletion failed: %w", err)
			}
		}

		// CHECKPOINT: apply the delta to a copy and swap it in, so a
		// failure anywhere above never leaves a half-mutated checkpoint.
		next := ps.Clone()
		for id, fp := range delta.staged {
			next.RecordHashes[id] = fp
		}
		for _, id := range delta.removed {
			delete(next.RecordHashes, id)
		}
		next.LastWatermark = delta.watermark
		state.SetPartition(target.ChainID, next)

		if err := r.store.Save(ctx, state); err != nil {
			return fmt.Errorf("failed to persist checkpoint: %w", err)
		}

		report.Batches++
		report.Indexed += len(delta.toIndex)
		report.Deleted += len(delta.toDelete)

		r.logger.Printf("Chain %s: indexed=%d deleted=%d watermark=%s",
			target.ChainID, len(delta.toIndex), len(delta.toDelete), next.LastWatermark)
		r.emit(EventBatch, map[string]any{
			"chain":     target.ChainID,
			"indexed":   len(delta.toIndex),
			"deleted":   len(delta.toDelete),
			"watermark": next.LastWatermark,
		})

		// A short page means the registry is exhausted; skip the extra
		// empty-fetch round trip.
		if len(records) < r.batchSize {
			break
		}
	}

	if report.Indexed == startIndexed && report.Deleted == startDeleted {
		r.logger.Printf("Chain %s: no changes", target.ChainID)
		r.emit(EventChainNoop, map[string]any{"chain": target.ChainID})
	}
	return nil
}

// batchDelta is the immutable change set computed for one page. It is
// applied to a copy of the chain state only after the indexing service has
// acknowledged the whole batch.
type batchDelta struct {
	toIndex   []*registry.CanonicalAgent
	staged    map[string]string
	toDelete  []index.Ref
	removed   []string
	watermark string
}

// diffBatch classifies one page of records against the chain's checkpoint.
// Any malformed record fails the whole batch; partial-batch skipping would
// be silent data loss.
func (r *Runner) diffBatch(chainID string, ps *checkpoint.PartitionState, records []registry.AgentRecord) (*batchDelta, error) {
	delta := &batchDelta{
		staged:    make(map[string]string),
		watermark: ps.LastWatermark,
	}

	for i := range records {
		rec := &records[i]
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("malformed record in batch: %w", err)
		}

		max, err := registry.MaxWatermark(delta.watermark, rec.UpdatedAt)
		if err != nil {
			return nil, err
		}
		delta.watermark = max

		if rec.Tombstoned() {
			if !r.includeOrphans {
				continue
			}
			delta.toDelete = append(delta.toDelete, index.Ref{ChainID: chainID, ID: rec.ID})
			delta.removed = append(delta.removed, rec.ID)
			continue
		}

		canon, _ := registry.Normalize(rec)
		fp, err := registry.Fingerprint(canon)
		if err != nil {
			return nil, err
		}
		if ps.RecordHashes[rec.ID] == fp {
			// Unchanged within the canonical projection; never re-sent,
			// even if non-canonical fields moved.
			continue
		}
		delta.toIndex = append(delta.toIndex, canon)
		delta.staged[rec.ID] = fp
	}
	return delta, nil
}
