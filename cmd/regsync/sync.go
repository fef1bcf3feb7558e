package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentscan/regsync/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one reconciliation pass over all configured chains",
	Long: `Run a single incremental sync:
  1. Resolves the configured chains to registry endpoints
  2. Pages registrations updated since each chain's checkpoint
  3. Indexes changed records, deletes tombstoned ones
  4. Persists the checkpoint after every batch

A failed run can simply be re-run: it resumes from the last persisted
checkpoint and the indexing service calls are idempotent.`,
	Run: func(cmd *cobra.Command, args []string) {
		store, cleanup, err := openStore(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening checkpoint store: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		runner, err := buildRunner(cfg, store, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("%s Syncing...\n", ui.RenderAccent("▶"))
		start := time.Now()

		report, err := runner.Run(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s Sync failed: %v\n", ui.RenderFail("✗"), err)
			os.Exit(1)
		}

		elapsed := time.Since(start).Round(time.Millisecond)
		if report.NoOp() {
			fmt.Printf("%s No changes (%d chain(s), %v)\n", ui.RenderPass("✓"), report.Chains, elapsed)
			return
		}
		fmt.Printf("%s Sync complete in %v\n", ui.RenderPass("✓"), elapsed)
		fmt.Printf("   Chains:  %d\n", report.Chains)
		fmt.Printf("   Batches: %d\n", report.Batches)
		fmt.Printf("   Indexed: %d\n", report.Indexed)
		fmt.Printf("   Deleted: %d\n", report.Deleted)
	},
}
