package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentscan/regsync/internal/ui"
)

var clearForce bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Reset the checkpoint to genesis",
	Long: `Delete the persisted sync state. The next run re-reads every chain from
genesis and re-indexes everything; the indexing service tolerates this
(upserts are idempotent), but it is expensive. Requires --force.`,
	Run: func(cmd *cobra.Command, args []string) {
		if !clearForce {
			fmt.Fprintf(os.Stderr, "%s This discards all sync progress. Re-run with --force to confirm.\n",
				ui.RenderWarn("⚠"))
			os.Exit(1)
		}

		store, cleanup, err := openStore(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening checkpoint store: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		if err := store.Clear(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Error clearing checkpoint: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s Checkpoint cleared\n", ui.RenderPass("✓"))
	},
}

func init() {
	clearCmd.Flags().BoolVar(&clearForce, "force", false, "confirm discarding all sync progress")
}
