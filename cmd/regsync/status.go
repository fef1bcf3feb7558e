package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/agentscan/regsync/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-chain checkpoint state",
	Long: `Display the persisted sync state: for each chain, the last indexed
watermark and the number of records currently tracked.`,
	Run: func(cmd *cobra.Command, args []string) {
		store, cleanup, err := openStore(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening checkpoint store: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		state, err := store.Load(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading checkpoint: %v\n", err)
			os.Exit(1)
		}
		if state == nil {
			fmt.Printf("\n%s No checkpoint yet (next sync starts from genesis)\n\n", ui.RenderWarn("⚠"))
			return
		}

		chains := make([]string, 0, len(state.Chains))
		for chainID := range state.Chains {
			chains = append(chains, chainID)
		}
		sort.Strings(chains)

		fmt.Printf("\n%s Checkpoint (%s backend)\n\n", ui.RenderAccent("●"), cfg.Checkpoint.Backend)
		for _, chainID := range chains {
			ps := state.Chains[chainID]
			watermark := ps.LastWatermark
			if watermark == "" {
				watermark = ui.RenderDim("genesis")
			}
			fmt.Printf("   %-12s watermark=%s records=%d\n", chainID, watermark, len(ps.RecordHashes))
		}
		fmt.Println()
	},
}
