// Command regsync keeps a vector search index in sync with on-chain agent
// registries across multiple chains.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/agentscan/regsync/internal/config"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "regsync",
	Short: "Sync on-chain agent registries into a vector search index",
	Long: `regsync is the batch reconciler between on-chain agent registries and
the vector search index used for agent discovery.

Each run pages new and updated registrations since the per-chain checkpoint,
indexes the ones whose canonical content changed, deletes tombstoned ones,
and persists the advanced checkpoint after every batch. Runs are idempotent
and resumable: re-running after a crash repeats at most one batch.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		if cfg.Log.File != "" {
			log.SetOutput(&lumberjack.Logger{
				Filename:   cfg.Log.File,
				MaxSize:    cfg.Log.MaxSizeMB,
				MaxBackups: cfg.Log.MaxBackups,
				MaxAge:     cfg.Log.MaxAgeDays,
				Compress:   true,
			})
		}
		return nil
	},
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default: ./regsync.yaml)")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(daemonCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
