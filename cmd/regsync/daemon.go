package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentscan/regsync/internal/config"
	"github.com/agentscan/regsync/internal/sync"
	"github.com/agentscan/regsync/internal/ui"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run continuous sync on an interval",
	Long: `Run reconciliation passes repeatedly at the configured interval
(daemon.interval). When a config file is in use, it is watched for changes
and targets are re-resolved without restarting the process.

Stop with SIGINT or SIGTERM; the in-flight batch either completes and
checkpoints or is retried on the next start.`,
	Run: func(cmd *cobra.Command, args []string) {
		store, cleanup, err := openStore(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening checkpoint store: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		// The factory reloads config so edits picked up by the watcher
		// take effect on the rebuilt runner. The checkpoint store stays
		// fixed for the daemon's lifetime: swapping stores mid-flight
		// would fork sync history.
		newRunner := func() (*sync.Runner, error) {
			current := cfg
			if configPath != "" {
				reloaded, err := config.Load(configPath)
				if err != nil {
					return nil, err
				}
				current = reloaded
			}
			return buildRunner(current, store, nil)
		}

		daemonConfig := sync.DefaultDaemonConfig()
		daemonConfig.Interval = cfg.Daemon.Interval
		daemonConfig.ConfigPath = configPath

		daemon, err := sync.NewDaemon(newRunner, daemonConfig)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("%s Daemon running (interval %s). Ctrl-C to stop.\n",
			ui.RenderAccent("▶"), cfg.Daemon.Interval)

		if err := daemon.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "%s Daemon failed: %v\n", ui.RenderFail("✗"), err)
			os.Exit(1)
		}
		fmt.Printf("%s Daemon stopped\n", ui.RenderPass("✓"))
	},
}
