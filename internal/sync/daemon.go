package sync

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DaemonConfig configures the continuous sync daemon.
type DaemonConfig struct {
	// Interval is how often to run a reconciliation pass.
	Interval time.Duration

	// ConfigPath, when set, is watched for changes; a modified config
	// rebuilds the runner (re-resolving targets) before the next pass.
	ConfigPath string

	// DebounceInterval is how long to wait after a config change before
	// rebuilding, batching rapid editor writes together.
	DebounceInterval time.Duration

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultDaemonConfig returns sensible defaults.
func DefaultDaemonConfig() *DaemonConfig {
	return &DaemonConfig{
		Interval:         time.Minute,
		DebounceInterval: 500 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// RunnerFactory builds a fresh Runner. The daemon calls it at startup and
// again after each config change, since a runner's targets are fixed for
// its lifetime.
type RunnerFactory func() (*Runner, error)

// Daemon runs reconciliation passes on an interval and hot-reloads the
// runner when the config file changes. Run errors are logged and the loop
// continues; only a context cancellation or an unrecoverable setup failure
// stops the daemon.
type Daemon struct {
	newRunner RunnerFactory
	config    *DaemonConfig
}

// NewDaemon creates a daemon around the given runner factory.
func NewDaemon(newRunner RunnerFactory, config *DaemonConfig) (*Daemon, error) {
	if newRunner == nil {
		return nil, fmt.Errorf("runner factory cannot be nil")
	}
	if config == nil {
		config = DefaultDaemonConfig()
	}
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = 500 * time.Millisecond
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}
	return &Daemon{newRunner: newRunner, config: config}, nil
}

// Start runs the daemon loop. It performs an immediate pass, then repeats
// on the configured interval. This blocks until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	logger := d.config.Logger

	runner, err := d.newRunner()
	if err != nil {
		return fmt.Errorf("failed to build runner: %w", err)
	}

	var watcher *fsnotify.Watcher
	if d.config.ConfigPath != "" {
		watcher, err = fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create config watcher: %w", err)
		}
		defer watcher.Close()

		// Watch the directory, not the file: editors and atomic renames
		// replace the inode and would silently detach a file watch.
		if err := watcher.Add(filepath.Dir(d.config.ConfigPath)); err != nil {
			return fmt.Errorf("failed to watch config directory: %w", err)
		}
		logger.Printf("Watching config: %s", d.config.ConfigPath)
	}

	logger.Printf("Starting daemon: interval=%s", d.config.Interval)
	d.runOnce(ctx, runner)

	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()

	var reloadAt time.Time
	reloadCheck := time.NewTicker(d.config.DebounceInterval)
	defer reloadCheck.Stop()

	for {
		var events chan fsnotify.Event
		var watchErrs chan error
		if watcher != nil {
			events = watcher.Events
			watchErrs = watcher.Errors
		}

		select {
		case <-ctx.Done():
			logger.Printf("Daemon stopping")
			return ctx.Err()

		case <-ticker.C:
			d.runOnce(ctx, runner)

		case event := <-events:
			if filepath.Clean(event.Name) != filepath.Clean(d.config.ConfigPath) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				reloadAt = time.Now().Add(d.config.DebounceInterval)
			}

		case err := <-watchErrs:
			logger.Printf("Warning: config watcher error: %v", err)

		case <-reloadCheck.C:
			if reloadAt.IsZero() || time.Now().Before(reloadAt) {
				continue
			}
			reloadAt = time.Time{}
			next, err := d.newRunner()
			if err != nil {
				logger.Printf("Warning: config reload failed, keeping previous targets: %v", err)
				continue
			}
			runner = next
			logger.Printf("Config reloaded, targets re-resolved")
			d.runOnce(ctx, runner)
		}
	}
}

// runOnce executes a single pass, logging instead of propagating failures.
func (d *Daemon) runOnce(ctx context.Context, runner *Runner) {
	start := time.Now()
	report, err := runner.Run(ctx)
	if err != nil {
		d.config.Logger.Printf("Warning: sync run failed: %v", err)
		return
	}
	if !report.NoOp() {
		d.config.Logger.Printf("Run finished in %v: indexed=%d deleted=%d",
			time.Since(start).Round(time.Millisecond), report.Indexed, report.Deleted)
	}
}
