package sync

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/agentscan/regsync/internal/checkpoint"
	"github.com/agentscan/regsync/internal/index"
)

func TestDaemonRunsOnInterval(t *testing.T) {
	src := newFakeLedger()
	src.put(record("agent-1", "ethereum", "10", "one"))

	store := checkpoint.NewMemStore()
	idx := index.NewMemIndex()

	runs := make(chan struct{}, 16)
	newRunner := func() (*Runner, error) {
		return NewRunner(RunnerConfig{
			Store:          store,
			Index:          idx,
			Resolve:        ResolveOptions{Targets: []TargetConfig{{ChainID: "ethereum", Client: src}}},
			IncludeOrphans: true,
			Logger:         log.New(io.Discard, "", 0),
			Sink: func(event string, attrs map[string]any) {
				if event == EventBatch || event == EventChainNoop {
					select {
					case runs <- struct{}{}:
					default:
					}
				}
			},
		})
	}

	daemon, err := NewDaemon(newRunner, &DaemonConfig{
		Interval: 20 * time.Millisecond,
		Logger:   log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("failed to build daemon: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- daemon.Start(ctx) }()

	// Wait for the immediate pass plus at least one interval pass.
	for i := 0; i < 2; i++ {
		select {
		case <-runs:
		case <-time.After(2 * time.Second):
			t.Fatal("daemon did not run within timeout")
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("daemon did not stop on cancel")
	}

	if idx.Len() != 1 {
		t.Errorf("expected the record indexed once, got %d", idx.Len())
	}
	if idx.IndexOneCalls != 1 {
		t.Errorf("repeat passes with no changes must not re-index, got %d calls", idx.IndexOneCalls)
	}
}

func TestDaemonRequiresFactory(t *testing.T) {
	if _, err := NewDaemon(nil, nil); err == nil {
		t.Error("expected error for nil factory")
	}
}

func TestDaemonSurvivesRunFailure(t *testing.T) {
	src := newFakeLedger()
	src.err = errors.New("registry down")

	newRunner := func() (*Runner, error) {
		return NewRunner(RunnerConfig{
			Store:   checkpoint.NewMemStore(),
			Index:   index.NewMemIndex(),
			Resolve: ResolveOptions{Targets: []TargetConfig{{ChainID: "ethereum", Client: src}}},
			Logger:  log.New(io.Discard, "", 0),
		})
	}

	daemon, err := NewDaemon(newRunner, &DaemonConfig{
		Interval: 10 * time.Millisecond,
		Logger:   log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("failed to build daemon: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// Failing runs must not kill the loop; Start returns only when the
	// context expires.
	if err := daemon.Start(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	src.mu.Lock()
	calls := src.calls
	src.mu.Unlock()
	if calls < 2 {
		t.Errorf("expected repeated attempts despite failures, got %d", calls)
	}
}
