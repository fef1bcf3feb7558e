package sync

// Event names emitted through the runner's sink.
const (
	// EventNoTargets fires when resolution produced no chains to sync.
	EventNoTargets = "sync.no_targets"

	// EventBatch fires after each successfully checkpointed batch, with
	// "chain", "indexed", "deleted" and "watermark" attributes.
	EventBatch = "sync.batch"

	// EventChainNoop fires when an entire run for one chain produced zero
	// index or delete calls.
	EventChainNoop = "sync.chain_noop"

	// EventRunNoop fires when a whole run produced zero writes.
	EventRunNoop = "sync.noop"
)

// EventSink receives structured sync events. It is advisory only: the
// runner invokes it on notable transitions, and its absence never changes
// sync behavior. Implementations must not block.
type EventSink func(event string, attrs map[string]any)

// emit invokes the sink if one is configured.
func (r *Runner) emit(event string, attrs map[string]any) {
	if r.sink != nil {
		r.sink(event, attrs)
	}
}
