// Package agentrelay exposes a long-running agent execution engine to
// remote clients as an ordered stream of wire events. The facade wires the
// normalizer, the stream coordinator, the checkpoint store and the logger
// together; transports in transport/ sit on top of it.
package agentrelay

import (
	"context"
	"time"

	"github.com/hupe1980/agentrelay/checkpoint"
	"github.com/hupe1980/agentrelay/config"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/hupe1980/agentrelay/stream"
)

// Options holds configuration overrides passed to New().
type Options struct {
	// Store persists checkpoints and receives the sweeper's cleanup.
	// Defaults to an in-memory store.
	Store checkpoint.Store
	// Logger receives structured run logs. Defaults to a no-op logger.
	Logger logging.Logger
	// StreamTimeout bounds one run's total wall-clock time.
	StreamTimeout time.Duration
	// ToolTimeout bounds each individual tool invocation.
	ToolTimeout time.Duration
	// WebSearchTimeout bounds web search tool invocations; it must not
	// exceed ToolTimeout.
	WebSearchTimeout time.Duration
	// GraceWindow bounds post-completion suppression of persistence noise.
	GraceWindow time.Duration
}

// WithStore overrides the checkpoint store.
func WithStore(store checkpoint.Store) func(o *Options) {
	return func(o *Options) { o.Store = store }
}

// WithLogger overrides the logger.
func WithLogger(logger logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = logger }
}

// WithTimeouts applies a validated timeout hierarchy from the config layer.
func WithTimeouts(t config.Timeouts) func(o *Options) {
	return func(o *Options) {
		o.StreamTimeout = t.Stream()
		o.ToolTimeout = t.Tool()
		o.WebSearchTimeout = t.WebSearch()
	}
}

// WithGraceWindow overrides the post-completion grace window.
func WithGraceWindow(d time.Duration) func(o *Options) {
	return func(o *Options) { o.GraceWindow = d }
}

// Relay is the top-level entry point. It is safe for concurrent use.
type Relay struct {
	coordinator *stream.Coordinator
	store       checkpoint.Store
	logger      logging.Logger
}

// New creates a Relay around the given engine.
func New(engine core.Engine, optFns ...func(o *Options)) *Relay {
	opts := Options{
		Store:            checkpoint.NewInMemoryStore(),
		Logger:           logging.NoOpLogger{},
		StreamTimeout:    5 * time.Minute,
		ToolTimeout:      2 * time.Minute,
		WebSearchTimeout: 30 * time.Second,
		GraceWindow:      500 * time.Millisecond,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	coordinator := stream.New(engine, func(o *stream.Options) {
		o.StreamTimeout = opts.StreamTimeout
		o.ToolTimeout = opts.ToolTimeout
		o.WebSearchTimeout = opts.WebSearchTimeout
		o.GraceWindow = opts.GraceWindow
		o.Logger = opts.Logger
	})

	return &Relay{
		coordinator: coordinator,
		store:       opts.Store,
		logger:      opts.Logger,
	}
}

// Coordinator returns the underlying stream coordinator for transports.
func (r *Relay) Coordinator() *stream.Coordinator { return r.coordinator }

// Store returns the checkpoint store.
func (r *Relay) Store() checkpoint.Store { return r.store }

// Stream drives one run, delivering every wire event to the sink in
// production order. It returns the finished session.
func (r *Relay) Stream(ctx context.Context, threadID, message string, sink core.Sink) (*core.RunSession, error) {
	return r.coordinator.Run(ctx, threadID, message, sink)
}

// StreamSync drives one run to completion and returns the collected wire
// events. Intended for tests and batch callers that do not need
// incremental delivery.
func (r *Relay) StreamSync(ctx context.Context, threadID, message string) ([]core.WireEvent, *core.RunSession, error) {
	var collected []core.WireEvent
	sink := core.SinkFunc(func(_ context.Context, ev core.WireEvent) error {
		collected = append(collected, ev)
		return nil
	})

	sess, err := r.coordinator.Run(ctx, threadID, message, sink)
	if err != nil {
		return nil, nil, err
	}
	return collected, sess, nil
}

// Close releases the checkpoint store.
func (r *Relay) Close() error {
	if r.store == nil {
		return nil
	}
	return r.store.Close()
}
