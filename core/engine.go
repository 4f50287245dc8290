package core

import "context"

// Engine is the opaque asynchronous event source the relay streams from.
// Run starts one invocation for the given thread and returns a channel of
// raw events plus an error channel for failures of the source itself.
//
// Contract:
//   - The events channel is closed when the engine has no more events to
//     produce (normal completion or after an error).
//   - At most one error is sent on the error channel; a nil error must not
//     be sent.
//   - Both channels must be drained or the context cancelled; the engine
//     observes ctx at every blocking point.
type Engine interface {
	Run(ctx context.Context, threadID, message string) (<-chan RawEvent, <-chan error, error)
}

// Sink receives wire events in production order, one in-flight event at a
// time. Deliver blocks until the transport has accepted the event or ctx is
// done; the coordinator never buffers events it has not delivered.
type Sink interface {
	Deliver(ctx context.Context, ev WireEvent) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, ev WireEvent) error

// Deliver implements Sink.
func (f SinkFunc) Deliver(ctx context.Context, ev WireEvent) error { return f(ctx, ev) }
