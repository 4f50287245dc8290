package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/agentrelay/core"
)

// CollectSink records every delivered wire event in order. Safe for
// concurrent use.
type CollectSink struct {
	mu     sync.Mutex
	events []core.WireEvent
	// FailAfter, when > 0, makes delivery fail once that many events have
	// been accepted. Models a client that goes away mid-stream.
	FailAfter int
	// FailErr is returned on failed deliveries; defaults to
	// context.Canceled.
	FailErr error
}

var _ core.Sink = (*CollectSink)(nil)

// Deliver implements core.Sink.
func (s *CollectSink) Deliver(_ context.Context, ev core.WireEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailAfter > 0 && len(s.events) >= s.FailAfter {
		if s.FailErr != nil {
			return s.FailErr
		}
		return context.Canceled
	}

	s.events = append(s.events, ev)
	return nil
}

// Events returns a copy of the delivered events in order.
func (s *CollectSink) Events() []core.WireEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.WireEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Kinds returns the delivered kinds in order.
func (s *CollectSink) Kinds() []core.WireKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]core.WireKind, len(s.events))
	for i, ev := range s.events {
		kinds[i] = ev.Kind
	}
	return kinds
}

// Last returns the final delivered event, or a zero event if none.
func (s *CollectSink) Last() core.WireEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return core.WireEvent{}
	}
	return s.events[len(s.events)-1]
}
