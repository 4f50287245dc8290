package engine

import (
	"context"
	"time"

	"github.com/hupe1980/agentrelay/core"
)

// ScriptedOptions configures replay behavior of a Scripted engine.
type ScriptedOptions struct {
	// Interval inserts a delay before each emitted event.
	Interval time.Duration
	// HoldOpen keeps the event channel open after the last event until the
	// run context is cancelled. Useful for exercising cancellation paths.
	HoldOpen bool
	// Err, when non-nil, is sent on the error channel after the last event
	// (plus ErrDelay). It models a failure of the event source itself or a
	// late persistence-layer signal.
	Err error
	// ErrDelay postpones sending Err relative to the last emitted event.
	ErrDelay time.Duration
}

// Scripted is a deterministic core.Engine that replays a fixed sequence of
// raw events. Safe for concurrent runs; the script is read-only.
type Scripted struct {
	events []core.RawEvent
	opts   ScriptedOptions
}

var _ core.Engine = (*Scripted)(nil)

// NewScripted creates a scripted engine replaying the given events in order.
func NewScripted(events []core.RawEvent, optFns ...func(o *ScriptedOptions)) *Scripted {
	opts := ScriptedOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Scripted{events: events, opts: opts}
}

// Run implements core.Engine.
func (s *Scripted) Run(ctx context.Context, _, _ string) (<-chan core.RawEvent, <-chan error, error) {
	eventsCh := make(chan core.RawEvent)
	errsCh := make(chan error, 1)
	emitted := make(chan struct{})

	go func() {
		defer close(eventsCh)

		for _, ev := range s.events {
			if s.opts.Interval > 0 {
				select {
				case <-ctx.Done():
					close(emitted)
					return
				case <-time.After(s.opts.Interval):
				}
			}
			select {
			case <-ctx.Done():
				close(emitted)
				return
			case eventsCh <- ev:
			}
		}

		close(emitted)

		if s.opts.HoldOpen {
			<-ctx.Done()
		}
	}()

	go func() {
		defer close(errsCh)

		select {
		case <-emitted:
		case <-ctx.Done():
			return
		}
		if s.opts.Err == nil {
			return
		}
		if s.opts.ErrDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.opts.ErrDelay):
			}
		}
		select {
		case <-ctx.Done():
		case errsCh <- s.opts.Err:
		}
	}()

	return eventsCh, errsCh, nil
}
