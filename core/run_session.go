package core

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// RunState is the lifecycle state of a RunSession.
//
// Transitions: Pending -> Streaming -> {Completed | Cancelled | Errored}.
// The three right-hand states are terminal; once entered no further wire
// event is produced for the session beyond the single terminal event that
// caused the transition.
type RunState int

const (
	// RunPending means the run has been created but the engine's event
	// source has not been acquired yet.
	RunPending RunState = iota
	// RunStreaming means the coordinator is iterating the engine's events.
	RunStreaming
	// RunCompleted means the engine signaled completion.
	RunCompleted
	// RunCancelled means a cancellation signal (disconnect, abort or
	// deadline expiry) ended the run.
	RunCancelled
	// RunErrored means the engine's event source itself failed.
	RunErrored
)

// String returns the lowercase state name.
func (s RunState) String() string {
	switch s {
	case RunPending:
		return "pending"
	case RunStreaming:
		return "streaming"
	case RunCompleted:
		return "completed"
	case RunCancelled:
		return "cancelled"
	case RunErrored:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state admits no further transitions.
func (s RunState) Terminal() bool {
	return s == RunCompleted || s == RunCancelled || s == RunErrored
}

// RunSession is the per-run bookkeeping record. It is owned exclusively by
// the coordinator task driving the run: that task is the sole writer of
// Seq, Kinds, Shard and State, so no locking is required.
type RunSession struct {
	// ThreadID is stable across turns of one conversation.
	ThreadID string
	// TraceID is unique per invocation and used for correlation.
	TraceID string
	// State is the lifecycle state; use Transition to change it.
	State RunState
	// Seq counts wire events produced for this run, monotonically.
	Seq int
	// Kinds is the set of distinct wire event kinds observed.
	Kinds map[WireKind]struct{}
	// Shard indexes the current contiguous block of model output; it
	// advances on each model completion boundary.
	Shard int
	// Started is the session creation time.
	Started time.Time
}

// NewRunSession creates a pending session for the given thread with a fresh
// trace identifier.
func NewRunSession(threadID string) *RunSession {
	return &RunSession{
		ThreadID: threadID,
		TraceID:  NewTraceID(),
		State:    RunPending,
		Kinds:    make(map[WireKind]struct{}),
		Started:  time.Now().UTC(),
	}
}

// NewTraceID generates a unique identifier for run correlation.
func NewTraceID() string { return uuid.NewString() }

// Record notes one produced wire event: it bumps the sequence counter and
// adds the kind to the observed set.
func (s *RunSession) Record(kind WireKind) {
	s.Seq++
	s.Kinds[kind] = struct{}{}
}

// Transition moves the session to the next state. Transitions out of a
// terminal state are ignored: a completed run is never retroactively
// overwritten by a cancellation.
func (s *RunSession) Transition(next RunState) bool {
	if s.State.Terminal() {
		return false
	}
	s.State = next
	return true
}

// KindNames returns the observed kinds sorted for stable logging.
func (s *RunSession) KindNames() []string {
	names := make([]string, 0, len(s.Kinds))
	for k := range s.Kinds {
		names = append(names, string(k))
	}
	sort.Strings(names)
	return names
}
