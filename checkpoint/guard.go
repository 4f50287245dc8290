package checkpoint

import "time"

// RaceGuard tracks whether a run is logically complete and, for a bounded
// grace window afterwards, classifies persistence-layer cancellation or
// error signals as false positives of the layer's own finalization work.
//
// A RaceGuard belongs to a single run task and is not safe for concurrent
// use; the run model guarantees a single writer.
type RaceGuard struct {
	grace       time.Duration
	complete    bool
	completedAt time.Time
}

// NewRaceGuard creates a guard with the given grace window. A zero window
// disables suppression entirely.
func NewRaceGuard(grace time.Duration) *RaceGuard {
	return &RaceGuard{grace: grace}
}

// MarkComplete records the instant the engine's completion signal was
// observed. Subsequent calls keep the first timestamp so the window is
// anchored to the real completion.
func (g *RaceGuard) MarkComplete(now time.Time) {
	if g.complete {
		return
	}
	g.complete = true
	g.completedAt = now
}

// Complete reports whether logical completion has been observed.
func (g *RaceGuard) Complete() bool { return g.complete }

// SinceCompletion returns the elapsed time since completion; zero when the
// run is not complete.
func (g *RaceGuard) SinceCompletion(now time.Time) time.Duration {
	if !g.complete {
		return 0
	}
	return now.Sub(g.completedAt)
}

// Suppress reports whether a cancellation/error signal observed at `now`
// should be absorbed: it must arrive strictly after logical completion and
// within the grace window.
func (g *RaceGuard) Suppress(now time.Time) bool {
	if !g.complete || g.grace <= 0 {
		return false
	}
	elapsed := now.Sub(g.completedAt)
	return elapsed >= 0 && elapsed <= g.grace
}
