package checkpoint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRaceGuard_SuppressWindow(t *testing.T) {
	base := time.Now()
	guard := NewRaceGuard(500 * time.Millisecond)

	assert.False(t, guard.Suppress(base), "nothing is suppressed before completion")
	assert.False(t, guard.Complete())

	guard.MarkComplete(base)
	assert.True(t, guard.Complete())

	assert.True(t, guard.Suppress(base), "signal at the completion instant is suppressed")
	assert.True(t, guard.Suppress(base.Add(300*time.Millisecond)))
	assert.True(t, guard.Suppress(base.Add(500*time.Millisecond)), "window edge is inclusive")
	assert.False(t, guard.Suppress(base.Add(501*time.Millisecond)), "signals after the window surface normally")
}

func TestRaceGuard_MarkCompleteKeepsFirstTimestamp(t *testing.T) {
	base := time.Now()
	guard := NewRaceGuard(500 * time.Millisecond)

	guard.MarkComplete(base)
	guard.MarkComplete(base.Add(time.Second))

	// The window stays anchored to the real completion.
	assert.False(t, guard.Suppress(base.Add(600*time.Millisecond)))
	assert.Equal(t, 200*time.Millisecond, guard.SinceCompletion(base.Add(200*time.Millisecond)))
}

func TestRaceGuard_ZeroWindowDisablesSuppression(t *testing.T) {
	base := time.Now()
	guard := NewRaceGuard(0)

	guard.MarkComplete(base)
	assert.False(t, guard.Suppress(base))
}

func TestRaceGuard_SinceCompletionBeforeComplete(t *testing.T) {
	guard := NewRaceGuard(time.Second)
	assert.Zero(t, guard.SinceCompletion(time.Now()))
}
