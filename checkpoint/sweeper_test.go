package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeper_SweepOnce(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	require.NoError(t, store.Put(ctx, "t-1", ErrorChannel, []byte("stale")))
	require.NoError(t, store.Put(ctx, "t-1", "values", []byte("keep")))

	sweeper := NewSweeper(store, time.Minute, nil)
	require.NoError(t, sweeper.SweepOnce(ctx))

	_, err := store.Get(ctx, "t-1", ErrorChannel)
	assert.ErrorIs(t, err, ErrNotFound, "error records are swept")

	_, err = store.Get(ctx, "t-1", "values")
	assert.NoError(t, err, "regular records survive the sweep")
}

func TestSweeper_RunSweepsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := NewInMemoryStore()

	require.NoError(t, store.Put(ctx, "t-1", ErrorChannel, []byte("stale")))

	sweeper := NewSweeper(store, time.Hour, nil)
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	// The start-up sweep happens before the first tick.
	assert.Eventually(t, func() bool {
		_, err := store.Get(context.Background(), "t-1", ErrorChannel)
		return err != nil
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on context cancellation")
	}
}
