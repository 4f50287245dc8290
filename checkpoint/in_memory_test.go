package checkpoint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_PutGet(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	require.NoError(t, store.Put(ctx, "t-1", "values", []byte(`{"n":1}`)))

	rec, err := store.Get(ctx, "t-1", "values")
	require.NoError(t, err)
	assert.Equal(t, "t-1", rec.ThreadID)
	assert.Equal(t, "values", rec.Channel)
	assert.Equal(t, []byte(`{"n":1}`), rec.Payload)
	assert.False(t, rec.UpdatedAt.IsZero())

	// Mutating the returned payload must not affect the stored record.
	rec.Payload[0] = 'X'
	again, err := store.Get(ctx, "t-1", "values")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"n":1}`), again.Payload)
}

func TestInMemoryStore_GetNotFound(t *testing.T) {
	store := NewInMemoryStore()

	_, err := store.Get(context.Background(), "t-1", "values")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryStore_ListOrderedByChannel(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	require.NoError(t, store.Put(ctx, "t-1", "values", []byte("v")))
	require.NoError(t, store.Put(ctx, "t-1", ErrorChannel, []byte("e")))
	require.NoError(t, store.Put(ctx, "t-2", "values", []byte("other")))

	recs, err := store.List(ctx, "t-1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, ErrorChannel, recs[0].Channel)
	assert.Equal(t, "values", recs[1].Channel)
}

func TestInMemoryStore_DeleteChannel(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	require.NoError(t, store.Put(ctx, "t-1", ErrorChannel, []byte("e1")))
	require.NoError(t, store.Put(ctx, "t-2", ErrorChannel, []byte("e2")))
	require.NoError(t, store.Put(ctx, "t-2", "values", []byte("v")))

	n, err := store.DeleteChannel(ctx, ErrorChannel)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	_, err = store.Get(ctx, "t-2", ErrorChannel)
	assert.ErrorIs(t, err, ErrNotFound)

	rec, err := store.Get(ctx, "t-2", "values")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), rec.Payload)
}
