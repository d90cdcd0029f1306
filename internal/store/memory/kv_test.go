package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brisketlabs/crawld/internal/store"
)

func TestKVRoundTrip(t *testing.T) {
	t.Parallel()

	kv := New()
	ctx := context.Background()

	_, err := kv.Get(ctx, "jobs/j1/state.json")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, kv.Put(ctx, "jobs/j1/state.json", []byte(`{"id":"j1"}`)))
	value, err := kv.Get(ctx, "jobs/j1/state.json")
	require.NoError(t, err)
	require.Equal(t, []byte(`{"id":"j1"}`), value)

	// Mutating the returned slice must not affect the stored value.
	value[0] = 'X'
	again, err := kv.Get(ctx, "jobs/j1/state.json")
	require.NoError(t, err)
	require.Equal(t, []byte(`{"id":"j1"}`), again)
}

func TestKVList(t *testing.T) {
	t.Parallel()

	kv := New()
	ctx := context.Background()
	require.NoError(t, kv.Put(ctx, "jobs/j1/events/000000000002", []byte("b")))
	require.NoError(t, kv.Put(ctx, "jobs/j1/events/000000000001", []byte("a")))
	require.NoError(t, kv.Put(ctx, "jobs/j2/events/000000000001", []byte("c")))

	keys, err := kv.List(ctx, "jobs/j1/events/")
	require.NoError(t, err)
	require.Equal(t, []string{
		"jobs/j1/events/000000000001",
		"jobs/j1/events/000000000002",
	}, keys)
}
