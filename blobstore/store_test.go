package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, store BlobStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("open missing", func(t *testing.T) {
		_, err := store.Open(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("put and read", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "datasets/tox21/shard-00000.chd", []byte("hello")))

		data, err := ReadAll(ctx, store, "datasets/tox21/shard-00000.chd")
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), data)
	})

	t.Run("streaming create", func(t *testing.T) {
		w, err := store.Create(ctx, "datasets/tox21/manifest.json")
		require.NoError(t, err)
		_, err = w.Write([]byte(`{"version":`))
		require.NoError(t, err)
		_, err = w.Write([]byte(`1}`))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		data, err := ReadAll(ctx, store, "datasets/tox21/manifest.json")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"version":1}`), data)
	})

	t.Run("list by prefix", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "datasets/other/shard-00000.chd", []byte("x")))

		names, err := store.List(ctx, "datasets/tox21/")
		require.NoError(t, err)
		assert.Equal(t, []string{
			"datasets/tox21/manifest.json",
			"datasets/tox21/shard-00000.chd",
		}, names)
	})

	t.Run("read at offset", func(t *testing.T) {
		b, err := store.Open(ctx, "datasets/tox21/shard-00000.chd")
		require.NoError(t, err)
		defer b.Close()

		assert.Equal(t, int64(5), b.Size())

		p := make([]byte, 3)
		n, err := b.ReadAt(p, 2)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, []byte("llo"), p)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "datasets/tox21/shard-00000.chd"))
		_, err := store.Open(ctx, "datasets/tox21/shard-00000.chd")
		assert.ErrorIs(t, err, ErrNotFound)

		// Deleting a missing blob is not an error.
		require.NoError(t, store.Delete(ctx, "datasets/tox21/shard-00000.chd"))
	})
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestLocalStore(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	testStore(t, store)
}

func TestMemoryStore_OpenSnapshotsContent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "a", []byte("one")))
	b, err := store.Open(ctx, "a")
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, store.Put(ctx, "a", []byte("two")))

	data, err := b.(Mappable).Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), data)
}
