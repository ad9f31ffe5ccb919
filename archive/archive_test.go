package archive

import (
	"context"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/chemgo"
	"github.com/hupe1980/chemgo/blobstore"
)

func newTestDataset(t *testing.T) *chemgo.Dataset {
	t.Helper()

	x := mat.NewDense(6, 2, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
	y := mat.NewDense(6, 1, []float64{0, 1, 0, 1, 1, 0})
	w := mat.NewDense(6, 1, []float64{1, 1, 1, 0, 1, 1})
	ids := []string{"m0", "m1", "m2", "m3", "m4", "m5"}

	ds, err := chemgo.FromArrays(t.TempDir(), x, y, w, ids, []string{"tox"}, chemgo.WithShardSize(2))
	require.NoError(t, err)

	return ds
}

func TestArchiveRestore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	ds := newTestDataset(t)

	require.NoError(t, Archive(ctx, ds, store, "tox21/v1", Options{Workers: 2}))
	require.NoError(t, Verify(ctx, store, "tox21/v1"))

	names, err := store.List(ctx, "tox21/v1/")
	require.NoError(t, err)
	// manifest + 3 shards + commit marker
	assert.Len(t, names, 5)
	assert.Contains(t, names, "tox21/v1/"+CommitMarkerName)

	restored, err := Restore(ctx, store, "tox21/v1", t.TempDir(), Options{})
	require.NoError(t, err)

	assert.Equal(t, ds.ID(), restored.ID())
	assert.Equal(t, ds.Len(), restored.Len())
	assert.Equal(t, ds.NumShards(), restored.NumShards())

	want, err := ds.ToArrays()
	require.NoError(t, err)
	got, err := restored.ToArrays()
	require.NoError(t, err)

	assert.Equal(t, want.IDs, got.IDs)
	assert.True(t, mat.Equal(want.X, got.X))
	assert.True(t, mat.Equal(want.Y, got.Y))
	assert.True(t, mat.Equal(want.W, got.W))
}

// ctxStore fails any operation whose context is already done, the way
// remote stores do.
type ctxStore struct {
	blobstore.BlobStore
}

func (s ctxStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.BlobStore.Put(ctx, name, data)
}

func (s ctxStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.BlobStore.Create(ctx, name)
}

func TestArchive_CommitsAgainstContextCheckingStore(t *testing.T) {
	ctx := context.Background()
	store := ctxStore{blobstore.NewMemoryStore()}
	ds := newTestDataset(t)

	// The upload group's context dies once the uploads finish; the commit
	// marker write must still go through on the caller's context.
	require.NoError(t, Archive(ctx, ds, store, "tox21/v1", Options{Workers: 2}))
	require.NoError(t, Verify(ctx, store, "tox21/v1"))
}

func TestRestore_RefusesUncommitted(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	// Partial upload: a shard without a commit marker.
	require.NoError(t, store.Put(ctx, "tox21/v1/shard-00000.chd", []byte("partial")))

	_, err := Restore(ctx, store, "tox21/v1", t.TempDir(), Options{})
	assert.ErrorIs(t, err, ErrNotCommitted)
}

func TestVerify_DetectsMissingFile(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	ds := newTestDataset(t)

	require.NoError(t, Archive(ctx, ds, store, "tox21/v1", Options{}))
	require.NoError(t, store.Delete(ctx, path.Join("tox21/v1", ds.Files()[1])))

	err := Verify(ctx, store, "tox21/v1")
	assert.ErrorIs(t, err, ErrFileMismatch)
}
