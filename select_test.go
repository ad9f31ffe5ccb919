package chemgo_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/chemgo"
	"github.com/hupe1980/chemgo/testutil"
)

func TestSelect(t *testing.T) {
	rng := testutil.NewRNG(17)
	x, y, w, ids := makeArrays(rng, 8, 3, 2)
	ds, err := chemgo.FromArrays(t.TempDir(), x, y, w, ids, nil, chemgo.WithShardSize(3))
	require.NoError(t, err)

	t.Run("preserves order and repeats", func(t *testing.T) {
		indices := []int{5, 0, 5, 2}
		sel, err := ds.Select(t.TempDir(), indices)
		require.NoError(t, err)
		require.Equal(t, len(indices), sel.Len())

		got, err := sel.ToArrays()
		require.NoError(t, err)
		for pos, idx := range indices {
			assert.Equal(t, ids[idx], got.IDs[pos])
			assert.Equal(t, mat.Row(nil, idx, x), mat.Row(nil, pos, got.X))
			assert.Equal(t, mat.Row(nil, idx, y), mat.Row(nil, pos, got.Y))
			assert.Equal(t, mat.Row(nil, idx, w), mat.Row(nil, pos, got.W))
		}
	})

	t.Run("inherits shard size", func(t *testing.T) {
		sel, err := ds.Select(t.TempDir(), []int{0, 1, 2, 3, 4, 5})
		require.NoError(t, err)
		assert.Equal(t, 3, sel.ShardSize())
		assert.Equal(t, 2, sel.NumShards())
	})

	t.Run("source unchanged", func(t *testing.T) {
		_, err := ds.Select(t.TempDir(), []int{1})
		require.NoError(t, err)
		got, err := ds.ToArrays()
		require.NoError(t, err)
		requireSameArrays(t, &chemgo.Arrays{X: x, Y: y, W: w, IDs: ids}, got)
	})

	t.Run("out of range fails whole operation", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "sel")
		_, err := ds.Select(dir, []int{0, 8})
		require.ErrorIs(t, err, chemgo.ErrIndexOutOfRange)
		assert.NoDirExists(t, dir)

		_, err = ds.Select(t.TempDir(), []int{-1})
		require.ErrorIs(t, err, chemgo.ErrIndexOutOfRange)
	})

	t.Run("empty selection", func(t *testing.T) {
		sel, err := ds.Select(t.TempDir(), nil)
		require.NoError(t, err)
		assert.Equal(t, 0, sel.Len())
	})
}

func TestSplit(t *testing.T) {
	rng := testutil.NewRNG(19)
	x, y, w, ids := makeArrays(rng, 10, 4, 2)
	ds, err := chemgo.FromArrays(t.TempDir(), x, y, w, ids, nil)
	require.NoError(t, err)

	train, valid, err := ds.Split(t.TempDir(), t.TempDir(), 8)
	require.NoError(t, err)
	assert.Equal(t, 8, train.Len())
	assert.Equal(t, 2, valid.Len())

	trainIDs, err := train.GetIDs()
	require.NoError(t, err)
	validIDs, err := valid.GetIDs()
	require.NoError(t, err)
	assert.Equal(t, ids[:8], trainIDs)
	assert.Equal(t, ids[8:], validIDs)

	_, _, err = ds.Split(t.TempDir(), t.TempDir(), 11)
	require.ErrorIs(t, err, chemgo.ErrIndexOutOfRange)
}

func TestToSingletask(t *testing.T) {
	x := mat.NewDense(5, 2, []float64{
		1, 2,
		3, 4,
		5, 6,
		7, 8,
		9, 10,
	})
	y := mat.NewDense(5, 2, []float64{
		1, 0,
		0, 1,
		1, 1,
		0, 0,
		1, 0,
	})
	// Task a misses rows 1 and 3; task b keeps every row, one of them
	// through a negative weight.
	w := mat.NewDense(5, 2, []float64{
		1, 0.5,
		0, 1,
		2, -1,
		0, 1,
		1, 1,
	})
	ids := testutil.IDs("m", 5)

	ds, err := chemgo.FromArrays(t.TempDir(), x, y, w, ids, []string{"a", "b"}, chemgo.WithShardSize(2))
	require.NoError(t, err)

	parts, err := ds.ToSingletask([]string{t.TempDir(), t.TempDir()})
	require.NoError(t, err)
	require.Len(t, parts, 2)

	t.Run("drops zero-weight rows", func(t *testing.T) {
		a := parts[0]
		assert.Equal(t, []string{"a"}, a.TaskNames())
		gotIDs, err := a.GetIDs()
		require.NoError(t, err)
		assert.Equal(t, []string{"m0", "m2", "m4"}, gotIDs)

		arrays, err := a.ToArrays()
		require.NoError(t, err)
		r, c := arrays.Y.Dims()
		assert.Equal(t, []int{3, 1}, []int{r, c})
		assert.Equal(t, []float64{1, 2}, mat.Row(nil, 0, arrays.X))
		assert.Equal(t, []float64{1, 1, 1}, mat.Col(nil, 0, arrays.Y))
		assert.Equal(t, []float64{1, 2, 1}, mat.Col(nil, 0, arrays.W))
	})

	t.Run("negative weights are kept", func(t *testing.T) {
		b := parts[1]
		assert.Equal(t, 5, b.Len())
		arrays, err := b.ToArrays()
		require.NoError(t, err)
		assert.Equal(t, []float64{0.5, 1, -1, 1, 1}, mat.Col(nil, 0, arrays.W))
		assert.Equal(t, []float64{0, 1, 1, 0, 0}, mat.Col(nil, 0, arrays.Y))
	})

	t.Run("directory count must match tasks", func(t *testing.T) {
		_, err := ds.ToSingletask([]string{t.TempDir()})
		require.ErrorIs(t, err, chemgo.ErrTaskCountMismatch)
	})
}

func TestToSingletask_RandomWeights(t *testing.T) {
	const rows, features, tasks = 100, 10, 10

	rng := testutil.NewRNG(29)
	xData := make([]float64, rows*features)
	rng.FillGaussian(xData)
	yData := make([]float64, rows*tasks)
	rng.FillUniform(yData)
	wData := rng.Bernoulli(rows*tasks, 0.5)

	x := mat.NewDense(rows, features, xData)
	y := mat.NewDense(rows, tasks, yData)
	w := mat.NewDense(rows, tasks, wData)
	ids := testutil.IDs("m", rows)

	ds, err := chemgo.FromArrays(t.TempDir(), x, y, w, ids, nil, chemgo.WithShardSize(13))
	require.NoError(t, err)

	dirs := make([]string, tasks)
	for i := range dirs {
		dirs[i] = t.TempDir()
	}
	parts, err := ds.ToSingletask(dirs)
	require.NoError(t, err)
	require.Len(t, parts, tasks)

	for col, part := range parts {
		arrays, err := part.ToArrays()
		require.NoError(t, err)

		pos := 0
		for i := 0; i < rows; i++ {
			if w.At(i, col) == 0 {
				continue
			}
			assert.Equal(t, ids[i], arrays.IDs[pos])
			assert.Equal(t, mat.Row(nil, i, x), mat.Row(nil, pos, arrays.X))
			assert.Equal(t, y.At(i, col), arrays.Y.At(pos, 0))
			assert.Equal(t, w.At(i, col), arrays.W.At(pos, 0))
			pos++
		}
		assert.Equal(t, pos, part.Len())
		r, c := arrays.Y.Dims()
		assert.Equal(t, []int{pos, 1}, []int{r, c})
	}
}
