package chemgo_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/chemgo"
	"github.com/hupe1980/chemgo/testutil"
)

// populationStats computes per-column mean and population standard
// deviation of a matrix the direct way.
func populationStats(m *mat.Dense) (means, stds []float64) {
	rows, cols := m.Dims()
	means = make([]float64, cols)
	stds = make([]float64, cols)
	for j := 0; j < cols; j++ {
		col := mat.Col(nil, j, m)
		var sum float64
		for _, v := range col {
			sum += v
		}
		mean := sum / float64(rows)
		var sq float64
		for _, v := range col {
			sq += (v - mean) * (v - mean)
		}
		means[j] = mean
		stds[j] = math.Sqrt(sq / float64(rows))
	}
	return means, stds
}

func TestStatistics(t *testing.T) {
	rng := testutil.NewRNG(23)
	x, y, w, ids := makeArrays(rng, 100, 10, 3)

	ds, err := chemgo.FromArrays(t.TempDir(), x, y, w, ids, nil, chemgo.WithShardSize(17))
	require.NoError(t, err)

	stats, err := ds.Statistics()
	require.NoError(t, err)

	wantXMeans, wantXStds := populationStats(x)
	wantYMeans, wantYStds := populationStats(y)

	assert.InDeltaSlice(t, wantXMeans, stats.XMeans, 1e-12)
	assert.InDeltaSlice(t, wantXStds, stats.XStds, 1e-12)
	assert.InDeltaSlice(t, wantYMeans, stats.YMeans, 1e-12)
	assert.InDeltaSlice(t, wantYStds, stats.YStds, 1e-12)

	t.Run("independent of sharding", func(t *testing.T) {
		require.NoError(t, ds.Reshard(100))
		single, err := ds.Statistics()
		require.NoError(t, err)
		assert.InDeltaSlice(t, stats.XMeans, single.XMeans, 1e-12)
		assert.InDeltaSlice(t, stats.XStds, single.XStds, 1e-12)
	})

	t.Run("empty dataset", func(t *testing.T) {
		empty, err := ds.Select(t.TempDir(), nil)
		require.NoError(t, err)
		_, err = empty.Statistics()
		require.ErrorIs(t, err, chemgo.ErrEmptyDataset)
	})
}

func TestStatistics_ConstantColumn(t *testing.T) {
	x := mat.NewDense(4, 2, []float64{
		3, 1,
		3, 2,
		3, 3,
		3, 4,
	})
	y := mat.NewDense(4, 1, []float64{0, 1, 0, 1})
	w := mat.NewDense(4, 1, []float64{1, 1, 1, 1})

	ds, err := chemgo.FromArrays(t.TempDir(), x, y, w, testutil.IDs("m", 4), nil)
	require.NoError(t, err)

	stats, err := ds.Statistics()
	require.NoError(t, err)
	assert.Equal(t, 3.0, stats.XMeans[0])
	assert.Equal(t, 0.0, stats.XStds[0])
	assert.InDelta(t, 2.5, stats.XMeans[1], 1e-12)
	assert.InDelta(t, math.Sqrt(1.25), stats.XStds[1], 1e-12)
	assert.InDelta(t, 0.5, stats.YMeans[0], 1e-12)
	assert.InDelta(t, 0.5, stats.YStds[0], 1e-12)
}
