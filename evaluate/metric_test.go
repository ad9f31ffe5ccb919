package evaluate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestROCAUC(t *testing.T) {
	t.Run("perfect separation", func(t *testing.T) {
		auc, err := rocAUC([]float64{0, 0, 1, 1}, []float64{0.1, 0.2, 0.8, 0.9})
		require.NoError(t, err)
		assert.InDelta(t, 1.0, auc, 1e-12)
	})

	t.Run("inverted separation", func(t *testing.T) {
		auc, err := rocAUC([]float64{1, 1, 0, 0}, []float64{0.1, 0.2, 0.8, 0.9})
		require.NoError(t, err)
		assert.InDelta(t, 0.0, auc, 1e-12)
	})

	t.Run("ties get average rank", func(t *testing.T) {
		auc, err := rocAUC([]float64{0, 1}, []float64{0.5, 0.5})
		require.NoError(t, err)
		assert.InDelta(t, 0.5, auc, 1e-12)
	})

	t.Run("single class", func(t *testing.T) {
		_, err := rocAUC([]float64{1, 1}, []float64{0.2, 0.9})
		assert.ErrorIs(t, err, ErrSingleClass)
	})
}

func TestAccuracy(t *testing.T) {
	acc, err := accuracy([]float64{0, 1, 1, 0}, []float64{0.2, 0.7, 0.4, 0.1})
	require.NoError(t, err)
	assert.InDelta(t, 0.75, acc, 1e-12)
}

func TestRMSE(t *testing.T) {
	v, err := rmse([]float64{1, 2, 3}, []float64{1, 2, 3})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, v, 1e-12)

	v, err = rmse([]float64{0, 0}, []float64{3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 3.5355339059327378, v, 1e-12)
}

func TestRSquared(t *testing.T) {
	v, err := rSquared([]float64{1, 2, 3}, []float64{1, 2, 3})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-12)

	_, err = rSquared([]float64{2, 2, 2}, []float64{1, 2, 3})
	assert.Error(t, err)

	_, err = rSquared([]float64{2, 2, 2}, []float64{2, 2, 2})
	assert.Error(t, err)
}
