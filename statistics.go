package chemgo

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ErrEmptyDataset is returned when statistics are requested for a dataset
// with no rows.
var ErrEmptyDataset = errors.New("dataset has no rows")

// Statistics computes per-feature and per-task population mean and standard
// deviation over the full dataset, streaming shard by shard.
//
// The result matches elementwise mean/std of the arrays ToArrays returns.
func (d *Dataset) Statistics() (*Statistics, error) {
	rows := d.Len()
	if rows == 0 {
		return nil, ErrEmptyDataset
	}

	width := d.store.FeatureWidth()
	nTasks := len(d.TaskNames())

	xMeans := make([]float64, width)
	yMeans := make([]float64, nTasks)

	// Two passes: means first, then squared deviations. Summing deviations
	// around the true mean keeps the variance numerically stable on wide
	// fingerprint matrices.
	for i := 0; i < d.NumShards(); i++ {
		block, err := d.store.Read(i)
		if err != nil {
			return nil, err
		}
		accumulate(xMeans, block.X, width)
		accumulate(yMeans, block.Y, nTasks)
	}
	floats.Scale(1/float64(rows), xMeans)
	floats.Scale(1/float64(rows), yMeans)

	xStds := make([]float64, width)
	yStds := make([]float64, nTasks)
	for i := 0; i < d.NumShards(); i++ {
		block, err := d.store.Read(i)
		if err != nil {
			return nil, err
		}
		accumulateSquaredDev(xStds, block.X, xMeans, width)
		accumulateSquaredDev(yStds, block.Y, yMeans, nTasks)
	}
	for j := range xStds {
		xStds[j] = math.Sqrt(xStds[j] / float64(rows))
	}
	for j := range yStds {
		yStds[j] = math.Sqrt(yStds[j] / float64(rows))
	}

	return &Statistics{
		XMeans: xMeans,
		XStds:  xStds,
		YMeans: yMeans,
		YStds:  yStds,
	}, nil
}

// accumulate adds the column sums of a row-major block to acc.
func accumulate(acc, data []float64, cols int) {
	for i := 0; i < len(data); i += cols {
		for j := 0; j < cols; j++ {
			acc[j] += data[i+j]
		}
	}
}

// accumulateSquaredDev adds squared deviations from means to acc.
func accumulateSquaredDev(acc, data, means []float64, cols int) {
	for i := 0; i < len(data); i += cols {
		for j := 0; j < cols; j++ {
			dev := data[i+j] - means[j]
			acc[j] += dev * dev
		}
	}
}
