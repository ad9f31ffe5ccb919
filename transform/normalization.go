package transform

import (
	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/chemgo"
)

// Normalization centers columns to zero mean and scales them to unit
// standard deviation, using statistics computed over a reference dataset.
// Columns with zero deviation are centered but not scaled.
type Normalization struct {
	transformX bool
	transformY bool

	xMeans, xStds []float64
	yMeans, yStds []float64
}

var _ Transformer = (*Normalization)(nil)

// NewNormalization builds a Normalization from dataset statistics. At least
// one of transformX and transformY must be set.
func NewNormalization(stats *chemgo.Statistics, transformX, transformY bool) (*Normalization, error) {
	if !transformX && !transformY {
		return nil, ErrNothingToTransform
	}

	return &Normalization{
		transformX: transformX,
		transformY: transformY,
		xMeans:     stats.XMeans,
		xStds:      stats.XStds,
		yMeans:     stats.YMeans,
		yStds:      stats.YStds,
	}, nil
}

// TransformArrays normalizes the selected arrays in place.
func (n *Normalization) TransformArrays(a *chemgo.Arrays) error {
	if n.transformX && a.X != nil {
		normalize(a.X, n.xMeans, n.xStds)
	}
	if n.transformY && a.Y != nil {
		normalize(a.Y, n.yMeans, n.yStds)
	}
	return nil
}

// UndoY maps normalized labels back to the original scale in place.
func (n *Normalization) UndoY(y *mat.Dense) {
	if !n.transformY || y == nil {
		return
	}

	rows, cols := y.Dims()
	for j := 0; j < cols; j++ {
		mean, std := n.yMeans[j], n.yStds[j]
		if std == 0 {
			std = 1
		}
		for i := 0; i < rows; i++ {
			y.Set(i, j, y.At(i, j)*std+mean)
		}
	}
}

func normalize(m *mat.Dense, means, stds []float64) {
	rows, cols := m.Dims()
	for j := 0; j < cols; j++ {
		mean, std := means[j], stds[j]
		if std == 0 {
			std = 1
		}
		for i := 0; i < rows; i++ {
			m.Set(i, j, (m.At(i, j)-mean)/std)
		}
	}
}
