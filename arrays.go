package chemgo

import (
	"gonum.org/v1/gonum/mat"
)

// Arrays is the in-memory form of a dataset: feature, label and weight
// matrices plus row ids, all sharing one row count and row order.
//
// X is rows × feature width (multi-dimensional feature shapes are stored
// row-major and flattened). Y and W are rows × tasks. Matrices are nil when
// the row count is zero.
type Arrays struct {
	X   *mat.Dense
	Y   *mat.Dense
	W   *mat.Dense
	IDs []string
}

// Rows returns the shared row count.
func (a *Arrays) Rows() int {
	return len(a.IDs)
}

// Batch is one contiguous slice of dataset rows, in canonical order.
type Batch struct {
	X   *mat.Dense
	Y   *mat.Dense
	W   *mat.Dense
	IDs []string
}

// Rows returns the number of rows in the batch.
func (b *Batch) Rows() int {
	return len(b.IDs)
}

// Shape reports the shapes of the four dataset arrays, matching what
// ToArrays would produce.
type Shape struct {
	X   []int // rows, feature shape...
	Y   []int // rows, tasks
	W   []int // rows, tasks
	IDs []int // rows
}

// Statistics holds per-feature and per-task population statistics computed
// over the full dataset.
type Statistics struct {
	XMeans []float64
	XStds  []float64
	YMeans []float64
	YStds  []float64
}

// denseOrNil builds a matrix from row-major data, returning nil for zero
// rows (gonum rejects zero-sized matrices).
func denseOrNil(rows, cols int, data []float64) *mat.Dense {
	if rows == 0 || cols == 0 {
		return nil
	}
	return mat.NewDense(rows, cols, data)
}

// flatten returns the row-major values of a matrix as one contiguous slice.
// Views with a stride wider than their column count are compacted.
func flatten(m *mat.Dense) []float64 {
	if m == nil {
		return nil
	}
	rm := m.RawMatrix()
	if rm.Stride == rm.Cols {
		return rm.Data[:rm.Rows*rm.Cols]
	}
	out := make([]float64, rm.Rows*rm.Cols)
	for i := 0; i < rm.Rows; i++ {
		copy(out[i*rm.Cols:(i+1)*rm.Cols], rm.Data[i*rm.Stride:i*rm.Stride+rm.Cols])
	}
	return out
}
