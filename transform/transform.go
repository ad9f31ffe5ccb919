// Package transform provides invertible preprocessing for datasets held in
// memory as arrays, plus the inverse application needed to map model output
// back to the original label space.
package transform

import (
	"errors"

	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/chemgo"
)

// ErrNothingToTransform is returned when a transformer is configured to
// touch neither features nor labels.
var ErrNothingToTransform = errors.New("transform: neither X nor y selected")

// Transformer rewrites arrays in place and can invert its effect on labels.
type Transformer interface {
	// TransformArrays applies the transform to a in place.
	TransformArrays(a *chemgo.Arrays) error

	// UndoY inverts the transform on a label or prediction matrix in place.
	// Transformers that do not touch y leave the matrix unchanged.
	UndoY(y *mat.Dense)
}

// UndoAll inverts transformers on y in reverse application order.
func UndoAll(y *mat.Dense, transformers []Transformer) {
	for i := len(transformers) - 1; i >= 0; i-- {
		transformers[i].UndoY(y)
	}
}

// Apply runs transformers over a in order.
func Apply(a *chemgo.Arrays, transformers []Transformer) error {
	for _, tr := range transformers {
		if err := tr.TransformArrays(a); err != nil {
			return err
		}
	}
	return nil
}
