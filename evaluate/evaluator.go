package evaluate

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/chemgo"
	"github.com/hupe1980/chemgo/transform"
)

// Predictor produces a (samples × tasks) prediction matrix for a dataset.
type Predictor interface {
	Predict(ctx context.Context, ds *chemgo.Dataset, transformers []transform.Transformer) (*mat.Dense, error)
}

// Evaluator scores a predictor against a dataset's labels.
type Evaluator struct {
	predictor    Predictor
	dataset      *chemgo.Dataset
	transformers []transform.Transformer
}

// NewEvaluator creates an Evaluator. Transformers are undone on predictions
// and labels so scores are computed in the original label space.
func NewEvaluator(p Predictor, ds *chemgo.Dataset, transformers []transform.Transformer) *Evaluator {
	return &Evaluator{predictor: p, dataset: ds, transformers: transformers}
}

// Scores holds the outcome of one metric over a dataset.
type Scores struct {
	Metric  string
	PerTask map[string]float64
	Mean    float64
}

// Compute scores the dataset under each metric. For every task, rows with
// zero weight in that task's column are excluded.
func (e *Evaluator) Compute(ctx context.Context, metrics ...Metric) ([]Scores, error) {
	yPred, err := e.predictor.Predict(ctx, e.dataset, e.transformers)
	if err != nil {
		return nil, err
	}

	a, err := e.dataset.ToArrays()
	if err != nil {
		return nil, err
	}
	yTrue := a.Y
	transform.UndoAll(yTrue, e.transformers)

	tasks := e.dataset.TaskNames()
	out := make([]Scores, 0, len(metrics))

	for _, m := range metrics {
		s := Scores{Metric: m.Name, PerTask: make(map[string]float64, len(tasks))}

		for t, task := range tasks {
			trueCol, predCol := maskedColumns(yTrue, yPred, a.W, t)
			if len(trueCol) == 0 {
				return nil, fmt.Errorf("%w: %s", ErrNoLabeledRows, task)
			}

			score, err := m.Score(trueCol, predCol)
			if err != nil {
				return nil, fmt.Errorf("evaluate: %s on task %s: %w", m.Name, task, err)
			}

			s.PerTask[task] = score
			s.Mean += score
		}

		s.Mean /= float64(len(tasks))
		out = append(out, s)
	}

	return out, nil
}

// maskedColumns extracts column t of yTrue and yPred, keeping only rows
// whose weight for task t is nonzero.
func maskedColumns(yTrue, yPred, w *mat.Dense, t int) ([]float64, []float64) {
	rows, _ := yTrue.Dims()
	trueCol := make([]float64, 0, rows)
	predCol := make([]float64, 0, rows)

	for i := 0; i < rows; i++ {
		if w.At(i, t) == 0 {
			continue
		}
		trueCol = append(trueCol, yTrue.At(i, t))
		predCol = append(predCol, yPred.At(i, t))
	}
	return trueCol, predCol
}
