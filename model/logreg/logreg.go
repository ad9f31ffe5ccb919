// Package logreg is a small reference learner for the model.Model
// capability: logistic regression for classification tasks and linear
// regression for regression tasks, trained with mini-batch gradient descent.
//
// It exists so the multitask router, evaluator and training command can run
// end to end without an external ML framework.
package logreg

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/chemgo"
	"github.com/hupe1980/chemgo/model"
)

const stateFileName = "model.gob"

var (
	// ErrNotFitted is returned when predicting with an unfitted model.
	ErrNotFitted = errors.New("logreg: model not fitted")

	// ErrSingleTask is returned when the model is built for more than one task.
	ErrSingleTask = errors.New("logreg: exactly one task required")
)

// Model is a single-task linear model.
type Model struct {
	task   string
	kind   model.TaskKind
	params model.Params
	dir    string

	state *state
}

// state is the persisted fitted state.
type state struct {
	Weights []float64
	Bias    float64
	Kind    model.TaskKind
}

// Builder adapts New to the model.Builder capability.
func Builder(tasks []string, kinds map[string]model.TaskKind, params model.Params, dir string) (model.Model, error) {
	return New(tasks, kinds, params, dir)
}

// New creates an unfitted model for a single task, rooted at dir.
func New(tasks []string, kinds map[string]model.TaskKind, params model.Params, dir string) (*Model, error) {
	if len(tasks) != 1 {
		return nil, fmt.Errorf("%w: got %d", ErrSingleTask, len(tasks))
	}
	task := tasks[0]
	kind, ok := kinds[task]
	if !ok {
		return nil, fmt.Errorf("logreg: no task kind for %q", task)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Model{task: task, kind: kind, params: params, dir: dir}, nil
}

// Fit trains the model over the dataset with mini-batch gradient descent.
// Hyper-parameters: batch_size (32), epochs (10), learning_rate (0.01),
// penalty (0, L2).
func (m *Model) Fit(ctx context.Context, ds *chemgo.Dataset) error {
	width := 1
	for _, d := range ds.DataShape() {
		width *= d
	}

	st := &state{
		Weights: make([]float64, width),
		Kind:    m.kind,
	}

	batchSize := int(m.params.Get("batch_size", 32))
	epochs := int(m.params.Get("epochs", 10))
	lr := m.params.Get("learning_rate", 0.01)
	penalty := m.params.Get("penalty", 0)

	for epoch := 0; epoch < epochs; epoch++ {
		for batch, err := range ds.Batches(batchSize) {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			m.step(st, batch, lr, penalty)
		}
	}

	m.state = st
	return nil
}

// step applies one gradient update from a batch.
func (m *Model) step(st *state, batch *chemgo.Batch, lr, penalty float64) {
	rows := batch.Rows()
	if rows == 0 {
		return
	}

	gradW := make([]float64, len(st.Weights))
	var gradB, totalWeight float64

	for i := 0; i < rows; i++ {
		x := batch.X.RawRowView(i)
		label := batch.Y.At(i, 0)
		weight := batch.W.At(i, 0)
		if weight == 0 {
			continue
		}

		pred := floats.Dot(st.Weights, x) + st.Bias
		if st.Kind == model.Classification {
			pred = sigmoid(pred)
		}
		// For sigmoid cross-entropy and squared loss alike, the residual
		// drives the gradient.
		residual := (pred - label) * weight

		floats.AddScaledTo(gradW, gradW, residual, x)
		gradB += residual
		totalWeight += math.Abs(weight)
	}
	if totalWeight == 0 {
		return
	}

	step := lr / totalWeight
	for j := range st.Weights {
		st.Weights[j] -= step*gradW[j] + lr*penalty*st.Weights[j]
	}
	st.Bias -= step * gradB
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// Save persists the fitted state to the model directory.
func (m *Model) Save() error {
	if m.state == nil {
		return ErrNotFitted
	}

	path := filepath.Join(m.dir, stateFileName)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(m.state); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Reload restores a previously saved state. It fails if the directory holds
// no persisted model.
func (m *Model) Reload() error {
	f, err := os.Open(filepath.Join(m.dir, stateFileName))
	if err != nil {
		return err
	}
	defer f.Close()

	var st state
	if err := gob.NewDecoder(f).Decode(&st); err != nil {
		return fmt.Errorf("logreg: decode model state: %w", err)
	}
	m.state = &st
	return nil
}

// score returns the raw model output for every row of x.
func (m *Model) score(x mat.Matrix) ([]float64, error) {
	if m.state == nil {
		return nil, ErrNotFitted
	}
	rows, cols := x.Dims()
	if cols != len(m.state.Weights) {
		return nil, fmt.Errorf("logreg: %d feature columns, model has %d", cols, len(m.state.Weights))
	}

	out := make([]float64, rows)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, x)
		out[i] = floats.Dot(m.state.Weights, row) + m.state.Bias
	}
	return out, nil
}

// PredictOnBatch returns one value per row of x: the predicted class (0/1)
// for classification, the raw response for regression.
func (m *Model) PredictOnBatch(ctx context.Context, x mat.Matrix) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	scores, err := m.score(x)
	if err != nil {
		return nil, err
	}
	if m.state.Kind == model.Classification {
		for i, z := range scores {
			if sigmoid(z) >= 0.5 {
				scores[i] = 1
			} else {
				scores[i] = 0
			}
		}
	}
	return scores, nil
}

// Predict returns one value per dataset row, in canonical order.
func (m *Model) Predict(ctx context.Context, ds *chemgo.Dataset) ([]float64, error) {
	a, err := ds.ToArrays()
	if err != nil {
		return nil, err
	}
	if a.Rows() == 0 {
		return nil, nil
	}
	return m.PredictOnBatch(ctx, a.X)
}

// PredictProbaOnBatch returns per-row class probabilities. Only binary
// classification is supported.
func (m *Model) PredictProbaOnBatch(ctx context.Context, x mat.Matrix, nClasses int) (*mat.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.state != nil && m.state.Kind != model.Classification {
		return nil, fmt.Errorf("logreg: probabilities undefined for %s task", m.state.Kind)
	}
	if nClasses != 2 {
		return nil, fmt.Errorf("logreg: binary model cannot produce %d classes", nClasses)
	}
	scores, err := m.score(x)
	if err != nil {
		return nil, err
	}

	probs := mat.NewDense(len(scores), 2, nil)
	for i, z := range scores {
		p := sigmoid(z)
		probs.Set(i, 0, 1-p)
		probs.Set(i, 1, p)
	}
	return probs, nil
}

// PredictProba returns class probabilities for every dataset row.
func (m *Model) PredictProba(ctx context.Context, ds *chemgo.Dataset, nClasses int) (*mat.Dense, error) {
	a, err := ds.ToArrays()
	if err != nil {
		return nil, err
	}
	if a.Rows() == 0 {
		return nil, nil
	}
	return m.PredictProbaOnBatch(ctx, a.X, nClasses)
}
