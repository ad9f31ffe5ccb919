// Package model defines the capability interface between chemgo and the
// single-task learners it drives.
//
// Chemgo does not implement training frameworks; anything that satisfies
// Model can be plugged into the multitask router via a Builder. The logreg
// subpackage ships a small reference implementation.
package model

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/chemgo"
)

// TaskKind is the closed set of supported prediction task kinds.
type TaskKind uint8

const (
	// Classification predicts one of a fixed set of classes.
	Classification TaskKind = iota + 1
	// Regression predicts a continuous value.
	Regression
)

// String returns the stable name of the task kind.
func (k TaskKind) String() string {
	switch k {
	case Classification:
		return "classification"
	case Regression:
		return "regression"
	default:
		return fmt.Sprintf("taskkind(%d)", uint8(k))
	}
}

// ParseTaskKind resolves a task kind by its stable name.
func ParseTaskKind(name string) (TaskKind, error) {
	switch name {
	case "classification":
		return Classification, nil
	case "regression":
		return Regression, nil
	default:
		return 0, fmt.Errorf("model: unknown task kind %q", name)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler so task kinds can be
// decoded straight from YAML/JSON configuration.
func (k *TaskKind) UnmarshalText(text []byte) error {
	kind, err := ParseTaskKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (k TaskKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Params is a set of hyper-parameters passed through to model builders.
type Params map[string]float64

// Get returns the value of the parameter by name if it exists and dflt
// otherwise.
func (p Params) Get(name string, dflt float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return dflt
}

// Model is a single-task learner bound to a model directory.
//
// Save persists the fitted state into the directory; Reload restores it.
// A Reload on a directory that holds no persisted model must fail.
type Model interface {
	Fit(ctx context.Context, ds *chemgo.Dataset) error
	Save() error
	Reload() error

	// Predict returns one value per dataset row.
	Predict(ctx context.Context, ds *chemgo.Dataset) ([]float64, error)
	// PredictOnBatch returns one value per row of x.
	PredictOnBatch(ctx context.Context, x mat.Matrix) ([]float64, error)
	// PredictProba returns per-row class probabilities (rows × nClasses).
	PredictProba(ctx context.Context, ds *chemgo.Dataset, nClasses int) (*mat.Dense, error)
	// PredictProbaOnBatch returns class probabilities for the rows of x.
	PredictProbaOnBatch(ctx context.Context, x mat.Matrix, nClasses int) (*mat.Dense, error)
}

// Builder produces a single-task model for the given task subset, rooted at
// dir. It is the capability the multitask router uses to create and reload
// per-task models.
type Builder func(tasks []string, kinds map[string]TaskKind, params Params, dir string) (Model, error)
