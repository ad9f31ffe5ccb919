// Package evaluate scores model predictions against dataset labels, per
// task and averaged over tasks. Rows whose weight for a task is zero are
// excluded from that task's score.
package evaluate

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/hupe1980/chemgo/model"
)

var (
	// ErrNoLabeledRows is returned when every row of a task is masked out.
	ErrNoLabeledRows = errors.New("evaluate: no labeled rows for task")

	// ErrSingleClass is returned when ROC-AUC is requested for a task whose
	// labeled rows all share one class.
	ErrSingleClass = errors.New("evaluate: roc-auc requires both classes")
)

// ScoreFunc scores one task given equal-length true labels and predictions
// for the rows that carry nonzero weight.
type ScoreFunc func(yTrue, yPred []float64) (float64, error)

// Metric names a scoring function and the task kind it applies to.
type Metric struct {
	Name  string
	Kind  model.TaskKind
	Score ScoreFunc
}

// ROCAUC is the rank-based area under the ROC curve for binary labels,
// with average ranks for tied scores.
func ROCAUC() Metric {
	return Metric{Name: "roc_auc_score", Kind: model.Classification, Score: rocAUC}
}

// Accuracy is the fraction of predictions matching the binary label after
// thresholding at 0.5.
func Accuracy() Metric {
	return Metric{Name: "accuracy_score", Kind: model.Classification, Score: accuracy}
}

// RMSE is the root mean squared error.
func RMSE() Metric {
	return Metric{Name: "rms_error", Kind: model.Regression, Score: rmse}
}

// RSquared is the coefficient of determination.
func RSquared() Metric {
	return Metric{Name: "r2_score", Kind: model.Regression, Score: rSquared}
}

func rocAUC(yTrue, yPred []float64) (float64, error) {
	n := len(yTrue)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return yPred[idx[a]] < yPred[idx[b]] })

	// Average ranks across tied prediction scores.
	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && yPred[idx[j]] == yPred[idx[i]] {
			j++
		}
		avg := float64(i+j+1) / 2 // 1-based
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		i = j
	}

	var pos, rankSum float64
	for i, y := range yTrue {
		if y > 0 {
			pos++
			rankSum += ranks[i]
		}
	}
	neg := float64(n) - pos
	if pos == 0 || neg == 0 {
		return 0, ErrSingleClass
	}

	return (rankSum - pos*(pos+1)/2) / (pos * neg), nil
}

func accuracy(yTrue, yPred []float64) (float64, error) {
	var correct float64
	for i, y := range yTrue {
		pred := 0.0
		if yPred[i] >= 0.5 {
			pred = 1.0
		}
		if pred == y {
			correct++
		}
	}
	return correct / float64(len(yTrue)), nil
}

func rmse(yTrue, yPred []float64) (float64, error) {
	var sum float64
	for i := range yTrue {
		d := yPred[i] - yTrue[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(yTrue))), nil
}

func rSquared(yTrue, yPred []float64) (float64, error) {
	// Constant labels make the total sum of squares zero; RSquaredFrom then
	// yields NaN or -Inf depending on the residuals.
	r2 := stat.RSquaredFrom(yPred, yTrue, nil)
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		return 0, fmt.Errorf("evaluate: r2 undefined for constant labels")
	}
	return r2, nil
}
