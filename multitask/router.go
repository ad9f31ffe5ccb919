// Package multitask lets single-task models be fit on multitask data.
//
// A Router fans a multitask dataset out into one single-task dataset per
// task, drives an independent model per task through fit and predict, and
// recomposes the per-task outputs into multitask prediction matrices.
package multitask

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/chemgo"
	"github.com/hupe1980/chemgo/model"
	"github.com/hupe1980/chemgo/resource"
	"github.com/hupe1980/chemgo/transform"
)

var (
	// ErrNoTasks is returned when a router is configured without tasks.
	ErrNoTasks = errors.New("multitask: no tasks configured")

	// ErrNilBuilder is returned when a router is configured without a
	// model builder.
	ErrNilBuilder = errors.New("multitask: model builder required")

	// ErrMissingKind is returned when a task has no configured kind.
	ErrMissingKind = errors.New("multitask: task kind missing")
)

// Config configures a Router.
type Config struct {
	// Tasks are the task names, in y/w column order of the datasets the
	// router will see.
	Tasks []string

	// Kinds maps every task to its kind.
	Kinds map[string]model.TaskKind

	// Params are passed through to every model built.
	Params model.Params

	// Dir is the base directory; per-task model and data directories are
	// created beneath it.
	Dir string

	// Builder produces the per-task models.
	Builder model.Builder

	// Cache is the model retention policy. Nil means NoCache: models are
	// rebuilt and reloaded from disk on every use.
	Cache ModelCache

	// Workers bounds how many task fits run concurrently. Values <= 1 fit
	// sequentially. Per-task models share no mutable state, so parallel
	// fitting is safe.
	Workers int

	// Controller optionally bounds background work across routers.
	Controller *resource.Controller

	// Logger for structured fit/predict logging. Nil disables logging.
	Logger *chemgo.Logger
}

// Router trains and queries one single-task model per task behind a
// multitask interface.
type Router struct {
	tasks   []string
	kinds   map[string]model.TaskKind
	params  model.Params
	dir     string
	builder model.Builder
	cache   ModelCache
	workers int
	ctrl    *resource.Controller
	logger  *chemgo.Logger
}

// New creates a Router and its per-task model directories. It fails if the
// base directory cannot be created.
func New(cfg Config) (*Router, error) {
	if len(cfg.Tasks) == 0 {
		return nil, ErrNoTasks
	}
	if cfg.Builder == nil {
		return nil, ErrNilBuilder
	}
	for _, task := range cfg.Tasks {
		if _, ok := cfg.Kinds[task]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingKind, task)
		}
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("multitask: create base dir: %w", err)
	}
	for _, task := range cfg.Tasks {
		if err := os.MkdirAll(filepath.Join(cfg.Dir, task), 0o755); err != nil {
			return nil, fmt.Errorf("multitask: create dir for task %s: %w", task, err)
		}
	}

	cache := cfg.Cache
	if cache == nil {
		cache = NoCache{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = chemgo.NoopLogger()
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	return &Router{
		tasks:   cfg.Tasks,
		kinds:   cfg.Kinds,
		params:  cfg.Params,
		dir:     cfg.Dir,
		builder: cfg.Builder,
		cache:   cache,
		workers: workers,
		ctrl:    cfg.Controller,
		logger:  logger,
	}, nil
}

// Tasks returns the task names in column order.
func (r *Router) Tasks() []string { return r.tasks }

// modelDir is the persisted-model directory for a task.
func (r *Router) modelDir(task string) string {
	return filepath.Join(r.dir, task)
}

// dataDir is the singletask-data directory for a task.
func (r *Router) dataDir(task string) string {
	return filepath.Join(r.dir, task+"_data")
}

// build constructs a model instance for one task.
func (r *Router) build(task string) (model.Model, error) {
	m, err := r.builder([]string{task}, map[string]model.TaskKind{task: r.kinds[task]}, r.params, r.modelDir(task))
	if err != nil {
		return nil, fmt.Errorf("multitask: build model for task %s: %w", task, err)
	}
	return m, nil
}

// taskModel returns the model for a task, from the cache when present,
// otherwise rebuilt and reloaded from its directory. A missing persisted
// model fails the call; there is no fallback prediction.
func (r *Router) taskModel(task string) (model.Model, error) {
	if m, ok := r.cache.Get(task); ok {
		return m, nil
	}
	m, err := r.build(task)
	if err != nil {
		return nil, err
	}
	if err := m.Reload(); err != nil {
		return nil, fmt.Errorf("multitask: reload model for task %s: %w", task, err)
	}
	return m, nil
}

// createTaskDatasets splits the dataset into per-task singletask datasets
// under the router directory. Existing task data is replaced.
func (r *Router) createTaskDatasets(ds *chemgo.Dataset) ([]*chemgo.Dataset, error) {
	dirs := make([]string, len(r.tasks))
	for i, task := range r.tasks {
		dir := r.dataDir(task)
		if err := os.RemoveAll(dir); err != nil {
			return nil, fmt.Errorf("multitask: reset data dir for task %s: %w", task, err)
		}
		dirs[i] = dir
	}
	return ds.ToSingletask(dirs)
}

// datasetBytes estimates the in-memory footprint of materializing a dataset:
// float64 X, y and w arrays, id overhead excluded.
func datasetBytes(ds *chemgo.Dataset) int64 {
	width := 1
	for _, d := range ds.DataShape() {
		width *= d
	}
	return int64(ds.Len()) * int64(width+2*len(ds.TaskNames())) * 8
}

// Fit splits the dataset per task and fits, saves and optionally caches an
// independent model per task. With Workers > 1 task fits run concurrently.
//
// Splitting materializes the dataset; when a Controller with a memory limit
// is configured, Fit reserves the estimated footprint first.
func (r *Router) Fit(ctx context.Context, ds *chemgo.Dataset) error {
	if r.ctrl != nil {
		need := datasetBytes(ds)
		if err := r.ctrl.AcquireMemory(ctx, need); err != nil {
			return err
		}
		defer r.ctrl.ReleaseMemory(need)
	}

	taskData, err := r.createTaskDatasets(ds)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, task := range r.tasks {
		g.Go(func() error {
			if r.ctrl != nil {
				if err := r.ctrl.AcquireWorker(ctx); err != nil {
					return err
				}
				defer r.ctrl.ReleaseWorker()
			}

			m, err := r.build(task)
			if err != nil {
				return err
			}
			fitErr := m.Fit(ctx, taskData[i])
			r.logger.LogFit(ctx, task, taskData[i].Len(), fitErr)
			if fitErr != nil {
				return fmt.Errorf("multitask: fit task %s: %w", task, fitErr)
			}
			if err := m.Save(); err != nil {
				return fmt.Errorf("multitask: save task %s: %w", task, err)
			}
			r.cache.Put(task, m)
			return nil
		})
	}
	return g.Wait()
}

// PredictOnBatch concatenates per-task predictions for the rows of x into a
// (rows × tasks) matrix.
func (r *Router) PredictOnBatch(ctx context.Context, x mat.Matrix) (*mat.Dense, error) {
	rows, _ := x.Dims()
	if rows == 0 {
		return nil, nil
	}
	out := mat.NewDense(rows, len(r.tasks), nil)

	for t, task := range r.tasks {
		m, err := r.taskModel(task)
		if err != nil {
			return nil, err
		}
		pred, err := m.PredictOnBatch(ctx, x)
		if err != nil {
			return nil, fmt.Errorf("multitask: predict task %s: %w", task, err)
		}
		out.SetCol(t, pred)
	}
	return out, nil
}

// Predict returns a (samples × tasks) prediction matrix over the dataset,
// applying transformer inverses in reverse order when supplied. The matrix
// is nil when the dataset has no rows.
func (r *Router) Predict(ctx context.Context, ds *chemgo.Dataset, transformers []transform.Transformer) (*mat.Dense, error) {
	if ds.Len() == 0 {
		r.logger.LogPredict(ctx, len(r.tasks), 0, nil)
		return nil, nil
	}
	out := mat.NewDense(ds.Len(), len(r.tasks), nil)

	for t, task := range r.tasks {
		m, err := r.taskModel(task)
		if err != nil {
			r.logger.LogPredict(ctx, len(r.tasks), ds.Len(), err)
			return nil, err
		}
		pred, err := m.Predict(ctx, ds)
		if err != nil {
			err = fmt.Errorf("multitask: predict task %s: %w", task, err)
			r.logger.LogPredict(ctx, len(r.tasks), ds.Len(), err)
			return nil, err
		}
		out.SetCol(t, pred)
	}

	transform.UndoAll(out, transformers)
	r.logger.LogPredict(ctx, len(r.tasks), ds.Len(), nil)
	return out, nil
}

// PredictProbaOnBatch concatenates per-task class probabilities for the rows
// of x into a (rows, tasks, nClasses) tensor.
func (r *Router) PredictProbaOnBatch(ctx context.Context, x mat.Matrix, nClasses int) (*model.Tensor3, error) {
	rows, _ := x.Dims()
	if rows == 0 {
		return model.NewTensor3(0, len(r.tasks), nClasses), nil
	}
	out := model.NewTensor3(rows, len(r.tasks), nClasses)

	for t, task := range r.tasks {
		m, err := r.taskModel(task)
		if err != nil {
			return nil, err
		}
		probs, err := m.PredictProbaOnBatch(ctx, x, nClasses)
		if err != nil {
			return nil, fmt.Errorf("multitask: predict_proba task %s: %w", task, err)
		}
		out.SetTask(t, probs.RawMatrix().Data)
	}
	return out, nil
}

// PredictProba returns a (samples, tasks, nClasses) probability tensor over
// the dataset.
func (r *Router) PredictProba(ctx context.Context, ds *chemgo.Dataset, nClasses int) (*model.Tensor3, error) {
	if ds.Len() == 0 {
		return model.NewTensor3(0, len(r.tasks), nClasses), nil
	}
	out := model.NewTensor3(ds.Len(), len(r.tasks), nClasses)

	for t, task := range r.tasks {
		m, err := r.taskModel(task)
		if err != nil {
			return nil, err
		}
		probs, err := m.PredictProba(ctx, ds, nClasses)
		if err != nil {
			return nil, fmt.Errorf("multitask: predict_proba task %s: %w", task, err)
		}
		out.SetTask(t, probs.RawMatrix().Data)
	}
	return out, nil
}

// Save is a no-op: per-task models are persisted when they are fit.
func (r *Router) Save() error { return nil }

// Reload is a no-op: per-task models are reloaded lazily at prediction time.
func (r *Router) Reload() error { return nil }
