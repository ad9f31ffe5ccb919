package multitask

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/chemgo"
	"github.com/hupe1980/chemgo/model"
	"github.com/hupe1980/chemgo/resource"
)

// stubModel predicts a constant per task and persists it as a marker file,
// so cache misses exercise the rebuild-and-reload path.
type stubModel struct {
	task    string
	dir     string
	value   float64
	fitRows int
	fitted  bool
}

func (m *stubModel) Fit(_ context.Context, ds *chemgo.Dataset) error {
	m.fitRows = ds.Len()
	m.fitted = true
	return nil
}

func (m *stubModel) Save() error {
	if !m.fitted {
		return fmt.Errorf("stub: save before fit")
	}
	return os.WriteFile(filepath.Join(m.dir, "stub.txt"), []byte(strconv.FormatFloat(m.value, 'g', -1, 64)), 0o600)
}

func (m *stubModel) Reload() error {
	data, err := os.ReadFile(filepath.Join(m.dir, "stub.txt"))
	if err != nil {
		return err
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	m.value = v
	m.fitted = true
	return nil
}

func (m *stubModel) Predict(_ context.Context, ds *chemgo.Dataset) ([]float64, error) {
	return m.constant(ds.Len()), nil
}

func (m *stubModel) PredictOnBatch(_ context.Context, x mat.Matrix) ([]float64, error) {
	rows, _ := x.Dims()
	return m.constant(rows), nil
}

func (m *stubModel) PredictProba(_ context.Context, ds *chemgo.Dataset, nClasses int) (*mat.Dense, error) {
	return m.proba(ds.Len(), nClasses), nil
}

func (m *stubModel) PredictProbaOnBatch(_ context.Context, x mat.Matrix, nClasses int) (*mat.Dense, error) {
	rows, _ := x.Dims()
	return m.proba(rows, nClasses), nil
}

func (m *stubModel) constant(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = m.value
	}
	return out
}

func (m *stubModel) proba(n, nClasses int) *mat.Dense {
	out := mat.NewDense(n, nClasses, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, 1-m.value)
		out.Set(i, 1, m.value)
	}
	return out
}

func stubBuilder(values map[string]float64, builds *atomic.Int64) model.Builder {
	return func(tasks []string, _ map[string]model.TaskKind, _ model.Params, dir string) (model.Model, error) {
		if builds != nil {
			builds.Add(1)
		}
		return &stubModel{task: tasks[0], dir: dir, value: values[tasks[0]]}, nil
	}
}

func newTestDataset(t *testing.T) *chemgo.Dataset {
	t.Helper()

	x := mat.NewDense(4, 3, []float64{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
		10, 11, 12,
	})
	y := mat.NewDense(4, 2, []float64{
		0, 1,
		1, 0,
		1, 1,
		0, 0,
	})
	w := mat.NewDense(4, 2, []float64{
		1, 1,
		1, 0,
		1, 1,
		0, 1,
	})
	ids := []string{"m0", "m1", "m2", "m3"}

	ds, err := chemgo.FromArrays(t.TempDir(), x, y, w, ids, []string{"a", "b"})
	require.NoError(t, err)

	return ds
}

func testKinds() map[string]model.TaskKind {
	return map[string]model.TaskKind{
		"a": model.Classification,
		"b": model.Classification,
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Builder: stubBuilder(nil, nil), Dir: t.TempDir()})
	assert.ErrorIs(t, err, ErrNoTasks)

	_, err = New(Config{Tasks: []string{"a"}, Dir: t.TempDir()})
	assert.ErrorIs(t, err, ErrNilBuilder)

	_, err = New(Config{
		Tasks:   []string{"a"},
		Kinds:   map[string]model.TaskKind{},
		Builder: stubBuilder(nil, nil),
		Dir:     t.TempDir(),
	})
	assert.ErrorIs(t, err, ErrMissingKind)
}

func TestRouter_FitAndPredict(t *testing.T) {
	ds := newTestDataset(t)
	dir := t.TempDir()

	var builds atomic.Int64
	r, err := New(Config{
		Tasks:   []string{"a", "b"},
		Kinds:   testKinds(),
		Dir:     dir,
		Builder: stubBuilder(map[string]float64{"a": 0.25, "b": 0.75}, &builds),
		Cache:   NewMemoryCache(),
	})
	require.NoError(t, err)

	require.NoError(t, r.Fit(context.Background(), ds))

	// One singletask dataset and one persisted model per task.
	for _, task := range []string{"a", "b"} {
		assert.DirExists(t, filepath.Join(dir, task+"_data"))
		assert.FileExists(t, filepath.Join(dir, task, "stub.txt"))
	}
	assert.Equal(t, int64(2), builds.Load())

	pred, err := r.Predict(context.Background(), ds, nil)
	require.NoError(t, err)

	rows, cols := pred.Dims()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 2, cols)
	assert.InDelta(t, 0.25, pred.At(0, 0), 1e-12)
	assert.InDelta(t, 0.75, pred.At(3, 1), 1e-12)

	// Cached models are reused, not rebuilt.
	assert.Equal(t, int64(2), builds.Load())
}

func TestRouter_NoCacheReloadsFromDisk(t *testing.T) {
	ds := newTestDataset(t)
	dir := t.TempDir()

	var builds atomic.Int64
	r, err := New(Config{
		Tasks:   []string{"a", "b"},
		Kinds:   testKinds(),
		Dir:     dir,
		Builder: stubBuilder(map[string]float64{"a": 0.25, "b": 0.75}, &builds),
	})
	require.NoError(t, err)

	require.NoError(t, r.Fit(context.Background(), ds))
	fitBuilds := builds.Load()

	pred, err := r.Predict(context.Background(), ds, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, pred.At(0, 0), 1e-12)
	assert.InDelta(t, 0.75, pred.At(0, 1), 1e-12)

	// Every prediction rebuilds each task model from disk.
	assert.Equal(t, fitBuilds+2, builds.Load())
}

func TestRouter_PredictWithoutFitFails(t *testing.T) {
	ds := newTestDataset(t)

	r, err := New(Config{
		Tasks:   []string{"a", "b"},
		Kinds:   testKinds(),
		Dir:     t.TempDir(),
		Builder: stubBuilder(nil, nil),
	})
	require.NoError(t, err)

	_, err = r.Predict(context.Background(), ds, nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRouter_PredictOnBatch(t *testing.T) {
	ds := newTestDataset(t)
	r, err := New(Config{
		Tasks:   []string{"a", "b"},
		Kinds:   testKinds(),
		Dir:     t.TempDir(),
		Builder: stubBuilder(map[string]float64{"a": 0.1, "b": 0.9}, nil),
		Cache:   NewMemoryCache(),
	})
	require.NoError(t, err)
	require.NoError(t, r.Fit(context.Background(), ds))

	x := mat.NewDense(3, 3, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9})
	pred, err := r.PredictOnBatch(context.Background(), x)
	require.NoError(t, err)

	rows, cols := pred.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 2, cols)
	assert.InDelta(t, 0.1, pred.At(2, 0), 1e-12)
	assert.InDelta(t, 0.9, pred.At(2, 1), 1e-12)
}

func TestRouter_PredictProba(t *testing.T) {
	ds := newTestDataset(t)
	r, err := New(Config{
		Tasks:   []string{"a", "b"},
		Kinds:   testKinds(),
		Dir:     t.TempDir(),
		Builder: stubBuilder(map[string]float64{"a": 0.2, "b": 0.6}, nil),
		Cache:   NewMemoryCache(),
	})
	require.NoError(t, err)
	require.NoError(t, r.Fit(context.Background(), ds))

	probs, err := r.PredictProba(context.Background(), ds, 2)
	require.NoError(t, err)

	n, tasks, classes := probs.Dims()
	assert.Equal(t, 4, n)
	assert.Equal(t, 2, tasks)
	assert.Equal(t, 2, classes)
	assert.InDelta(t, 0.8, probs.At(0, 0, 0), 1e-12)
	assert.InDelta(t, 0.2, probs.At(0, 0, 1), 1e-12)
	assert.InDelta(t, 0.6, probs.At(3, 1, 1), 1e-12)
}

func TestRouter_ConcurrentFit(t *testing.T) {
	defer goleak.VerifyNone(t)

	ds := newTestDataset(t)
	r, err := New(Config{
		Tasks:   []string{"a", "b"},
		Kinds:   testKinds(),
		Dir:     t.TempDir(),
		Builder: stubBuilder(map[string]float64{"a": 0.25, "b": 0.75}, nil),
		Cache:   NewMemoryCache(),
		Workers: 2,
	})
	require.NoError(t, err)

	require.NoError(t, r.Fit(context.Background(), ds))

	pred, err := r.Predict(context.Background(), ds, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, pred.At(0, 0), 1e-12)
}

func TestRouter_EmptyDataset(t *testing.T) {
	ds := newTestDataset(t)
	r, err := New(Config{
		Tasks:   []string{"a", "b"},
		Kinds:   testKinds(),
		Dir:     t.TempDir(),
		Builder: stubBuilder(map[string]float64{"a": 0.25, "b": 0.75}, nil),
		Cache:   NewMemoryCache(),
	})
	require.NoError(t, err)
	require.NoError(t, r.Fit(context.Background(), ds))

	empty, err := ds.Select(t.TempDir(), nil)
	require.NoError(t, err)
	require.Equal(t, 0, empty.Len())

	pred, err := r.Predict(context.Background(), empty, nil)
	require.NoError(t, err)
	assert.Nil(t, pred)

	probs, err := r.PredictProba(context.Background(), empty, 2)
	require.NoError(t, err)
	n, tasks, classes := probs.Dims()
	assert.Equal(t, 0, n)
	assert.Equal(t, 2, tasks)
	assert.Equal(t, 2, classes)
}

func TestRouter_MemoryLimit(t *testing.T) {
	ds := newTestDataset(t)

	newRouter := func(ctrl *resource.Controller) *Router {
		r, err := New(Config{
			Tasks:      []string{"a", "b"},
			Kinds:      testKinds(),
			Dir:        t.TempDir(),
			Builder:    stubBuilder(map[string]float64{"a": 0.25, "b": 0.75}, nil),
			Controller: ctrl,
		})
		require.NoError(t, err)
		return r
	}

	t.Run("reservation released after fit", func(t *testing.T) {
		ctrl := resource.NewController(resource.Config{MemoryLimitBytes: 1 << 20})
		r := newRouter(ctrl)
		require.NoError(t, r.Fit(context.Background(), ds))
		assert.Equal(t, int64(0), ctrl.MemoryUsage())
	})

	t.Run("limit below dataset footprint blocks", func(t *testing.T) {
		ctrl := resource.NewController(resource.Config{MemoryLimitBytes: 64})
		r := newRouter(ctrl)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		require.ErrorIs(t, r.Fit(ctx, ds), context.DeadlineExceeded)
	})
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()

	_, ok := c.Get("a")
	assert.False(t, ok)

	m := &stubModel{task: "a"}
	c.Put("a", m)

	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Same(t, m, got)
}

func TestNoCache(t *testing.T) {
	c := NoCache{}
	c.Put("a", &stubModel{})

	_, ok := c.Get("a")
	assert.False(t, ok)
}
