package chemgo

import (
	"context"
	"fmt"
	"iter"

	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/chemgo/internal/shard"
)

// Dataset is a logical view over a sharded dataset directory.
//
// All row-exporting operations use the canonical order: shard order, then
// row order within each shard. A Dataset assumes one writer or reader per
// directory at a time.
type Dataset struct {
	store  *shard.Store
	logger *Logger
}

// FromArrays constructs a dataset by writing the arrays into dir.
//
// tasks names the columns of y and w; if nil, names task0..taskN-1 are
// inferred. By default all rows land in a single shard; WithShardSize splits
// them. The constructor fails if dir cannot be created or the arrays
// disagree on shape.
func FromArrays(dir string, x, y, w *mat.Dense, ids []string, tasks []string, opts ...Option) (*Dataset, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}

	rows := len(ids)
	xr, xc := dims(x)
	yr, yc := dims(y)
	wr, wc := dims(w)

	if xr != rows {
		return nil, &ErrShapeMismatch{Array: "X", Expected: rows, Actual: xr}
	}
	if yr != rows {
		return nil, &ErrShapeMismatch{Array: "y", Expected: rows, Actual: yr}
	}
	if wr != rows {
		return nil, &ErrShapeMismatch{Array: "w", Expected: rows, Actual: wr}
	}
	if wc != yc {
		return nil, &ErrShapeMismatch{Array: "w", Expected: yc, Actual: wc}
	}

	if tasks == nil {
		tasks = make([]string, yc)
		for t := range tasks {
			tasks[t] = fmt.Sprintf("task%d", t)
		}
	}
	if len(tasks) != yc {
		return nil, &ErrShapeMismatch{Array: "tasks", Expected: yc, Actual: len(tasks)}
	}

	featureShape := o.featureShape
	if featureShape == nil {
		featureShape = []int{xc}
	}
	width := 1
	for _, d := range featureShape {
		width *= d
	}
	if width != xc {
		return nil, &ErrShapeMismatch{Array: "X", Expected: width, Actual: xc}
	}

	ds, err := writeDataset(dir, &Arrays{X: x, Y: y, W: w, IDs: ids}, tasks, featureShape, o)
	o.logger.LogIngest(context.Background(), dir, rows, len(tasks), err)
	return ds, err
}

// Open loads an existing dataset directory.
func Open(dir string, opts ...Option) (*Dataset, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	st, err := shard.Open(dir)
	if err != nil {
		return nil, err
	}
	return &Dataset{store: st, logger: o.logger}, nil
}

// writeDataset creates a dataset directory and writes the arrays into it,
// split into shards of o.shardSize rows (one shard when o.shardSize <= 0).
func writeDataset(dir string, a *Arrays, tasks []string, featureShape []int, o options) (*Dataset, error) {
	st, err := shard.Create(dir, shard.Config{
		Tasks:        tasks,
		FeatureShape: featureShape,
		ShardSize:    o.shardSize,
		Compression:  o.compression,
		Codec:        o.codec,
	})
	if err != nil {
		return nil, err
	}
	d := &Dataset{store: st, logger: o.logger}

	rows := a.Rows()
	shardSize := o.shardSize
	if shardSize <= 0 {
		shardSize = rows
	}

	x := flatten(a.X)
	y := flatten(a.Y)
	w := flatten(a.W)
	width := st.FeatureWidth()
	nTasks := len(tasks)

	for start := 0; start < rows; start += shardSize {
		end := min(start+shardSize, rows)
		block := &shard.Block{
			X:    x[start*width : end*width],
			Y:    y[start*nTasks : end*nTasks],
			W:    w[start*nTasks : end*nTasks],
			IDs:  a.IDs[start:end],
			Rows: end - start,
		}
		if err := st.Append(block); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func dims(m *mat.Dense) (r, c int) {
	if m == nil {
		return 0, 0
	}
	return m.Dims()
}

// Dir returns the dataset directory.
func (d *Dataset) Dir() string { return d.store.Dir() }

// ID returns the dataset UUID from the manifest.
func (d *Dataset) ID() string { return d.store.ID() }

// TaskNames returns the task names in y/w column order.
func (d *Dataset) TaskNames() []string { return d.store.Tasks() }

// DataShape returns the per-row feature shape.
func (d *Dataset) DataShape() []int { return d.store.FeatureShape() }

// Len returns the total number of rows.
func (d *Dataset) Len() int { return d.store.Rows() }

// NumShards returns the number of shards on disk.
func (d *Dataset) NumShards() int { return d.store.NumShards() }

// ShardSize returns the shard size recorded in the manifest.
func (d *Dataset) ShardSize() int { return d.store.ShardSize() }

// Files returns the names of the files making up the dataset, relative to
// its directory, the manifest first.
func (d *Dataset) Files() []string { return d.store.Files() }

// Shape returns the per-array shapes matching what ToArrays produces.
func (d *Dataset) Shape() Shape {
	n := d.Len()
	tasks := len(d.TaskNames())
	return Shape{
		X:   append([]int{n}, d.DataShape()...),
		Y:   []int{n, tasks},
		W:   []int{n, tasks},
		IDs: []int{n},
	}
}

// ToArrays concatenates all shards in canonical order into a single Arrays
// value. Row order equals iteration order.
func (d *Dataset) ToArrays() (*Arrays, error) {
	rows := d.Len()
	width := d.store.FeatureWidth()
	tasks := len(d.TaskNames())

	x := make([]float64, 0, rows*width)
	y := make([]float64, 0, rows*tasks)
	w := make([]float64, 0, rows*tasks)
	ids := make([]string, 0, rows)

	for i := 0; i < d.NumShards(); i++ {
		block, err := d.store.Read(i)
		if err != nil {
			return nil, err
		}
		x = append(x, block.X...)
		y = append(y, block.Y...)
		w = append(w, block.W...)
		ids = append(ids, block.IDs...)
	}

	return &Arrays{
		X:   denseOrNil(rows, width, x),
		Y:   denseOrNil(rows, tasks, y),
		W:   denseOrNil(rows, tasks, w),
		IDs: ids,
	}, nil
}

// GetIDs returns the row ids in canonical order. Successive calls on an
// unmodified dataset return identical sequences.
func (d *Dataset) GetIDs() ([]string, error) {
	ids := make([]string, 0, d.Len())
	for i := 0; i < d.NumShards(); i++ {
		block, err := d.store.Read(i)
		if err != nil {
			return nil, err
		}
		ids = append(ids, block.IDs...)
	}
	return ids, nil
}

// Batches returns a lazy, restartable iterator over batches of batchSize
// rows in canonical order. The final batch may be smaller. Shards are read
// on demand, one at a time.
//
// A non-positive batch size yields a single error.
func (d *Dataset) Batches(batchSize int) iter.Seq2[*Batch, error] {
	return func(yield func(*Batch, error) bool) {
		if batchSize <= 0 {
			yield(nil, fmt.Errorf("%w: %d", ErrInvalidBatchSize, batchSize))
			return
		}

		width := d.store.FeatureWidth()
		nTasks := len(d.TaskNames())

		var (
			x   []float64
			y   []float64
			w   []float64
			ids []string
		)

		emit := func(n int) bool {
			batch := &Batch{
				X:   denseOrNil(n, width, append([]float64(nil), x[:n*width]...)),
				Y:   denseOrNil(n, nTasks, append([]float64(nil), y[:n*nTasks]...)),
				W:   denseOrNil(n, nTasks, append([]float64(nil), w[:n*nTasks]...)),
				IDs: append([]string(nil), ids[:n]...),
			}
			x = x[n*width:]
			y = y[n*nTasks:]
			w = w[n*nTasks:]
			ids = ids[n:]
			return yield(batch, nil)
		}

		for i := 0; i < d.NumShards(); i++ {
			block, err := d.store.Read(i)
			if err != nil {
				yield(nil, err)
				return
			}
			x = append(x, block.X...)
			y = append(y, block.Y...)
			w = append(w, block.W...)
			ids = append(ids, block.IDs...)

			for len(ids) >= batchSize {
				if !emit(batchSize) {
					return
				}
			}
		}
		if len(ids) > 0 {
			emit(len(ids))
		}
	}
}

// Reshard rewrites the on-disk partitioning into shards of shardSize rows,
// preserving total row content and order. Resharding round-trips: resharding
// to size A, then B, then A again reproduces identical arrays.
func (d *Dataset) Reshard(shardSize int) error {
	if shardSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidShardSize, shardSize)
	}

	a, err := d.ToArrays()
	if err != nil {
		return err
	}

	rows := a.Rows()
	width := d.store.FeatureWidth()
	nTasks := len(d.TaskNames())
	x := flatten(a.X)
	y := flatten(a.Y)
	w := flatten(a.W)

	var blocks []*shard.Block
	for start := 0; start < rows; start += shardSize {
		end := min(start+shardSize, rows)
		blocks = append(blocks, &shard.Block{
			X:    x[start*width : end*width],
			Y:    y[start*nTasks : end*nTasks],
			W:    w[start*nTasks : end*nTasks],
			IDs:  a.IDs[start:end],
			Rows: end - start,
		})
	}

	err = d.store.Replace(blocks, shardSize)
	d.logger.LogReshard(context.Background(), d.Dir(), shardSize, len(blocks), err)
	return err
}
