package chemgo

import (
	"context"
	"fmt"

	"github.com/hupe1980/chemgo/internal/rowset"
)

// Select produces a new independent dataset at dir containing exactly the
// rows at indices, in the given order. The source dataset is not modified.
// Indices may repeat; out-of-range indices fail the whole operation.
//
// The new dataset inherits the source's shard size and compression unless
// options override them.
func (d *Dataset) Select(dir string, indices []int, opts ...Option) (*Dataset, error) {
	o := d.childOptions(opts)

	a, err := d.ToArrays()
	if err != nil {
		return nil, err
	}

	n := a.Rows()
	for _, idx := range indices {
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("%w: %d (dataset has %d rows)", ErrIndexOutOfRange, idx, n)
		}
	}

	width := d.store.FeatureWidth()
	nTasks := len(d.TaskNames())
	x := flatten(a.X)
	y := flatten(a.Y)
	w := flatten(a.W)

	sel := &Arrays{
		IDs: make([]string, 0, len(indices)),
	}
	sx := make([]float64, 0, len(indices)*width)
	sy := make([]float64, 0, len(indices)*nTasks)
	sw := make([]float64, 0, len(indices)*nTasks)
	for _, idx := range indices {
		sx = append(sx, x[idx*width:(idx+1)*width]...)
		sy = append(sy, y[idx*nTasks:(idx+1)*nTasks]...)
		sw = append(sw, w[idx*nTasks:(idx+1)*nTasks]...)
		sel.IDs = append(sel.IDs, a.IDs[idx])
	}
	sel.X = denseOrNil(len(indices), width, sx)
	sel.Y = denseOrNil(len(indices), nTasks, sy)
	sel.W = denseOrNil(len(indices), nTasks, sw)

	out, err := writeDataset(dir, sel, d.TaskNames(), d.DataShape(), o)
	d.logger.LogSelect(context.Background(), d.Dir(), dir, len(indices), err)
	return out, err
}

// Split writes the first n rows to dirA and the remaining rows to dirB,
// returning both datasets. It is the canonical train/validation split for
// pre-shuffled data.
func (d *Dataset) Split(dirA, dirB string, n int, opts ...Option) (*Dataset, *Dataset, error) {
	total := d.Len()
	if n < 0 || n > total {
		return nil, nil, fmt.Errorf("%w: split at %d (dataset has %d rows)", ErrIndexOutOfRange, n, total)
	}

	head := make([]int, n)
	for i := range head {
		head[i] = i
	}
	tail := make([]int, total-n)
	for i := range tail {
		tail[i] = n + i
	}

	a, err := d.Select(dirA, head, opts...)
	if err != nil {
		return nil, nil, err
	}
	b, err := d.Select(dirB, tail, opts...)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

// ToSingletask decomposes the dataset into one single-task dataset per task,
// written to the corresponding directory in dirs.
//
// For task t the result contains exactly the rows whose weight in column t
// is nonzero (negative weights included), in canonical order, with y and w
// narrowed to that single column.
func (d *Dataset) ToSingletask(dirs []string, opts ...Option) ([]*Dataset, error) {
	tasks := d.TaskNames()
	if len(dirs) != len(tasks) {
		return nil, fmt.Errorf("%w: %d directories for %d tasks", ErrTaskCountMismatch, len(dirs), len(tasks))
	}
	o := d.childOptions(opts)

	a, err := d.ToArrays()
	if err != nil {
		return nil, err
	}
	width := d.store.FeatureWidth()
	nTasks := len(tasks)
	x := flatten(a.X)
	y := flatten(a.Y)
	w := flatten(a.W)

	out := make([]*Dataset, len(tasks))
	for t, task := range tasks {
		keep := rowset.New()
		for i := 0; i < a.Rows(); i++ {
			if w[i*nTasks+t] != 0 {
				keep.Add(i)
			}
		}

		rows := keep.Len()
		tx := make([]float64, 0, rows*width)
		ty := make([]float64, 0, rows)
		tw := make([]float64, 0, rows)
		ids := make([]string, 0, rows)
		for i := range keep.Rows() {
			tx = append(tx, x[i*width:(i+1)*width]...)
			ty = append(ty, y[i*nTasks+t])
			tw = append(tw, w[i*nTasks+t])
			ids = append(ids, a.IDs[i])
		}

		ds, err := writeDataset(dirs[t], &Arrays{
			X:   denseOrNil(rows, width, tx),
			Y:   denseOrNil(rows, 1, ty),
			W:   denseOrNil(rows, 1, tw),
			IDs: ids,
		}, []string{task}, d.DataShape(), o)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", task, err)
		}
		out[t] = ds
	}
	return out, nil
}

// childOptions derives the options of a dataset produced from d, inheriting
// shard size, compression and logger unless overridden.
func (d *Dataset) childOptions(opts []Option) options {
	o := defaultOptions()
	o.shardSize = d.store.ShardSize()
	o.compression = d.store.Compression()
	o.logger = d.logger
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
