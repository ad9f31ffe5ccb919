// Package chemgo provides a disk-backed dataset store for molecular
// machine-learning workloads.
//
// A Dataset holds feature (X), label (y), weight (w) and id arrays for a
// multitask problem, split into fixed-size contiguous shards inside a single
// directory. The concatenation of the shards, in shard order, is the
// dataset's canonical row order; every operation that exports rows preserves
// it.
//
// # Quick Start
//
//	x := mat.NewDense(100, 1024, features)
//	y := mat.NewDense(100, 12, labels)
//	w := mat.NewDense(100, 12, weights)
//
//	ds, err := chemgo.FromArrays("./train", x, y, w, ids, tasks)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Iterate in batches:
//
//	for batch, err := range ds.Batches(32) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    model.FitOnBatch(batch.X, batch.Y, batch.W)
//	}
//
// Rewrite the on-disk partitioning without changing content or order:
//
//	if err := ds.Reshard(512); err != nil { ... }
//
// Fan a multitask dataset out into independent per-task datasets:
//
//	parts, err := ds.ToSingletask(taskDirs)
//
// The multitask package builds on ToSingletask to train and query one
// single-task model per task behind a multitask interface. The loader
// package ingests CSV files, and the archive package copies dataset
// directories to and from remote blob storage.
//
// # On-Disk Layout
//
// A dataset directory contains a manifest.json plus one binary file per
// shard. Shard files carry a checksummed header and raw little-endian
// float64 sections, optionally LZ4- or ZSTD-compressed. The format is an
// implementation detail; only lossless recovery and reconstructible shard
// boundaries are contractual.
//
// # Concurrency
//
// A Dataset assumes one writer or reader per directory at a time. Methods
// do not coordinate concurrent mutation.
package chemgo
