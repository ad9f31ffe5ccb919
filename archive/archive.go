// Package archive copies datasets between their local directory form and a
// blob store, so training data can be published to and restored from object
// storage.
//
// Layout under the archive prefix mirrors the dataset directory: the
// manifest, every shard file, and finally a commit marker. The marker is
// written last; a prefix without one is an incomplete upload and is refused
// by Restore.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/chemgo"
	"github.com/hupe1980/chemgo/blobstore"
	"github.com/hupe1980/chemgo/codec"
	"github.com/hupe1980/chemgo/resource"
)

// CommitMarkerName is the object written last to mark an archive complete.
const CommitMarkerName = "COMMIT"

var (
	// ErrNotCommitted is returned when the archive prefix lacks a commit
	// marker.
	ErrNotCommitted = errors.New("archive: not committed")

	// ErrFileMismatch is returned when the archived files do not match the
	// commit marker.
	ErrFileMismatch = errors.New("archive: file list mismatch")
)

// commitMarker records what a complete archive contains.
type commitMarker struct {
	DatasetID string    `json:"dataset_id"`
	CreatedAt time.Time `json:"created_at"`
	Files     []string  `json:"files"`
}

// Options tunes archive transfers.
type Options struct {
	// Workers bounds concurrent file transfers. Values <= 0 mean 4.
	Workers int

	// Controller optionally rate-limits transfer IO.
	Controller *resource.Controller
}

func (o Options) workers() int {
	if o.Workers <= 0 {
		return 4
	}
	return o.Workers
}

// Archive uploads the dataset's files to the store under prefix and writes
// the commit marker last. Shard files upload concurrently.
func Archive(ctx context.Context, ds *chemgo.Dataset, store blobstore.BlobStore, prefix string, opts Options) error {
	files := ds.Files()

	// The group context dies with g.Wait(); the marker write below must use
	// the caller's context.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())

	for _, name := range files {
		g.Go(func() error {
			if err := uploadFile(gctx, store, filepath.Join(ds.Dir(), name), path.Join(prefix, name), opts.Controller); err != nil {
				return fmt.Errorf("archive: upload %s: %w", name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	marker, err := codec.Default.Marshal(commitMarker{
		DatasetID: ds.ID(),
		CreatedAt: time.Now().UTC(),
		Files:     files,
	})
	if err != nil {
		return fmt.Errorf("archive: encode commit marker: %w", err)
	}

	if err := store.Put(ctx, path.Join(prefix, CommitMarkerName), marker); err != nil {
		return fmt.Errorf("archive: write commit marker: %w", err)
	}
	return nil
}

// Restore downloads a committed archive into dir and opens the dataset.
func Restore(ctx context.Context, store blobstore.BlobStore, prefix, dir string, opts Options) (*chemgo.Dataset, error) {
	data, err := blobstore.ReadAll(ctx, store, path.Join(prefix, CommitMarkerName))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotCommitted, prefix)
		}
		return nil, fmt.Errorf("archive: read commit marker: %w", err)
	}

	var marker commitMarker
	if err := codec.Default.Unmarshal(data, &marker); err != nil {
		return nil, fmt.Errorf("archive: decode commit marker: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("archive: create %s: %w", dir, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())

	for _, name := range marker.Files {
		g.Go(func() error {
			if err := downloadFile(gctx, store, path.Join(prefix, name), filepath.Join(dir, name), opts.Controller); err != nil {
				return fmt.Errorf("archive: download %s: %w", name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return chemgo.Open(dir)
}

// Verify checks that every file the commit marker names exists in the store.
func Verify(ctx context.Context, store blobstore.BlobStore, prefix string) error {
	data, err := blobstore.ReadAll(ctx, store, path.Join(prefix, CommitMarkerName))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotCommitted, prefix)
		}
		return err
	}

	var marker commitMarker
	if err := codec.Default.Unmarshal(data, &marker); err != nil {
		return err
	}

	present, err := store.List(ctx, prefix)
	if err != nil {
		return err
	}

	have := make(map[string]bool, len(present))
	for _, name := range present {
		have[name] = true
	}
	for _, name := range marker.Files {
		if !have[path.Join(prefix, name)] {
			return fmt.Errorf("%w: missing %s", ErrFileMismatch, name)
		}
	}
	return nil
}

func uploadFile(ctx context.Context, store blobstore.BlobStore, src, dst string, ctrl *resource.Controller) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := store.Create(ctx, dst)
	if err != nil {
		return err
	}

	var r io.Reader = f
	if ctrl != nil {
		r = resource.NewRateLimitedReader(ctx, f, ctrl)
	}

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func downloadFile(ctx context.Context, store blobstore.BlobStore, src, dst string, ctrl *resource.Controller) error {
	b, err := store.Open(ctx, src)
	if err != nil {
		return err
	}
	defer b.Close()

	f, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	var w io.Writer = f
	if ctrl != nil {
		w = resource.NewRateLimitedWriter(ctx, f, ctrl)
	}

	if _, err := io.Copy(w, io.NewSectionReader(b, 0, b.Size())); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}
