package shard

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hupe1980/chemgo/codec"
	"github.com/hupe1980/chemgo/internal/mmap"
)

// Config describes a new dataset directory.
type Config struct {
	Tasks        []string
	FeatureShape []int
	ShardSize    int // advisory; recorded in the manifest
	Compression  Compression
	Codec        codec.Codec
}

// Store manages the shard files and manifest of one dataset directory.
//
// A Store assumes single-writer, single-reader access to its directory;
// concurrent mutation is not coordinated.
type Store struct {
	dir      string
	codec    codec.Codec
	manifest *Manifest
}

// Create initializes a new dataset directory. It fails if the directory
// cannot be created.
func Create(dir string, cfg Config) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("shard: create dataset dir: %w", err)
	}
	c := cfg.Codec
	if c == nil {
		c = codec.Default
	}

	m := newManifest(cfg.Tasks, cfg.FeatureShape, cfg.Compression, c)
	m.ShardSize = cfg.ShardSize
	if err := saveManifest(dir, m, c); err != nil {
		return nil, err
	}
	return &Store{dir: dir, codec: c, manifest: m}, nil
}

// Open loads an existing dataset directory.
func Open(dir string) (*Store, error) {
	m, c, err := loadManifest(dir)
	if err != nil {
		return nil, err
	}
	return &Store{dir: dir, codec: c, manifest: m}, nil
}

// Dir returns the dataset directory.
func (s *Store) Dir() string { return s.dir }

// ID returns the dataset UUID.
func (s *Store) ID() string { return s.manifest.ID }

// Tasks returns the task names in column order.
func (s *Store) Tasks() []string { return s.manifest.Tasks }

// FeatureShape returns the per-row feature shape.
func (s *Store) FeatureShape() []int { return s.manifest.FeatureShape }

// FeatureWidth returns the flattened per-row feature width.
func (s *Store) FeatureWidth() int { return s.manifest.FeatureWidth() }

// NumShards returns the number of shards.
func (s *Store) NumShards() int { return len(s.manifest.Shards) }

// ShardRows returns the row count of shard i.
func (s *Store) ShardRows(i int) int { return s.manifest.Shards[i].Rows }

// ShardSize returns the advisory shard size recorded in the manifest.
func (s *Store) ShardSize() int { return s.manifest.ShardSize }

// Rows returns the total row count across all shards.
func (s *Store) Rows() int { return s.manifest.Rows() }

// Compression returns the compression applied to shard sections.
func (s *Store) Compression() Compression {
	c, err := ParseCompression(s.manifest.Compression)
	if err != nil {
		return CompressionNone
	}
	return c
}

// Files returns the names (relative to the directory) of all files that make
// up the dataset, the manifest first.
func (s *Store) Files() []string {
	files := make([]string, 0, len(s.manifest.Shards)+1)
	files = append(files, ManifestFileName)
	for _, si := range s.manifest.Shards {
		files = append(files, si.Name)
	}
	return files
}

func shardName(i int) string {
	return fmt.Sprintf("shard-%05d.chd", i)
}

// writeShardFile encodes the block and writes it atomically under name.
func (s *Store) writeShardFile(name string, b *Block) (ShardInfo, error) {
	data, header, err := encodeShard(b, s.FeatureWidth(), len(s.manifest.Tasks), s.Compression())
	if err != nil {
		return ShardInfo{}, err
	}

	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return ShardInfo{}, err
	}
	if err := os.Rename(tmp, path); err != nil {
		return ShardInfo{}, err
	}
	return ShardInfo{
		Name:     name,
		Rows:     b.Rows,
		Size:     int64(len(data)),
		Checksum: header.Checksum,
	}, nil
}

// Append writes a new shard holding the block's rows and commits it to the
// manifest. Shard order is append order.
func (s *Store) Append(b *Block) error {
	info, err := s.writeShardFile(shardName(len(s.manifest.Shards)), b)
	if err != nil {
		return err
	}
	s.manifest.Shards = append(s.manifest.Shards, info)
	return saveManifest(s.dir, s.manifest, s.codec)
}

// Read loads shard i. Shard files are mmap'd for the read; float sections are
// copied out so the mapping can be released before returning.
func (s *Store) Read(i int) (*Block, error) {
	if i < 0 || i >= len(s.manifest.Shards) {
		return nil, fmt.Errorf("%w: shard %d of %d", ErrOutOfBounds, i, len(s.manifest.Shards))
	}

	m, err := mmap.Open(filepath.Join(s.dir, s.manifest.Shards[i].Name))
	if err != nil {
		return nil, err
	}
	defer m.Close()

	block, header, err := decodeShard(m.Bytes())
	if err != nil {
		return nil, fmt.Errorf("shard %s: %w", s.manifest.Shards[i].Name, err)
	}
	if header.Checksum != s.manifest.Shards[i].Checksum {
		return nil, fmt.Errorf("%w: shard %s does not match manifest", ErrCorrupted, s.manifest.Shards[i].Name)
	}
	return block, nil
}

// Replace rewrites the store's contents with the given blocks, in order,
// updating the advisory shard size. Each shard file and the manifest are
// swapped atomically; per-shard checksums in the manifest detect a rewrite
// torn by a crash between renames.
func (s *Store) Replace(blocks []*Block, shardSize int) error {
	old := s.manifest.Shards

	shards := make([]ShardInfo, 0, len(blocks))
	for i, b := range blocks {
		info, err := s.writeShardFile(shardName(i), b)
		if err != nil {
			return err
		}
		shards = append(shards, info)
	}

	s.manifest.Shards = shards
	s.manifest.ShardSize = shardSize
	if err := saveManifest(s.dir, s.manifest, s.codec); err != nil {
		return err
	}

	for i := len(shards); i < len(old); i++ {
		// Best effort: stale shards beyond the new count are unreferenced.
		_ = os.Remove(filepath.Join(s.dir, old[i].Name))
	}
	return nil
}
