package shard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/chemgo/codec"
)

const (
	// ManifestFileName is the manifest file inside every dataset directory.
	ManifestFileName = "manifest.json"

	// ManifestVersion is the version of the manifest format.
	ManifestVersion = 1
)

// ErrManifestNotFound is returned when a directory holds no dataset manifest.
var ErrManifestNotFound = errors.New("shard: manifest not found")

// Manifest describes the state of a dataset directory at a point in time.
// The shard list is ordered; its order is the dataset's canonical row order.
type Manifest struct {
	Version      int         `json:"version"`
	ID           string      `json:"id"` // dataset UUID
	CreatedAt    time.Time   `json:"created_at"`
	Codec        string      `json:"codec"`
	Compression  string      `json:"compression"`
	Tasks        []string    `json:"tasks"`
	FeatureShape []int       `json:"feature_shape"`
	ShardSize    int         `json:"shard_size"`
	Shards       []ShardInfo `json:"shards"`
}

// ShardInfo describes a single shard file.
type ShardInfo struct {
	Name     string `json:"name"` // relative to the dataset directory
	Rows     int    `json:"rows"`
	Size     int64  `json:"size"` // size in bytes
	Checksum uint32 `json:"checksum"`
}

// newManifest creates an empty manifest for a fresh dataset directory.
func newManifest(tasks []string, featureShape []int, compression Compression, c codec.Codec) *Manifest {
	return &Manifest{
		Version:      ManifestVersion,
		ID:           uuid.NewString(),
		CreatedAt:    time.Now().UTC(),
		Codec:        c.Name(),
		Compression:  compression.String(),
		Tasks:        tasks,
		FeatureShape: featureShape,
	}
}

// Rows returns the total row count across all shards.
func (m *Manifest) Rows() int {
	total := 0
	for _, s := range m.Shards {
		total += s.Rows
	}
	return total
}

// FeatureWidth returns the flattened per-row feature width.
func (m *Manifest) FeatureWidth() int {
	width := 1
	for _, d := range m.FeatureShape {
		width *= d
	}
	if len(m.FeatureShape) == 0 {
		return 0
	}
	return width
}

// saveManifest writes the manifest atomically (tmp file + rename) so that a
// crash mid-update never leaves a half-written manifest behind.
func saveManifest(dir string, m *Manifest, c codec.Codec) error {
	data, err := c.Marshal(m)
	if err != nil {
		return fmt.Errorf("shard: encode manifest: %w", err)
	}

	path := filepath.Join(dir, ManifestFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// loadManifest reads and validates the manifest in dir.
func loadManifest(dir string) (*Manifest, codec.Codec, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrManifestNotFound, dir)
		}
		return nil, nil, err
	}

	// The codec name is embedded in the manifest, which is itself encoded by
	// that codec. All built-in codecs are JSON-shaped, so decoding with the
	// default and re-checking the recorded name is sufficient.
	var m Manifest
	if err := codec.Default.Unmarshal(data, &m); err != nil {
		return nil, nil, fmt.Errorf("shard: decode manifest: %w", err)
	}
	c, ok := codec.ByName(m.Codec)
	if !ok {
		return nil, nil, fmt.Errorf("shard: manifest written by unknown codec %q", m.Codec)
	}
	if m.Version > ManifestVersion {
		return nil, nil, fmt.Errorf("shard: manifest version %d not supported", m.Version)
	}
	return &m, c, nil
}
