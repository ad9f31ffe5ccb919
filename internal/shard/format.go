package shard

import (
	"errors"
	"fmt"
)

const (
	// FormatMagic identifies chemgo shard files (ASCII: "CHD0").
	FormatMagic = 0x43484430

	// FormatVersion is the current shard file format version.
	FormatVersion uint32 = 1

	// HeaderSize is the size of the file header in bytes.
	HeaderSize = 64
)

var (
	// ErrInvalidMagic is returned when a file has an invalid magic number.
	ErrInvalidMagic = errors.New("shard: invalid magic number")

	// ErrInvalidVersion is returned when a file has an unsupported version.
	ErrInvalidVersion = errors.New("shard: unsupported format version")

	// ErrCorrupted is returned when a file fails checksum validation.
	ErrCorrupted = errors.New("shard: file corrupted (checksum mismatch)")

	// ErrOutOfBounds is returned when accessing an invalid shard index.
	ErrOutOfBounds = errors.New("shard: index out of bounds")

	// ErrRowMismatch is returned when the four arrays of a block disagree
	// on the row count.
	ErrRowMismatch = errors.New("shard: arrays disagree on row count")

	// ErrTruncated is returned when a shard file is shorter than its
	// header claims.
	ErrTruncated = errors.New("shard: file truncated")
)

// FileHeader is the 64-byte header at the start of every shard file.
//
// All multi-byte fields are little-endian. Offsets are absolute file offsets;
// the X section always starts at HeaderSize.
type FileHeader struct {
	Magic        uint32  // 0x43484430 ("CHD0")
	Version      uint32  // Format version (currently 1)
	Compression  uint8   // Compression of the numeric sections
	Padding1     [3]byte
	Rows         uint64  // Rows stored in this shard
	FeatureWidth uint32  // Flattened feature width (product of feature shape)
	Tasks        uint32  // Number of tasks (columns of y/w)
	YOffset      uint64  // Offset to label section
	WOffset      uint64  // Offset to weight section
	IDOffset     uint64  // Offset to id section
	Checksum     uint32  // CRC32 (IEEE) of everything after the header
	Reserved     [8]byte // Future use
}

// Validate checks that the header is plausible.
func (h *FileHeader) Validate() error {
	if h.Magic != FormatMagic {
		return fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, h.Magic)
	}
	if h.Version > FormatVersion {
		return fmt.Errorf("%w: got %d", ErrInvalidVersion, h.Version)
	}
	if h.YOffset < HeaderSize || h.WOffset < h.YOffset || h.IDOffset < h.WOffset {
		return fmt.Errorf("%w: inconsistent section offsets", ErrCorrupted)
	}
	return nil
}

// Block is the in-memory form of one shard: four arrays sharing a row count.
// X is row-major rows×featureWidth, Y and W are row-major rows×tasks.
type Block struct {
	X    []float64
	Y    []float64
	W    []float64
	IDs  []string
	Rows int
}

// Validate checks the block's internal row-count invariant.
func (b *Block) Validate(featureWidth, tasks int) error {
	if len(b.IDs) != b.Rows {
		return fmt.Errorf("%w: %d ids for %d rows", ErrRowMismatch, len(b.IDs), b.Rows)
	}
	if len(b.X) != b.Rows*featureWidth {
		return fmt.Errorf("%w: X has %d values, want %d", ErrRowMismatch, len(b.X), b.Rows*featureWidth)
	}
	if len(b.Y) != b.Rows*tasks {
		return fmt.Errorf("%w: Y has %d values, want %d", ErrRowMismatch, len(b.Y), b.Rows*tasks)
	}
	if len(b.W) != b.Rows*tasks {
		return fmt.Errorf("%w: W has %d values, want %d", ErrRowMismatch, len(b.W), b.Rows*tasks)
	}
	return nil
}
