package chemgo

import (
	"github.com/hupe1980/chemgo/codec"
	"github.com/hupe1980/chemgo/internal/shard"
)

// Compression selects how shard file sections are compressed on disk.
type Compression = shard.Compression

// Compression choices for WithCompression.
const (
	CompressionNone = shard.CompressionNone
	CompressionLZ4  = shard.CompressionLZ4
	CompressionZSTD = shard.CompressionZSTD
)

type options struct {
	shardSize    int
	compression  shard.Compression
	featureShape []int
	codec        codec.Codec
	logger       *Logger
}

func defaultOptions() options {
	return options{
		compression: shard.CompressionNone,
		codec:       codec.Default,
		logger:      NoopLogger(),
	}
}

// Option configures dataset construction.
type Option func(*options)

// WithShardSize splits ingested rows into shards of the given size instead
// of a single shard. Values <= 0 leave the single-shard default in place.
func WithShardSize(size int) Option {
	return func(o *options) {
		o.shardSize = size
	}
}

// WithCompression selects the compression applied to shard sections.
//
// The default is no compression, which keeps shard files mmap friendly.
// Compressed datasets trade read speed for disk footprint; the choice is
// recorded in the manifest and applies to all shards of the dataset.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithFeatureShape records a multi-dimensional per-row feature shape.
// The product of the dimensions must equal the column count of X.
func WithFeatureShape(dims ...int) Option {
	return func(o *options) {
		o.featureShape = dims
	}
}

// WithCodec configures the codec used for the dataset manifest.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithLogger attaches a structured logger to the dataset.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
