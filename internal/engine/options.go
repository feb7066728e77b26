package engine

import (
	"log/slog"

	"github.com/hupe1980/lsmvec/codec"
	"github.com/hupe1980/lsmvec/internal/fs"
	"github.com/hupe1980/lsmvec/internal/resource"
	"github.com/hupe1980/lsmvec/internal/segment"
	"github.com/hupe1980/lsmvec/internal/wal"
)

const (
	// DefaultMemtableFlushSize is the number of buffered records that triggers a flush.
	DefaultMemtableFlushSize = 1000
	// DefaultCompactionThreshold is the segment count that triggers compaction.
	DefaultCompactionThreshold = 4
	// DefaultSegmentCacheSize is the number of decoded segments kept in memory.
	DefaultSegmentCacheSize = 16
)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithFileSystem sets the file system implementation.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(e *Engine) {
		if fsys != nil {
			e.fs = fsys
		}
	}
}

// WithMemtableFlushSize sets the MemTable size that triggers a flush.
func WithMemtableFlushSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.flushSize = n
		}
	}
}

// WithCompactionThreshold sets the segment count that triggers compaction.
func WithCompactionThreshold(threshold int) Option {
	return func(e *Engine) {
		if threshold > 0 {
			e.policy = ThresholdPolicy{Threshold: threshold}
		}
	}
}

// WithCompactionPolicy replaces the compaction policy.
func WithCompactionPolicy(policy CompactionPolicy) Option {
	return func(e *Engine) {
		if policy != nil {
			e.policy = policy
		}
	}
}

// WithDurability sets the log durability mode.
func WithDurability(d wal.Durability) Option {
	return func(e *Engine) {
		e.durability = d
	}
}

// WithCompression sets the segment body compression.
func WithCompression(c segment.Compression) Option {
	return func(e *Engine) {
		e.compression = c
	}
}

// WithCodec sets the log line codec.
func WithCodec(c codec.Codec) Option {
	return func(e *Engine) {
		if c != nil {
			e.codec = c
		}
	}
}

// WithSegmentCacheSize sets how many decoded segments are kept in memory.
// Zero disables the cache.
func WithSegmentCacheSize(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.cacheSize = n
		}
	}
}

// WithResourceController sets the resource controller used for parallel
// segment loading and compaction IO throttling.
func WithResourceController(rc *resource.Controller) Option {
	return func(e *Engine) {
		e.rc = rc
	}
}

// WithMetricsObserver sets the metrics observer.
func WithMetricsObserver(observer MetricsObserver) Option {
	return func(e *Engine) {
		if observer != nil {
			e.metrics = observer
		}
	}
}
