package lsmvec

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hupe1980/lsmvec/codec"
	"github.com/hupe1980/lsmvec/internal/fs"
	"github.com/hupe1980/lsmvec/internal/segment"
	"github.com/hupe1980/lsmvec/internal/wal"
	"github.com/hupe1980/lsmvec/model"
)

// Durability controls when log appends reach stable storage.
type Durability = wal.Durability

const (
	// DurabilitySync fsyncs the log on every mutation (default).
	DurabilitySync = wal.DurabilitySync
	// DurabilityAsync leaves flushing to the OS page cache.
	DurabilityAsync = wal.DurabilityAsync
)

// Compression selects the segment body compression.
type Compression = segment.Compression

const (
	CompressionNone = segment.CompressionNone
	CompressionLZ4  = segment.CompressionLZ4
	CompressionZSTD = segment.CompressionZSTD
)

// ParseCompression parses "none", "lz4" or "zstd".
func ParseCompression(s string) (Compression, error) { return segment.ParseCompression(s) }

// ParseDurability parses "sync" or "async".
func ParseDurability(s string) (Durability, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sync":
		return DurabilitySync, nil
	case "async":
		return DurabilityAsync, nil
	default:
		return 0, fmt.Errorf("lsmvec: unknown durability %q", s)
	}
}

const (
	// DefaultMemtableFlushSize is the MemTable record count that triggers a flush.
	DefaultMemtableFlushSize = 1000
	// DefaultMaxSegmentsBeforeCompact is the segment count that triggers compaction.
	DefaultMaxSegmentsBeforeCompact = 4
	// DefaultOverfetchFactor multiplies k when asking the index for candidates.
	DefaultOverfetchFactor = 3
	// DefaultIndexRebuildRatio is the stale fraction that triggers an index rebuild.
	DefaultIndexRebuildRatio = 0.5
	// DefaultK is a conventional result count for callers without a preference.
	DefaultK = 10
)

type options struct {
	memtableFlushSize int
	maxSegments       int
	durability        Durability
	compression       Compression
	codec             codec.Codec
	segmentCacheSize  int
	compactionIOLimit int64
	logger            *Logger
	metricsCollector  MetricsCollector
	overfetchFactor   int
	indexRebuildRatio float64
	lockTimeout       time.Duration
	fs                fs.FileSystem
}

func defaultOptions() options {
	return options{
		memtableFlushSize: DefaultMemtableFlushSize,
		maxSegments:       DefaultMaxSegmentsBeforeCompact,
		durability:        DurabilitySync,
		compression:       CompressionZSTD,
		codec:             codec.Default,
		segmentCacheSize:  16,
		logger:            NoopLogger(),
		metricsCollector:  NoopMetricsCollector{},
		overfetchFactor:   DefaultOverfetchFactor,
		indexRebuildRatio: DefaultIndexRebuildRatio,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures Open.
type Option func(*options)

// WithMemtableFlushSize sets how many buffered records trigger a flush to a
// new segment. Values below 1 are ignored.
func WithMemtableFlushSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.memtableFlushSize = n
		}
	}
}

// WithMaxSegmentsBeforeCompact sets the segment count at which a flush
// triggers compaction of all segments into one. Values below 1 are ignored.
func WithMaxSegmentsBeforeCompact(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxSegments = n
		}
	}
}

// WithDurability sets the log durability mode.
func WithDurability(d Durability) Option {
	return func(o *options) {
		o.durability = d
	}
}

// WithCompression sets the segment compression algorithm.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithCodec configures the codec used for write-ahead log lines.
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

// WithSegmentCacheSize sets how many decoded segments stay in memory.
// Zero disables caching.
func WithSegmentCacheSize(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.segmentCacheSize = n
		}
	}
}

// WithCompactionIOLimit caps compaction write throughput in bytes per second.
// Zero means unlimited.
func WithCompactionIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		if bytesPerSec >= 0 {
			o.compactionIOLimit = bytesPerSec
		}
	}
}

// WithLogger sets the logger. If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithLogLevel enables text logging to stderr at the given level.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector sets the metrics collector.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithOverfetchFactor sets how many candidates per requested result are
// taken from the index before exact re-ranking. Values below 1 are ignored.
func WithOverfetchFactor(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.overfetchFactor = n
		}
	}
}

// WithIndexRebuildRatio sets the fraction of stale index nodes above which
// the index is rebuilt from the live records after a mutation. Zero disables
// automatic rebuilds.
func WithIndexRebuildRatio(r float64) Option {
	return func(o *options) {
		if r >= 0 && r <= 1 {
			o.indexRebuildRatio = r
		}
	}
}

// WithLockTimeout bounds how long an operation waits for its lock permit.
// Zero waits until the caller's context is done.
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.lockTimeout = d
		}
	}
}

// withFileSystem injects a file system; used by tests.
func withFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fs = fsys
	}
}

// AddOption configures a single Add call.
type AddOption func(*addOptions)

type addOptions struct {
	id       string
	hasID    bool
	metadata model.Metadata
}

// WithID stores the vector under id instead of a generated one. An existing
// record with the same id is superseded.
func WithID(id string) AddOption {
	return func(o *addOptions) {
		o.id = id
		o.hasID = true
	}
}

// WithMetadata attaches metadata to the stored vector.
func WithMetadata(md model.Metadata) AddOption {
	return func(o *addOptions) {
		o.metadata = md
	}
}
