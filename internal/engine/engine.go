package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/lsmvec/codec"
	"github.com/hupe1980/lsmvec/internal/cache"
	"github.com/hupe1980/lsmvec/internal/fs"
	"github.com/hupe1980/lsmvec/internal/memtable"
	"github.com/hupe1980/lsmvec/internal/resource"
	"github.com/hupe1980/lsmvec/internal/segment"
	"github.com/hupe1980/lsmvec/internal/wal"
	"github.com/hupe1980/lsmvec/model"
)

const (
	// WALFileName is the name of the write-ahead log inside the store directory.
	WALFileName = "wal.log"
	// LockFileName is the name of the lock file inside the store directory.
	LockFileName = "LOCK"
)

// SegmentInfo describes one live segment file.
type SegmentInfo struct {
	Seq       uint64
	Compacted bool
	Path      string
	Size      int64
	Count     int
	MinID     string
	MaxID     string
}

func (s SegmentInfo) stats() SegmentStats {
	return SegmentStats{Seq: s.Seq, Size: s.Size, Count: s.Count, Compacted: s.Compacted}
}

// covers reports whether id falls within the segment's id range.
func (s SegmentInfo) covers(id string) bool {
	return s.Count > 0 && id >= s.MinID && id <= s.MaxID
}

// Stats is a point-in-time view of the engine.
type Stats struct {
	Segments       int
	SegmentRecords int
	MemtableSize   int
	Tombstones     int
	WALSize        int64
	NextSeq        uint64
	CacheHits      int64
	CacheMisses    int64
}

// Engine is the LSM storage engine.
type Engine struct {
	mu sync.Mutex

	dir         string
	fs          fs.FileSystem
	logger      *slog.Logger
	metrics     MetricsObserver
	rc          *resource.Controller
	policy      CompactionPolicy
	flushSize   int
	durability  wal.Durability
	compression segment.Compression
	codec       codec.Codec
	cacheSize   int

	lock       *dirLock
	wal        *wal.WAL
	mem        *memtable.MemTable
	tombstones tombstoneSet
	segments   []SegmentInfo // ascending by Seq
	nextSeq    uint64
	cache      *cache.LRU[uint64, *segment.Segment]
	closed     bool
}

// Open initializes the engine in dir: it creates the directory, takes the
// directory lock, replays the log and discovers existing segments.
func Open(dir string, opts ...Option) (*Engine, error) {
	e := &Engine{
		dir:         dir,
		fs:          fs.Default,
		logger:      slog.New(slog.DiscardHandler),
		metrics:     NoopMetricsObserver{},
		policy:      ThresholdPolicy{Threshold: DefaultCompactionThreshold},
		flushSize:   DefaultMemtableFlushSize,
		durability:  wal.DurabilitySync,
		compression: segment.CompressionZSTD,
		codec:       codec.Default,
		cacheSize:   DefaultSegmentCacheSize,
		tombstones:  make(tombstoneSet),
		nextSeq:     1,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rc == nil {
		e.rc = resource.NewController(resource.Config{MaxBackgroundWorkers: int64(runtime.GOMAXPROCS(0))})
	}
	e.cache = cache.NewLRU[uint64, *segment.Segment](e.cacheSize)
	e.mem = memtable.New(e.flushSize)

	if err := e.fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	lock, err := lockDir(dir)
	if err != nil {
		return nil, err
	}
	e.lock = lock

	if err := e.init(); err != nil {
		if e.wal != nil {
			_ = e.wal.Close()
		}
		_ = e.lock.release()
		return nil, err
	}

	e.logger.Info("Opened storage engine",
		"dir", dir,
		"segments", len(e.segments),
		"memtable", e.mem.Len(),
		"tombstones", len(e.tombstones),
		"next_seq", e.nextSeq,
	)
	return e, nil
}

func (e *Engine) init() error {
	entries, err := e.fs.ReadDir(e.dir)
	if err != nil {
		return fmt.Errorf("read store directory: %w", err)
	}

	var found []SegmentInfo
	for _, ent := range entries {
		name := ent.Name()
		if ent.IsDir() {
			continue
		}
		if strings.HasSuffix(name, ".tmp") {
			// Leftover from an interrupted segment write or checkpoint.
			if err := e.fs.Remove(filepath.Join(e.dir, name)); err != nil {
				return fmt.Errorf("remove stale %s: %w", name, err)
			}
			e.logger.Debug("Removed stale temporary file", "file", name)
			continue
		}
		if seq, compacted, ok := segment.ParseFileName(name); ok {
			found = append(found, SegmentInfo{
				Seq:       seq,
				Compacted: compacted,
				Path:      filepath.Join(e.dir, name),
			})
		}
	}
	slices.SortFunc(found, func(a, b SegmentInfo) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
	for i := 1; i < len(found); i++ {
		if found[i].Seq == found[i-1].Seq {
			return fmt.Errorf("%w: duplicate segment sequence %d", ErrCorrupt, found[i].Seq)
		}
	}

	if err := e.loadSegments(found); err != nil {
		return err
	}
	e.segments = found
	if n := len(found); n > 0 {
		e.nextSeq = found[n-1].Seq + 1
	}

	w, err := wal.Open(e.fs, filepath.Join(e.dir, WALFileName), wal.Options{
		Durability: e.durability,
		Codec:      e.codec,
	})
	if err != nil {
		return fmt.Errorf("open wal: %w", err)
	}
	e.wal = w

	start := time.Now()
	replayed := 0
	err = w.Replay(func(ent wal.Entry) error {
		replayed++
		e.apply(ent)
		return nil
	})
	if err != nil {
		return fmt.Errorf("replay wal: %w", wrapCorrupt(err))
	}
	e.logger.Debug("Replayed wal", "entries", replayed, "duration", time.Since(start))
	return nil
}

// loadSegments decodes every segment in parallel to validate it and record
// its id range. Decoded segments warm the cache.
func (e *Engine) loadSegments(infos []SegmentInfo) error {
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(e.rc.MaxBackgroundWorkers())

	for i := range infos {
		g.Go(func() error {
			if err := e.rc.AcquireBackground(ctx); err != nil {
				return err
			}
			defer e.rc.ReleaseBackground()

			seg, err := segment.Read(e.fs, infos[i].Path)
			if err != nil {
				return wrapCorrupt(err)
			}
			if seg.Seq != infos[i].Seq {
				return fmt.Errorf("%w: %s: header sequence %d", ErrCorrupt, filepath.Base(infos[i].Path), seg.Seq)
			}
			size, err := e.fs.Stat(infos[i].Path)
			if err != nil {
				return err
			}
			infos[i].Size = size.Size()
			infos[i].Count = seg.Len()
			infos[i].MinID = seg.MinID()
			infos[i].MaxID = seg.MaxID()
			e.cache.Set(seg.Seq, seg)
			return nil
		})
	}
	return g.Wait()
}

// apply replays one log entry into the MemTable and tombstone set.
func (e *Engine) apply(ent wal.Entry) {
	switch ent.Op {
	case model.OpPut:
		e.mem.Put(ent.Record())
		e.tombstones.remove(ent.ID)
	case model.OpDelete:
		e.mem.Delete(ent.ID)
		e.tombstones.add(ent.ID)
	}
}

// Dir returns the store directory.
func (e *Engine) Dir() string { return e.dir }

// PutBatch durably logs records with a single append, then applies them.
// Later records in the batch supersede earlier ones with the same id.
func (e *Engine) PutBatch(records []model.Record) error {
	if len(records) == 0 {
		return nil
	}
	entries := make([]wal.Entry, len(records))
	for i, rec := range records {
		if rec.ID == "" {
			return fmt.Errorf("%w: empty id", ErrInvalidArgument)
		}
		entries[i] = wal.PutEntry(rec)
	}
	return e.write(entries)
}

// DeleteBatch durably logs deletions with a single append, then applies them.
func (e *Engine) DeleteBatch(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	entries := make([]wal.Entry, len(ids))
	for i, id := range ids {
		if id == "" {
			return fmt.Errorf("%w: empty id", ErrInvalidArgument)
		}
		entries[i] = wal.DeleteEntry(id)
	}
	return e.write(entries)
}

func (e *Engine) write(entries []wal.Entry) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if err := e.wal.Append(entries...); err != nil {
		return err
	}
	for _, ent := range entries {
		e.apply(ent)
	}
	if e.mem.Len() >= e.flushSize {
		if err := e.flushLocked(); err != nil {
			return fmt.Errorf("%w: %w", ErrFlushFailed, err)
		}
	}
	return nil
}

// Get returns the live record for id. Tombstoned ids are never returned.
func (e *Engine) Get(id string) (model.Record, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return model.Record{}, false, ErrClosed
	}
	if e.tombstones.contains(id) {
		return model.Record{}, false, nil
	}
	if rec, ok := e.mem.Get(id); ok {
		return rec, true, nil
	}
	for i := len(e.segments) - 1; i >= 0; i-- {
		info := e.segments[i]
		if !info.covers(id) {
			continue
		}
		seg, err := e.loadSegment(info)
		if err != nil {
			return model.Record{}, false, err
		}
		if rec, ok := seg.Find(id); ok {
			return rec, true, nil
		}
	}
	return model.Record{}, false, nil
}

// ScanAll builds the full live view: MemTable first, then segments from
// newest to oldest filling unseen ids, minus every tombstoned id.
func (e *Engine) ScanAll() (map[string]model.Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}
	return e.scanLocked()
}

func (e *Engine) scanLocked() (map[string]model.Record, error) {
	out := make(map[string]model.Record, e.mem.Len())
	e.mem.Range(func(rec model.Record) bool {
		out[rec.ID] = rec
		return true
	})
	for i := len(e.segments) - 1; i >= 0; i-- {
		seg, err := e.loadSegment(e.segments[i])
		if err != nil {
			return nil, err
		}
		for _, rec := range seg.Records {
			if _, seen := out[rec.ID]; !seen {
				out[rec.ID] = rec
			}
		}
	}
	for id := range e.tombstones {
		delete(out, id)
	}
	return out, nil
}

func (e *Engine) loadSegment(info SegmentInfo) (*segment.Segment, error) {
	if seg, ok := e.cache.Get(info.Seq); ok {
		return seg, nil
	}
	seg, err := segment.Read(e.fs, info.Path)
	if err != nil {
		return nil, wrapCorrupt(err)
	}
	e.cache.Set(info.Seq, seg)
	return seg, nil
}

// Flush writes the MemTable out as a new segment, checkpoints the log and
// evaluates the compaction policy. It is a no-op for an empty MemTable.
func (e *Engine) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	return e.flushLocked()
}

func (e *Engine) flushLocked() error {
	if e.mem.Len() == 0 {
		return nil
	}
	start := time.Now()
	seg := &segment.Segment{Seq: e.nextSeq, Records: e.mem.Snapshot()}

	path, size, err := segment.Write(e.fs, e.dir, seg, e.compression)
	if err != nil {
		e.metrics.OnFlush(time.Since(start), seg.Len(), err)
		return fmt.Errorf("write segment %d: %w", seg.Seq, err)
	}

	e.segments = append(e.segments, SegmentInfo{
		Seq:   seg.Seq,
		Path:  path,
		Size:  size,
		Count: seg.Len(),
		MinID: seg.MinID(),
		MaxID: seg.MaxID(),
	})
	e.nextSeq++
	e.cache.Set(seg.Seq, seg)
	e.mem = memtable.New(e.flushSize)

	err = e.wal.Checkpoint(e.tombstones.entries()...)
	e.metrics.OnFlush(time.Since(start), seg.Len(), err)
	if err != nil {
		return err
	}

	e.logger.Info("Flushed memtable",
		"segment", filepath.Base(path),
		"rows", seg.Len(),
		"bytes", size,
		"duration", time.Since(start),
	)
	return e.maybeCompactLocked()
}

// Stats returns a point-in-time view of the engine.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Stats{
		Segments:     len(e.segments),
		MemtableSize: e.mem.Len(),
		Tombstones:   len(e.tombstones),
		NextSeq:      e.nextSeq,
	}
	for _, info := range e.segments {
		s.SegmentRecords += info.Count
	}
	if e.wal != nil {
		s.WALSize = e.wal.Size()
	}
	s.CacheHits, s.CacheMisses = e.cache.Stats()
	return s
}

// Segments returns the live segments in ascending sequence order.
func (e *Engine) Segments() []SegmentInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.segments)
}

// Close flushes the MemTable, closes the log and releases the directory lock.
// Further calls return nil; other operations return ErrClosed.
// Abort releases the log and the directory lock without flushing the
// MemTable. Buffered records stay in the log and are replayed by the next
// Open. Subsequent calls are no-ops.
func (e *Engine) Abort() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	var result *multierror.Error
	if err := e.wal.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close wal: %w", err))
	}
	if err := e.lock.release(); err != nil {
		result = multierror.Append(result, fmt.Errorf("release lock: %w", err))
	}
	return result.ErrorOrNil()
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	var result *multierror.Error
	if err := e.flushLocked(); err != nil {
		result = multierror.Append(result, fmt.Errorf("flush: %w", err))
	}
	if err := e.wal.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close wal: %w", err))
	}
	if err := e.lock.release(); err != nil {
		result = multierror.Append(result, fmt.Errorf("release lock: %w", err))
	}
	if err := result.ErrorOrNil(); err != nil {
		return err
	}
	e.logger.Info("Closed storage engine", "dir", e.dir)
	return nil
}
