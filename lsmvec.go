package lsmvec

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/lsmvec/distance"
	"github.com/hupe1980/lsmvec/internal/engine"
	"github.com/hupe1980/lsmvec/internal/kdtree"
	"github.com/hupe1980/lsmvec/internal/resource"
	"github.com/hupe1980/lsmvec/internal/rwgate"
	"github.com/hupe1980/lsmvec/model"
)

// Item is one entry of an AddBatch call. An empty ID gets a generated one.
type Item struct {
	ID       string
	Vector   []float64
	Metadata model.Metadata
}

// Store is an embedded persistent vector store.
//
// The store keeps every live record in memory (the mirror) and answers
// queries from it; the storage engine provides durability and the KD-tree
// narrows the candidate set.
type Store struct {
	opts    options
	logger  *Logger
	metrics MetricsCollector
	gate    *rwgate.Gate
	eng     *engine.Engine

	// Guarded by gate: read under a read permit, written under a write permit.
	mirror map[string]model.Record
	index  *kdtree.Tree
	closed bool

	dim atomic.Int64
}

// Open opens the store in dir, creating it if needed. The live records are
// loaded into memory and indexed before Open returns.
func Open(ctx context.Context, dir string, opts ...Option) (*Store, error) {
	o := applyOptions(opts)
	s := &Store{
		opts:    o,
		logger:  o.logger.WithDir(dir),
		metrics: o.metricsCollector,
		gate:    rwgate.New(),
	}

	if err := s.acquireWrite(ctx); err != nil {
		return nil, err
	}
	defer s.gate.ReleaseWrite()

	engOpts := []engine.Option{
		engine.WithLogger(s.logger.Logger),
		engine.WithMemtableFlushSize(o.memtableFlushSize),
		engine.WithCompactionThreshold(o.maxSegments),
		engine.WithDurability(o.durability),
		engine.WithCompression(o.compression),
		engine.WithCodec(o.codec),
		engine.WithSegmentCacheSize(o.segmentCacheSize),
		engine.WithMetricsObserver(engineObserver{mc: o.metricsCollector}),
		engine.WithResourceController(resource.NewController(resource.Config{
			MaxBackgroundWorkers: int64(runtime.GOMAXPROCS(0)),
			IOLimitBytesPerSec:   o.compactionIOLimit,
		})),
	}
	if o.fs != nil {
		engOpts = append(engOpts, engine.WithFileSystem(o.fs))
	}

	eng, err := engine.Open(dir, engOpts...)
	if err != nil {
		return nil, translateError(err)
	}
	s.eng = eng

	// A failed open leaves the directory as found: nothing is flushed.
	live, err := eng.ScanAll()
	if err != nil {
		_ = eng.Abort()
		return nil, translateError(err)
	}
	if err := s.loadMirror(live); err != nil {
		_ = eng.Abort()
		return nil, err
	}

	s.logger.Info("Opened store", "records", len(s.mirror), "dimension", s.dim.Load())
	return s, nil
}

// loadMirror replaces the mirror and rebuilds the index from live records.
func (s *Store) loadMirror(live map[string]model.Record) error {
	s.mirror = make(map[string]model.Record, len(live))
	dim := 0
	for id, rec := range live {
		if dim == 0 {
			dim = rec.Dimension()
		}
		if rec.Dimension() != dim {
			return fmt.Errorf("%w: record %s has dimension %d, store has %d", ErrCorrupt, id, rec.Dimension(), dim)
		}
		s.mirror[id] = rec
	}
	s.dim.Store(int64(dim))
	if dim == 0 {
		s.index = nil
		return nil
	}
	return s.rebuildIndexLocked()
}

func (s *Store) rebuildIndexLocked() error {
	records := make([]model.Record, 0, len(s.mirror))
	for _, rec := range s.mirror {
		records = append(records, rec)
	}
	model.SortByID(records)

	start := time.Now()
	tree, err := kdtree.Build(records)
	if err != nil {
		return translateError(err)
	}
	s.index = tree
	s.logger.Debug("Rebuilt index", "records", len(records), "depth", tree.Depth(), "duration", time.Since(start))
	return nil
}

func (s *Store) lockContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.lockTimeout > 0 {
		return context.WithTimeout(ctx, s.opts.lockTimeout)
	}
	return ctx, func() {}
}

func (s *Store) acquireWrite(ctx context.Context) error {
	ctx, cancel := s.lockContext(ctx)
	defer cancel()
	return translateError(s.gate.AcquireWrite(ctx))
}

func (s *Store) acquireRead(ctx context.Context) error {
	ctx, cancel := s.lockContext(ctx)
	defer cancel()
	return translateError(s.gate.AcquireRead(ctx))
}

// Dimension returns the store's vector length, or 0 before the first record.
func (s *Store) Dimension() int { return int(s.dim.Load()) }

// checkDimensionLocked validates n against the store's dimension.
func (s *Store) checkDimensionLocked(n int) error {
	if d := int(s.dim.Load()); d != 0 && d != n {
		return &ErrDimensionMismatch{Expected: d, Actual: n}
	}
	return nil
}

// Add stores vector and returns its id.
func (s *Store) Add(ctx context.Context, vector []float64, opts ...AddOption) (id string, err error) {
	start := time.Now()
	defer func() { s.metrics.RecordInsert(time.Since(start), err) }()

	var ao addOptions
	for _, opt := range opts {
		opt(&ao)
	}
	if err := distance.Validate(vector); err != nil {
		return "", translateError(err)
	}
	if ao.hasID && ao.id == "" {
		return "", ErrEmptyID
	}
	id = ao.id
	if !ao.hasID {
		id = uuid.NewString()
	}
	rec := model.Record{ID: id, Vector: slices.Clone(vector), Metadata: ao.metadata.Clone()}

	if err := s.acquireWrite(ctx); err != nil {
		return "", err
	}
	defer s.gate.ReleaseWrite()

	if s.closed {
		return "", ErrClosed
	}
	if err := s.checkDimensionLocked(rec.Dimension()); err != nil {
		return "", err
	}

	werr := s.eng.PutBatch([]model.Record{rec})
	if werr != nil && !errors.Is(werr, engine.ErrFlushFailed) {
		return "", translateError(werr)
	}
	s.applyPutLocked(rec)
	s.maybeRebuildLocked()
	return id, translateError(werr)
}

// AddBatch stores all items with a single log append and returns their ids
// in input order. Every item is validated before anything is written. When an
// id repeats within the batch the last item wins.
func (s *Store) AddBatch(ctx context.Context, items []Item) (ids []string, err error) {
	start := time.Now()
	defer func() {
		failed := 0
		if err != nil {
			failed = len(items)
		}
		s.metrics.RecordBatchInsert(len(items), failed, time.Since(start))
	}()

	if len(items) == 0 {
		return []string{}, nil
	}
	for _, it := range items {
		if err := distance.Validate(it.Vector); err != nil {
			return nil, translateError(err)
		}
	}

	ids = make([]string, len(items))
	records := make([]model.Record, len(items))
	for i, it := range items {
		id := it.ID
		if id == "" {
			id = uuid.NewString()
		}
		ids[i] = id
		records[i] = model.Record{ID: id, Vector: slices.Clone(it.Vector), Metadata: it.Metadata.Clone()}
	}

	if err := s.acquireWrite(ctx); err != nil {
		return nil, err
	}
	defer s.gate.ReleaseWrite()

	if s.closed {
		return nil, ErrClosed
	}
	want := int(s.dim.Load())
	if want == 0 {
		want = records[0].Dimension()
	}
	for _, rec := range records {
		if rec.Dimension() != want {
			return nil, &ErrDimensionMismatch{Expected: want, Actual: rec.Dimension()}
		}
	}

	werr := s.eng.PutBatch(records)
	if werr != nil && !errors.Is(werr, engine.ErrFlushFailed) {
		return nil, translateError(werr)
	}
	for _, rec := range records {
		s.applyPutLocked(rec)
	}
	s.maybeRebuildLocked()
	return ids, translateError(werr)
}

func (s *Store) applyPutLocked(rec model.Record) {
	if s.dim.Load() == 0 {
		s.dim.Store(int64(rec.Dimension()))
	}
	s.mirror[rec.ID] = rec
	if s.index == nil {
		s.index = kdtree.New(int(s.dim.Load()))
	}
	if err := s.index.Insert(rec); err != nil {
		// Dimensions are validated before persisting; a failure here means
		// the index is out of step with the mirror.
		s.logger.Error("Index insert failed, rebuilding", "id", rec.ID, "error", err)
		_ = s.rebuildIndexLocked()
	}
}

// maybeRebuildLocked rebuilds the index once too many nodes are stale.
func (s *Store) maybeRebuildLocked() {
	r := s.opts.indexRebuildRatio
	if r <= 0 || s.index == nil || s.index.StaleRatio() <= r {
		return
	}
	if err := s.rebuildIndexLocked(); err != nil {
		s.logger.Error("Index rebuild failed", "error", err)
	}
}

// Delete removes id and reports whether it was present.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	n, err := s.deleteIDs(ctx, []string{id})
	return n == 1, err
}

// DeleteBatch removes ids with a single log append and returns how many were
// present. Unknown and repeated ids are ignored.
func (s *Store) DeleteBatch(ctx context.Context, ids []string) (int, error) {
	return s.deleteIDs(ctx, ids)
}

func (s *Store) deleteIDs(ctx context.Context, ids []string) (n int, err error) {
	start := time.Now()
	defer func() { s.metrics.RecordDelete(time.Since(start), err) }()

	if err := s.acquireWrite(ctx); err != nil {
		return 0, err
	}
	defer s.gate.ReleaseWrite()

	if s.closed {
		return 0, ErrClosed
	}

	present := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := s.mirror[id]; ok {
			present = append(present, id)
		}
	}
	if len(present) == 0 {
		return 0, nil
	}

	werr := s.eng.DeleteBatch(present)
	if werr != nil && !errors.Is(werr, engine.ErrFlushFailed) {
		return 0, translateError(werr)
	}
	for _, id := range present {
		delete(s.mirror, id)
		if s.index != nil {
			s.index.RemoveByID(id)
		}
	}
	s.maybeRebuildLocked()
	return len(present), translateError(werr)
}

// Get returns a copy of the live record for id.
func (s *Store) Get(ctx context.Context, id string) (model.Record, bool, error) {
	if err := s.acquireRead(ctx); err != nil {
		return model.Record{}, false, err
	}
	defer s.gate.ReleaseRead()

	if s.closed {
		return model.Record{}, false, ErrClosed
	}
	rec, ok := s.mirror[id]
	if !ok {
		return model.Record{}, false, nil
	}
	return rec.Clone(), true, nil
}

// Count returns the number of live records.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := s.acquireRead(ctx); err != nil {
		return 0, err
	}
	defer s.gate.ReleaseRead()

	if s.closed {
		return 0, ErrClosed
	}
	return len(s.mirror), nil
}

// Save flushes buffered records into a segment.
func (s *Store) Save(ctx context.Context) error {
	if err := s.acquireWrite(ctx); err != nil {
		return err
	}
	defer s.gate.ReleaseWrite()

	if s.closed {
		return ErrClosed
	}
	return translateError(s.eng.Flush())
}

// Compact flushes buffered records and merges all segments into one.
func (s *Store) Compact(ctx context.Context) error {
	if err := s.acquireWrite(ctx); err != nil {
		return err
	}
	defer s.gate.ReleaseWrite()

	if s.closed {
		return ErrClosed
	}
	return translateError(s.eng.Compact(true))
}

// RebuildIndex rebuilds the KD-tree from the live records.
func (s *Store) RebuildIndex(ctx context.Context) error {
	if err := s.acquireWrite(ctx); err != nil {
		return err
	}
	defer s.gate.ReleaseWrite()

	if s.closed {
		return ErrClosed
	}
	if s.dim.Load() == 0 {
		return nil
	}
	return s.rebuildIndexLocked()
}

// Close flushes buffered records and releases the directory. Calling Close
// again is a no-op.
func (s *Store) Close(ctx context.Context) error {
	if err := s.acquireWrite(ctx); err != nil {
		return err
	}
	defer s.gate.ReleaseWrite()

	if s.closed {
		return nil
	}
	s.closed = true
	s.mirror = nil
	s.index = nil
	return translateError(s.eng.Close())
}

// Stats is a point-in-time view of the store.
type Stats struct {
	Count     int
	Dimension int

	Segments       int
	SegmentRecords int
	MemtableSize   int
	Tombstones     int
	WALSize        int64
	CacheHits      int64
	CacheMisses    int64

	IndexNodes      int
	IndexStaleRatio float64
	IndexDepth      int

	Gate rwgate.Stats
}

// Stats reports storage, index and gate statistics.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	if err := s.acquireRead(ctx); err != nil {
		return Stats{}, err
	}
	defer s.gate.ReleaseRead()

	if s.closed {
		return Stats{}, ErrClosed
	}
	es := s.eng.Stats()
	st := Stats{
		Count:          len(s.mirror),
		Dimension:      int(s.dim.Load()),
		Segments:       es.Segments,
		SegmentRecords: es.SegmentRecords,
		MemtableSize:   es.MemtableSize,
		Tombstones:     es.Tombstones,
		WALSize:        es.WALSize,
		CacheHits:      es.CacheHits,
		CacheMisses:    es.CacheMisses,
		Gate:           s.gate.Stats(),
	}
	if s.index != nil {
		st.IndexNodes = s.index.Len()
		st.IndexStaleRatio = s.index.StaleRatio()
		st.IndexDepth = s.index.Depth()
	}
	return st, nil
}
