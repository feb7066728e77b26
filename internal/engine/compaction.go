package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hupe1980/lsmvec/internal/fs"
	"github.com/hupe1980/lsmvec/internal/segment"
	"github.com/hupe1980/lsmvec/model"
)

// Compact merges all segments into one. With force it flushes the MemTable
// and compacts whenever at least one segment exists; otherwise it defers to
// the compaction policy.
func (e *Engine) Compact(force bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if !force {
		return e.maybeCompactLocked()
	}
	if err := e.flushLocked(); err != nil {
		return err
	}
	// The flush may already have compacted down to a single segment.
	if len(e.segments) == 0 || (len(e.segments) == 1 && e.segments[0].Compacted && len(e.tombstones) == 0) {
		return nil
	}
	return e.compactLocked()
}

func (e *Engine) maybeCompactLocked() error {
	stats := make([]SegmentStats, len(e.segments))
	for i, info := range e.segments {
		stats[i] = info.stats()
	}
	if !e.policy.ShouldCompact(stats) {
		return nil
	}
	return e.compactLocked()
}

// compactLocked merges every segment in ascending sequence order so later
// segments overwrite earlier ones, drops tombstoned ids and writes a single
// compacted segment. The MemTable must be empty: the tombstone set is
// cleared afterwards and could otherwise no longer shadow buffered data.
func (e *Engine) compactLocked() (err error) {
	if e.mem.Len() != 0 {
		return fmt.Errorf("compaction with %d buffered records", e.mem.Len())
	}

	start := time.Now()
	inputs := e.segments
	outputRows := 0
	defer func() {
		e.metrics.OnCompaction(time.Since(start), len(inputs), outputRows, err)
	}()

	merged := make(map[string]model.Record)
	for _, info := range inputs {
		seg, err := e.loadSegment(info)
		if err != nil {
			return fmt.Errorf("load %s: %w", filepath.Base(info.Path), err)
		}
		for _, rec := range seg.Records {
			merged[rec.ID] = rec
		}
	}
	for id := range e.tombstones {
		delete(merged, id)
	}

	records := make([]model.Record, 0, len(merged))
	for _, rec := range merged {
		records = append(records, rec)
	}
	model.SortByID(records)
	outputRows = len(records)

	out := &segment.Segment{Seq: e.nextSeq, Compacted: true, Records: records}
	path := filepath.Join(e.dir, segment.FileName(out.Seq, true))
	data, err := e.writeCompacted(out, path)
	if err != nil {
		return err
	}
	e.nextSeq++
	e.cache.Set(out.Seq, out)

	outInfo := SegmentInfo{
		Seq:       out.Seq,
		Compacted: true,
		Path:      path,
		Size:      int64(len(data)),
		Count:     out.Len(),
		MinID:     out.MinID(),
		MaxID:     out.MaxID(),
	}

	// Inputs that cannot be removed stay live. They are older than the
	// output, so shadowing still holds, but their tombstones must be kept.
	var remaining []SegmentInfo
	var removeErr error
	for _, info := range inputs {
		if err := e.fs.Remove(info.Path); err != nil {
			remaining = append(remaining, info)
			if removeErr == nil {
				removeErr = fmt.Errorf("remove %s: %w", filepath.Base(info.Path), err)
			}
			continue
		}
		e.cache.Remove(info.Seq)
	}
	_ = fs.SyncDir(e.fs, e.dir)
	e.segments = append(remaining, outInfo)
	if removeErr != nil {
		return removeErr
	}

	e.tombstones.clear()
	if err := e.wal.Checkpoint(); err != nil {
		return err
	}

	e.logger.Info("Compacted segments",
		"inputs", len(inputs),
		"output", filepath.Base(path),
		"rows", outputRows,
		"bytes", len(data),
		"duration", time.Since(start),
		"throttled", e.rc.IOLimited(),
	)
	return nil
}

// writeCompacted encodes and writes out while holding a background worker
// slot, so compaction shares the worker budget with segment loading.
func (e *Engine) writeCompacted(out *segment.Segment, path string) ([]byte, error) {
	ctx := context.Background()
	if err := e.rc.AcquireBackground(ctx); err != nil {
		return nil, err
	}
	defer e.rc.ReleaseBackground()

	data, err := segment.Encode(out, e.compression)
	if err != nil {
		return nil, err
	}
	if err := e.rc.AcquireIO(ctx, len(data)); err != nil {
		return nil, err
	}
	if err := fs.WriteFileAtomic(e.fs, path, data, 0644); err != nil {
		return nil, fmt.Errorf("write compacted segment: %w", err)
	}
	return data, nil
}
