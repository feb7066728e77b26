package lsmvec

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/lsmvec/internal/engine"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the
// promobserver package provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordInsert is called after each single-record Add.
	RecordInsert(duration time.Duration, err error)

	// RecordBatchInsert is called after each AddBatch.
	// count is the number of items attempted, failed is the number that failed.
	RecordBatchInsert(count, failed int, duration time.Duration)

	// RecordSearch is called after each search. k is the requested count.
	RecordSearch(k int, duration time.Duration, err error)

	// RecordDelete is called after each Delete or DeleteBatch.
	RecordDelete(duration time.Duration, err error)

	// RecordFlush is called after each MemTable flush.
	RecordFlush(duration time.Duration, rows int, err error)

	// RecordCompaction is called after each compaction.
	RecordCompaction(duration time.Duration, inputSegments, outputRows int, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(time.Duration, error)               {}
func (NoopMetricsCollector) RecordBatchInsert(int, int, time.Duration)       {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration, error)          {}
func (NoopMetricsCollector) RecordDelete(time.Duration, error)               {}
func (NoopMetricsCollector) RecordFlush(time.Duration, int, error)           {}
func (NoopMetricsCollector) RecordCompaction(time.Duration, int, int, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	InsertCount       atomic.Int64
	InsertErrors      atomic.Int64
	InsertTotalNanos  atomic.Int64
	BatchInsertCount  atomic.Int64
	BatchInsertItems  atomic.Int64
	BatchInsertFailed atomic.Int64
	SearchCount       atomic.Int64
	SearchErrors      atomic.Int64
	SearchTotalNanos  atomic.Int64
	DeleteCount       atomic.Int64
	DeleteErrors      atomic.Int64
	FlushCount        atomic.Int64
	FlushRows         atomic.Int64
	FlushErrors       atomic.Int64
	CompactionCount   atomic.Int64
	CompactionErrors  atomic.Int64
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert(duration time.Duration, err error) {
	b.InsertCount.Add(1)
	b.InsertTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.InsertErrors.Add(1)
	}
}

// RecordBatchInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatchInsert(count, failed int, _ time.Duration) {
	b.BatchInsertCount.Add(1)
	b.BatchInsertItems.Add(int64(count))
	b.BatchInsertFailed.Add(int64(failed))
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_ int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(_ time.Duration, err error) {
	b.DeleteCount.Add(1)
	if err != nil {
		b.DeleteErrors.Add(1)
	}
}

// RecordFlush implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFlush(_ time.Duration, rows int, err error) {
	b.FlushCount.Add(1)
	b.FlushRows.Add(int64(rows))
	if err != nil {
		b.FlushErrors.Add(1)
	}
}

// RecordCompaction implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCompaction(_ time.Duration, _, _ int, err error) {
	b.CompactionCount.Add(1)
	if err != nil {
		b.CompactionErrors.Add(1)
	}
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector.
type BasicMetricsStats struct {
	InsertCount       int64
	InsertErrors      int64
	InsertAvgNanos    int64
	BatchInsertCount  int64
	BatchInsertItems  int64
	BatchInsertFailed int64
	SearchCount       int64
	SearchErrors      int64
	SearchAvgNanos    int64
	DeleteCount       int64
	DeleteErrors      int64
	FlushCount        int64
	FlushRows         int64
	FlushErrors       int64
	CompactionCount   int64
	CompactionErrors  int64
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		InsertCount:       b.InsertCount.Load(),
		InsertErrors:      b.InsertErrors.Load(),
		InsertAvgNanos:    avg(b.InsertTotalNanos.Load(), b.InsertCount.Load()),
		BatchInsertCount:  b.BatchInsertCount.Load(),
		BatchInsertItems:  b.BatchInsertItems.Load(),
		BatchInsertFailed: b.BatchInsertFailed.Load(),
		SearchCount:       b.SearchCount.Load(),
		SearchErrors:      b.SearchErrors.Load(),
		SearchAvgNanos:    avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		DeleteCount:       b.DeleteCount.Load(),
		DeleteErrors:      b.DeleteErrors.Load(),
		FlushCount:        b.FlushCount.Load(),
		FlushRows:         b.FlushRows.Load(),
		FlushErrors:       b.FlushErrors.Load(),
		CompactionCount:   b.CompactionCount.Load(),
		CompactionErrors:  b.CompactionErrors.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// engineObserver forwards storage engine events to a MetricsCollector.
type engineObserver struct {
	mc MetricsCollector
}

var _ engine.MetricsObserver = engineObserver{}

func (o engineObserver) OnFlush(d time.Duration, rows int, err error) {
	o.mc.RecordFlush(d, rows, err)
}

func (o engineObserver) OnCompaction(d time.Duration, inputs, rows int, err error) {
	o.mc.RecordCompaction(d, inputs, rows, err)
}
