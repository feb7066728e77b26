package promobserver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lsmvec"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg, "lsmvec")
	require.NoError(t, err)

	c.RecordInsert(time.Millisecond, nil)
	c.RecordInsert(time.Millisecond, errors.New("boom"))
	c.RecordBatchInsert(5, 0, time.Millisecond)
	c.RecordBatchInsert(3, 3, time.Millisecond)
	c.RecordDelete(time.Millisecond, nil)
	c.RecordSearch(10, time.Millisecond, nil)
	c.RecordFlush(time.Millisecond, 100, nil)
	c.RecordFlush(time.Millisecond, 7, errors.New("disk full"))
	c.RecordCompaction(time.Millisecond, 4, 90, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.writes.WithLabelValues("insert", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.writes.WithLabelValues("insert", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.writes.WithLabelValues("batch_insert", "error")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.batchItems.WithLabelValues("success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.batchItems.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.writes.WithLabelValues("delete", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.flushes.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.flushes.WithLabelValues("error")))
	assert.Equal(t, 100.0, testutil.ToFloat64(c.flushedRows))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.compactions.WithLabelValues("success")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.compacted))

	n, err := testutil.GatherAndCount(reg, "lsmvec_search_k")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg, "dup")
	require.NoError(t, err)
	_, err = New(reg, "dup")
	require.Error(t, err)
}

func TestCollectorWithStore(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	c, err := New(reg, "store")
	require.NoError(t, err)

	s, err := lsmvec.Open(ctx, t.TempDir(), lsmvec.WithMetricsCollector(c), lsmvec.WithMemtableFlushSize(2))
	require.NoError(t, err)
	defer s.Close(ctx)

	_, err = s.AddBatch(ctx, []lsmvec.Item{{Vector: []float64{1, 0}}, {Vector: []float64{0, 1}}})
	require.NoError(t, err)
	_, err = s.SearchSimilar(ctx, []float64{1, 0}, 1)
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.batchItems.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.flushes.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.flushedRows))
}
