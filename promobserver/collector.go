// Package promobserver exports lsmvec store metrics to Prometheus.
package promobserver

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/lsmvec"
)

var _ lsmvec.MetricsCollector = (*Collector)(nil)

// Collector implements lsmvec.MetricsCollector with Prometheus metrics.
type Collector struct {
	opLatency   *prometheus.HistogramVec
	writes      *prometheus.CounterVec
	batchItems  *prometheus.CounterVec
	searchK     prometheus.Histogram
	flushes     *prometheus.CounterVec
	flushedRows prometheus.Counter
	compactions *prometheus.CounterVec
	compacted   prometheus.Counter
}

// New creates a Collector and registers it with reg. A nil reg uses
// prometheus.DefaultRegisterer. Metric names are prefixed with namespace.
func New(reg prometheus.Registerer, namespace string) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of store operations",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 18),
		}, []string{"op", "status"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_total",
			Help:      "Total mutating calls",
		}, []string{"op", "status"}),
		batchItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_items_total",
			Help:      "Items submitted through batch inserts",
		}, []string{"status"}),
		searchK: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_k",
			Help:      "Requested result count per search",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_total",
			Help:      "MemTable flushes",
		}, []string{"status"}),
		flushedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushed_records_total",
			Help:      "Records written by flushes",
		}),
		compactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compactions_total",
			Help:      "Segment compactions",
		}, []string{"status"}),
		compacted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compacted_segments_total",
			Help:      "Input segments merged by compactions",
		}),
	}

	for _, col := range []prometheus.Collector{
		c.opLatency, c.writes, c.batchItems, c.searchK,
		c.flushes, c.flushedRows, c.compactions, c.compacted,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordInsert implements lsmvec.MetricsCollector.
func (c *Collector) RecordInsert(d time.Duration, err error) {
	c.opLatency.WithLabelValues("insert", status(err)).Observe(d.Seconds())
	c.writes.WithLabelValues("insert", status(err)).Inc()
}

// RecordBatchInsert implements lsmvec.MetricsCollector.
func (c *Collector) RecordBatchInsert(count, failed int, d time.Duration) {
	st := "success"
	if failed > 0 {
		st = "error"
	}
	c.opLatency.WithLabelValues("batch_insert", st).Observe(d.Seconds())
	c.writes.WithLabelValues("batch_insert", st).Inc()
	c.batchItems.WithLabelValues("success").Add(float64(count - failed))
	c.batchItems.WithLabelValues("error").Add(float64(failed))
}

// RecordSearch implements lsmvec.MetricsCollector.
func (c *Collector) RecordSearch(k int, d time.Duration, err error) {
	c.opLatency.WithLabelValues("search", status(err)).Observe(d.Seconds())
	if k > 0 {
		c.searchK.Observe(float64(k))
	}
}

// RecordDelete implements lsmvec.MetricsCollector.
func (c *Collector) RecordDelete(d time.Duration, err error) {
	c.opLatency.WithLabelValues("delete", status(err)).Observe(d.Seconds())
	c.writes.WithLabelValues("delete", status(err)).Inc()
}

// RecordFlush implements lsmvec.MetricsCollector.
func (c *Collector) RecordFlush(d time.Duration, rows int, err error) {
	c.opLatency.WithLabelValues("flush", status(err)).Observe(d.Seconds())
	c.flushes.WithLabelValues(status(err)).Inc()
	if err == nil {
		c.flushedRows.Add(float64(rows))
	}
}

// RecordCompaction implements lsmvec.MetricsCollector.
func (c *Collector) RecordCompaction(d time.Duration, inputs, _ int, err error) {
	c.opLatency.WithLabelValues("compaction", status(err)).Observe(d.Seconds())
	c.compactions.WithLabelValues(status(err)).Inc()
	if err == nil {
		c.compacted.Add(float64(inputs))
	}
}
