package engine

import "time"

// MetricsObserver receives storage engine events.
type MetricsObserver interface {
	// OnFlush is called when a flush completes.
	OnFlush(duration time.Duration, rows int, err error)

	// OnCompaction is called when a compaction completes.
	OnCompaction(duration time.Duration, inputSegments int, outputRows int, err error)
}

// NoopMetricsObserver is a no-op implementation of MetricsObserver.
type NoopMetricsObserver struct{}

func (NoopMetricsObserver) OnFlush(time.Duration, int, error)           {}
func (NoopMetricsObserver) OnCompaction(time.Duration, int, int, error) {}
