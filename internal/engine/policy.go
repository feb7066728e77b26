package engine

// SegmentStats holds metadata about a segment needed for compaction decisions.
type SegmentStats struct {
	Seq       uint64
	Size      int64
	Count     int
	Compacted bool
}

// CompactionPolicy decides when segments should be merged.
//
// Compaction always merges every segment: a partial merge would give the
// output a newer sequence number than segments it did not include.
type CompactionPolicy interface {
	ShouldCompact(segments []SegmentStats) bool
}

// ThresholdPolicy compacts once at least Threshold segments exist.
type ThresholdPolicy struct {
	Threshold int
}

func (p ThresholdPolicy) ShouldCompact(segments []SegmentStats) bool {
	if p.Threshold <= 0 {
		return false
	}
	return len(segments) >= p.Threshold
}
