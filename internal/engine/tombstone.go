package engine

import (
	"slices"

	"github.com/hupe1980/lsmvec/internal/wal"
)

// tombstoneSet records deleted ids that may still be present in segments.
// It outlives MemTable replacement and is cleared only by a full compaction.
type tombstoneSet map[string]struct{}

func (t tombstoneSet) add(id string)    { t[id] = struct{}{} }
func (t tombstoneSet) remove(id string) { delete(t, id) }

func (t tombstoneSet) contains(id string) bool {
	_, ok := t[id]
	return ok
}

func (t tombstoneSet) clear() { clear(t) }

// entries returns delete log entries for every tombstone, sorted by id.
func (t tombstoneSet) entries() []wal.Entry {
	ids := make([]string, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]wal.Entry, len(ids))
	for i, id := range ids {
		out[i] = wal.DeleteEntry(id)
	}
	return out
}
