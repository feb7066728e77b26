// Package memtable holds records that have been logged but not yet flushed
// to a segment.
//
// A MemTable is not safe for concurrent use; the engine serializes access.
package memtable

import (
	"github.com/hupe1980/lsmvec/model"
)

// MemTable is a mutable id -> record buffer.
type MemTable struct {
	records map[string]model.Record
}

// New returns an empty MemTable sized for capacity records.
func New(capacity int) *MemTable {
	return &MemTable{records: make(map[string]model.Record, capacity)}
}

// Put inserts or supersedes a record.
func (m *MemTable) Put(rec model.Record) {
	m.records[rec.ID] = rec
}

// Delete removes id and reports whether it was present.
func (m *MemTable) Delete(id string) bool {
	if _, ok := m.records[id]; !ok {
		return false
	}
	delete(m.records, id)
	return true
}

// Get returns the buffered record for id.
func (m *MemTable) Get(id string) (model.Record, bool) {
	rec, ok := m.records[id]
	return rec, ok
}

// Len returns the number of buffered records.
func (m *MemTable) Len() int { return len(m.records) }

// Range calls fn for every record until fn returns false. Order is unspecified.
func (m *MemTable) Range(fn func(model.Record) bool) {
	for _, rec := range m.records {
		if !fn(rec) {
			return
		}
	}
}

// Snapshot returns the buffered records sorted ascending by id.
func (m *MemTable) Snapshot() []model.Record {
	out := make([]model.Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	model.SortByID(out)
	return out
}
