package model

import (
	"maps"
	"slices"
)

// Metadata holds arbitrary attributes attached to a record.
// Values must be encodable by the configured codec and by msgpack.
type Metadata map[string]any

// Clone returns a shallow copy of the metadata map.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}

// Record is a vector with its identity and attributes.
type Record struct {
	ID       string    `json:"id" msgpack:"id"`
	Vector   []float64 `json:"vector" msgpack:"vector"`
	Metadata Metadata  `json:"metadata,omitempty" msgpack:"metadata,omitempty"`
}

// Clone returns a copy of r that shares no slices or maps with it.
func (r Record) Clone() Record {
	return Record{
		ID:       r.ID,
		Vector:   slices.Clone(r.Vector),
		Metadata: r.Metadata.Clone(),
	}
}

// Dimension returns the length of the record's vector.
func (r Record) Dimension() int { return len(r.Vector) }

// Op identifies a logged mutation.
type Op string

const (
	// OpPut inserts or supersedes a record.
	OpPut Op = "put"
	// OpDelete removes a record.
	OpDelete Op = "delete"
)

// Valid reports whether o is a known operation.
func (o Op) Valid() bool {
	return o == OpPut || o == OpDelete
}

// SortByID sorts records ascending by ID in place.
func SortByID(records []Record) {
	slices.SortFunc(records, func(a, b Record) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
}
