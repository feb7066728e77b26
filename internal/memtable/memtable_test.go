package memtable

import (
	"testing"

	"github.com/hupe1980/lsmvec/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemTable(t *testing.T) {
	m := New(4)
	m.Put(model.Record{ID: "b", Vector: []float64{2}})
	m.Put(model.Record{ID: "a", Vector: []float64{1}})
	m.Put(model.Record{ID: "b", Vector: []float64{3}})
	assert.Equal(t, 2, m.Len())

	rec, ok := m.Get("b")
	require.True(t, ok)
	assert.Equal(t, []float64{3}, rec.Vector)

	snap := m.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "a", snap[0].ID)
	assert.Equal(t, "b", snap[1].ID)

	assert.True(t, m.Delete("a"))
	assert.False(t, m.Delete("a"))
	_, ok = m.Get("a")
	assert.False(t, ok)

	var seen []string
	m.Range(func(r model.Record) bool {
		seen = append(seen, r.ID)
		return true
	})
	assert.Equal(t, []string{"b"}, seen)
}
