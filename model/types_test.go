package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordClone(t *testing.T) {
	r := Record{ID: "a", Vector: []float64{1, 2}, Metadata: Metadata{"k": "v"}}
	c := r.Clone()

	c.Vector[0] = 9
	c.Metadata["k"] = "changed"

	assert.Equal(t, 1.0, r.Vector[0])
	assert.Equal(t, "v", r.Metadata["k"])
	assert.Equal(t, 2, c.Dimension())
}

func TestSortByID(t *testing.T) {
	recs := []Record{{ID: "c"}, {ID: "a"}, {ID: "b"}}
	SortByID(recs)

	assert.Equal(t, "a", recs[0].ID)
	assert.Equal(t, "b", recs[1].ID)
	assert.Equal(t, "c", recs[2].ID)
}

func TestOpValid(t *testing.T) {
	assert.True(t, OpPut.Valid())
	assert.True(t, OpDelete.Valid())
	assert.False(t, Op("upsert").Valid())
}
