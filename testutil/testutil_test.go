package testutil

import (
	"testing"

	"github.com/hupe1980/lsmvec/distance"
	"github.com/hupe1980/lsmvec/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRNGDeterministic(t *testing.T) {
	a := NewRNG(42).UniformVectors(3, 4)
	b := NewRNG(42).UniformVectors(3, 4)
	assert.Equal(t, a, b)
	assert.Equal(t, int64(42), NewRNG(42).Seed())
}

func TestUnitVector(t *testing.T) {
	v := NewRNG(1).UnitVector(8)
	assert.True(t, AlmostEqual(distance.Norm(v), 1, 1e-9))
}

func TestExactTopK(t *testing.T) {
	records := []model.Record{
		{ID: "a", Vector: []float64{0, 0}},
		{ID: "b", Vector: []float64{1, 0}},
		{ID: "c", Vector: []float64{0, 3}},
	}
	near := ExactTopK([]float64{0.9, 0}, records, 2, distance.MetricEuclidean)
	require.Len(t, near, 2)
	assert.Equal(t, []string{"b", "a"}, IDs(near))

	sim := ExactTopK([]float64{0, 1}, records, 1, distance.MetricCosine)
	assert.Equal(t, []string{"c"}, IDs(sim))
	assert.InDelta(t, 1.0, sim[0].Score, 1e-12)
}

func TestComputeRecall(t *testing.T) {
	assert.Equal(t, 0.5, ComputeRecall([]string{"a", "b"}, []string{"b", "z"}))
	assert.Equal(t, 1.0, ComputeRecall(nil, nil))
}
