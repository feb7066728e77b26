package kdtree

import (
	"fmt"
	"math"
	"testing"

	"github.com/hupe1980/lsmvec/distance"
	"github.com/hupe1980/lsmvec/model"
	"github.com/hupe1980/lsmvec/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildBalanced(t *testing.T) {
	records := testutil.NewRNG(1).Records(1023, 3)
	tree, err := Build(records)
	require.NoError(t, err)

	assert.Equal(t, 1023, tree.Len())
	assert.Equal(t, 1023, tree.Live())
	assert.Equal(t, 10, tree.Depth())
	assert.Equal(t, 3, tree.Dimension())
	assert.Zero(t, tree.StaleRatio())
}

func TestBuildDoesNotReorderInput(t *testing.T) {
	records := testutil.NewRNG(2).Records(50, 2)
	var ids []string
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	_, err := Build(records)
	require.NoError(t, err)
	for i, r := range records {
		assert.Equal(t, ids[i], r.ID)
	}
}

func TestBuildDimensionMismatch(t *testing.T) {
	_, err := Build([]model.Record{
		{ID: "a", Vector: []float64{1, 2}},
		{ID: "b", Vector: []float64{1}},
	})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestEuclideanMatchesBruteForce(t *testing.T) {
	rng := testutil.NewRNG(42)
	records := rng.Records(500, 4)

	tree, err := Build(records[:250])
	require.NoError(t, err)
	for _, rec := range records[250:] {
		require.NoError(t, tree.Insert(rec))
	}

	for i := 0; i < 25; i++ {
		q := make([]float64, 4)
		rng.FillUniform(q)
		for _, k := range []int{1, 5, 20} {
			want := testutil.ExactTopK(q, records, k, distance.MetricEuclidean)
			got := tree.KNNEuclidean(q, k)
			require.Len(t, got, k)
			assert.Equal(t, testutil.IDs(want), got, "query %d k=%d", i, k)
		}
	}
}

func TestCosineIsExhaustive(t *testing.T) {
	rng := testutil.NewRNG(7)
	records := rng.Records(300, 5)
	tree, err := Build(records)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		q := rng.UnitVector(5)
		want := testutil.ExactTopK(q, records, 10, distance.MetricCosine)
		got := tree.KNNCosine(q, 10)
		assert.Equal(t, testutil.IDs(want), got)
	}

	// k larger than the tree returns every live id.
	all := tree.KNNCosine(rng.UnitVector(5), 1000)
	assert.Len(t, all, 300)
}

func TestInsertIntoEmptyTree(t *testing.T) {
	tree := New(0)
	require.NoError(t, tree.Insert(model.Record{ID: "a", Vector: []float64{0, 1}}))
	require.NoError(t, tree.Insert(model.Record{ID: "b", Vector: []float64{1, 0}}))
	assert.Equal(t, 2, tree.Dimension())

	assert.ErrorIs(t, tree.Insert(model.Record{ID: "c", Vector: []float64{1}}), ErrDimensionMismatch)

	assert.Equal(t, []string{"a"}, tree.KNNEuclidean([]float64{0, 1}, 1))
	assert.Equal(t, []string{"b"}, tree.KNNCosine([]float64{1, 0}, 1))
}

func TestSkewedInsertDegradesDepth(t *testing.T) {
	tree := New(1)
	for i := 0; i < 100; i++ {
		require.NoError(t, tree.Insert(model.Record{ID: fmt.Sprint(i), Vector: []float64{float64(i)}}))
	}
	assert.Equal(t, 100, tree.Depth())
	assert.Equal(t, []string{"42"}, tree.KNNEuclidean([]float64{42.1}, 1))
}

func TestRemoveMarksStale(t *testing.T) {
	records := []model.Record{
		{ID: "a", Vector: []float64{0, 0}},
		{ID: "b", Vector: []float64{1, 1}},
		{ID: "c", Vector: []float64{5, 5}},
		{ID: "d", Vector: []float64{9, 9}},
	}
	tree, err := Build(records)
	require.NoError(t, err)

	tree.RemoveByID("a")
	tree.RemoveByID("missing")
	assert.Equal(t, 4, tree.Len())
	assert.Equal(t, 3, tree.Live())
	assert.InDelta(t, 0.25, tree.StaleRatio(), 1e-12)

	assert.Equal(t, []string{"b", "c"}, tree.KNNEuclidean([]float64{0, 0}, 2))
}

func TestReinsertSupersedes(t *testing.T) {
	tree, err := Build([]model.Record{
		{ID: "a", Vector: []float64{0, 0}},
		{ID: "b", Vector: []float64{5, 5}},
	})
	require.NoError(t, err)

	require.NoError(t, tree.Insert(model.Record{ID: "a", Vector: []float64{10, 10}}))
	assert.Equal(t, 3, tree.Len())
	assert.Equal(t, 2, tree.Live())

	assert.Equal(t, []string{"b", "a"}, tree.KNNEuclidean([]float64{0, 0}, 5))
}

func TestQueryGuards(t *testing.T) {
	tree, err := Build(nil)
	require.NoError(t, err)
	assert.Nil(t, tree.KNNEuclidean([]float64{1}, 3))

	tree, err = Build([]model.Record{{ID: "a", Vector: []float64{1, 2}}})
	require.NoError(t, err)
	assert.Nil(t, tree.KNNEuclidean([]float64{1}, 3))
	assert.Nil(t, tree.KNNCosine([]float64{1, 2}, 0))
}

func TestHugeK(t *testing.T) {
	tree, err := Build([]model.Record{
		{ID: "a", Vector: []float64{0, 1}},
		{ID: "b", Vector: []float64{1, 0}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, tree.KNNEuclidean([]float64{0, 1}, math.MaxInt))
	assert.Equal(t, []string{"a", "b"}, tree.KNNCosine([]float64{0, 1}, math.MaxInt))
}
