package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"slices"
	"sync"

	"github.com/hupe1980/lsmvec/distance"
	"github.com/hupe1980/lsmvec/model"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// FillUniform fills dst with random values in range [0, 1).
// Locks only once per call (preferred over calling Float64 in a loop).
func (r *RNG) FillUniform(dst []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float64()
	}
}

// FillGaussian fills dst with standard normal values.
func (r *RNG) FillGaussian(dst []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.NormFloat64()
	}
}

// UniformVectors returns num vectors with components in [0, 1).
func (r *RNG) UniformVectors(num, dimensions int) [][]float64 {
	out := make([][]float64, num)
	for i := range out {
		out[i] = make([]float64, dimensions)
		r.FillUniform(out[i])
	}
	return out
}

// UnitVector returns a random vector of euclidean length 1.
func (r *RNG) UnitVector(dimensions int) []float64 {
	v := make([]float64, dimensions)
	for {
		r.FillGaussian(v)
		n := distance.Norm(v)
		if n > 1e-12 {
			for i := range v {
				v[i] /= n
			}
			return v
		}
	}
}

// Records returns num records with uniform vectors and ids "rec-00000"...
func (r *RNG) Records(num, dimensions int) []model.Record {
	out := make([]model.Record, num)
	for i, v := range r.UniformVectors(num, dimensions) {
		out[i] = model.Record{
			ID:       fmt.Sprintf("rec-%05d", i),
			Vector:   v,
			Metadata: model.Metadata{"n": fmt.Sprint(i)},
		}
	}
	return out
}

// Result is an id with its exact score under some metric.
type Result struct {
	ID    string
	Score float64
}

// ExactTopK computes the exact k best records for q by brute force:
// highest similarity first for cosine, lowest distance first for euclidean.
// Ties are broken by id.
func ExactTopK(q []float64, records []model.Record, k int, metric distance.Metric) []Result {
	all := make([]Result, 0, len(records))
	for _, rec := range records {
		var s float64
		switch metric {
		case distance.MetricCosine:
			s = distance.Cosine(q, rec.Vector)
		default:
			s = distance.Euclidean(q, rec.Vector)
		}
		all = append(all, Result{ID: rec.ID, Score: s})
	}
	slices.SortFunc(all, func(a, b Result) int {
		if a.Score != b.Score {
			if (metric == distance.MetricCosine) == (a.Score > b.Score) {
				return -1
			}
			return 1
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	if k < len(all) {
		all = all[:k]
	}
	return all
}

// IDs extracts the ids of results in order.
func IDs(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

// ComputeRecall returns the fraction of ground-truth ids found in approximate.
func ComputeRecall(groundTruth, approximate []string) float64 {
	if len(groundTruth) == 0 {
		return 1
	}
	found := make(map[string]struct{}, len(approximate))
	for _, id := range approximate {
		found[id] = struct{}{}
	}
	hits := 0
	for _, id := range groundTruth {
		if _, ok := found[id]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(groundTruth))
}

// AlmostEqual reports whether a and b differ by at most eps.
func AlmostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}
