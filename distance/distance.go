package distance

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmptyVector is returned for zero-length vectors.
	ErrEmptyVector = errors.New("empty vector")

	// ErrNonFinite is returned when a vector contains NaN or Inf.
	ErrNonFinite = errors.New("vector contains non-finite value")
)

// Metric represents the distance metric used for vector comparison.
type Metric int

const (
	MetricCosine Metric = iota
	MetricEuclidean
)

func (m Metric) String() string {
	switch m {
	case MetricCosine:
		return "cosine"
	case MetricEuclidean:
		return "euclidean"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParseMetric returns the metric for its String form.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "cosine":
		return MetricCosine, nil
	case "euclidean", "l2":
		return MetricEuclidean, nil
	default:
		return 0, fmt.Errorf("unsupported metric %q", s)
	}
}

// Dot calculates the dot product of two vectors.
func Dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Norm returns the L2 norm of v.
func Norm(v []float64) float64 {
	return math.Sqrt(Dot(v, v))
}

// Cosine returns the cosine similarity of a and b.
// It returns 0 when either vector has zero norm.
func Cosine(a, b []float64) float64 {
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return Dot(a, b) / (na * nb)
}

// SquaredEuclidean returns the squared euclidean distance between a and b.
func SquaredEuclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Euclidean returns the euclidean distance between a and b.
func Euclidean(a, b []float64) float64 {
	return math.Sqrt(SquaredEuclidean(a, b))
}

// CheckDimension reports whether a and b have the same length.
func CheckDimension(a, b []float64) bool {
	return len(a) == len(b)
}

// Validate rejects empty vectors and vectors with NaN or Inf components.
func Validate(v []float64) error {
	if len(v) == 0 {
		return ErrEmptyVector
	}
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w at index %d", ErrNonFinite, i)
		}
	}
	return nil
}
