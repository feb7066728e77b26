// Package distance provides the vector arithmetic used by lsmvec.
//
// # Supported Metrics
//
//   - MetricCosine: cosine similarity (higher is better)
//   - MetricEuclidean: euclidean distance (lower is better)
//
// # Usage
//
//	sim := distance.Cosine(a, b)
//	d := distance.Euclidean(a, b)
//
// All functions assume equal-length inputs; use CheckDimension to validate first.
package distance
