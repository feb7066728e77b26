// Package testutil provides testing utilities for lsmvec.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random vectors and records,
// computing exact nearest neighbors, and verifying search recall.
//
// # Random Vector Generation
//
//	rng := testutil.NewRNG(seed)
//	vec := make([]float64, 16)
//	rng.FillUniform(vec)      // uniform [0, 1)
//	rng.FillGaussian(vec)     // standard normal
//
// # Exact Search (Ground Truth)
//
//	ids := testutil.ExactTopK(query, records, k, distance.MetricEuclidean)
//
// # Recall Verification
//
//	recall := testutil.ComputeRecall(exactIDs, approxIDs)
package testutil
