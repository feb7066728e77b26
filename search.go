package lsmvec

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/hupe1980/lsmvec/distance"
	"github.com/hupe1980/lsmvec/model"
)

// SimilarResult is a cosine search hit. Higher Score is more similar.
type SimilarResult struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata model.Metadata `json:"metadata,omitempty"`
}

// NearbyResult is a euclidean search hit. Lower Distance is closer.
type NearbyResult struct {
	ID       string         `json:"id"`
	Distance float64        `json:"distance"`
	Metadata model.Metadata `json:"metadata,omitempty"`
}

// SearchSimilar returns up to k records most similar to query by cosine
// similarity, most similar first.
func (s *Store) SearchSimilar(ctx context.Context, query []float64, k int) (results []SimilarResult, err error) {
	start := time.Now()
	defer func() { s.metrics.RecordSearch(k, time.Since(start), err) }()

	hits, err := s.search(ctx, query, k, distance.MetricCosine)
	if err != nil {
		return nil, err
	}
	results = make([]SimilarResult, len(hits))
	for i, h := range hits {
		results[i] = SimilarResult{ID: h.rec.ID, Score: h.score, Metadata: h.rec.Metadata.Clone()}
	}
	return results, nil
}

// SearchNearby returns up to k records nearest to query by euclidean
// distance, nearest first.
func (s *Store) SearchNearby(ctx context.Context, query []float64, k int) (results []NearbyResult, err error) {
	start := time.Now()
	defer func() { s.metrics.RecordSearch(k, time.Since(start), err) }()

	hits, err := s.search(ctx, query, k, distance.MetricEuclidean)
	if err != nil {
		return nil, err
	}
	results = make([]NearbyResult, len(hits))
	for i, h := range hits {
		results[i] = NearbyResult{ID: h.rec.ID, Distance: h.score, Metadata: h.rec.Metadata.Clone()}
	}
	return results, nil
}

type hit struct {
	rec   model.Record
	score float64
}

func (s *Store) search(ctx context.Context, query []float64, k int, metric distance.Metric) ([]hit, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if err := distance.Validate(query); err != nil {
		return nil, translateError(err)
	}

	if err := s.acquireRead(ctx); err != nil {
		return nil, err
	}
	defer s.gate.ReleaseRead()

	if s.closed {
		return nil, ErrClosed
	}
	if err := s.checkDimensionLocked(len(query)); err != nil {
		return nil, err
	}
	if len(s.mirror) == 0 {
		return []hit{}, nil
	}

	hits := s.candidatesLocked(query, k, metric)

	higherIsBetter := metric == distance.MetricCosine
	slices.SortFunc(hits, func(a, b hit) int {
		c := cmp.Compare(a.score, b.score)
		if higherIsBetter {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.rec.ID, b.rec.ID)
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	s.logger.WithK(k).Debug("Search", "metric", metric.String(), "results", len(hits))
	return hits, nil
}

// overfetch returns k*factor capped at limit without overflowing.
func overfetch(k, factor, limit int) int {
	factor = max(factor, 1)
	if k > limit/factor {
		return limit
	}
	return min(k*factor, limit)
}

// candidatesLocked gathers candidate ids from the index, drops duplicates
// and ids no longer live, and scores the rest exactly against the mirror.
func (s *Store) candidatesLocked(query []float64, k int, metric distance.Metric) []hit {
	var ids []string
	if s.index != nil && s.index.Dimension() == len(query) {
		n := overfetch(min(k, len(s.mirror)), s.opts.overfetchFactor, s.index.Len())
		if metric == distance.MetricCosine {
			ids = s.index.KNNCosine(query, n)
		} else {
			ids = s.index.KNNEuclidean(query, n)
		}
	} else {
		ids = make([]string, 0, len(s.mirror))
		for id := range s.mirror {
			ids = append(ids, id)
		}
	}

	seen := make(map[string]struct{}, len(ids))
	hits := make([]hit, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		rec, ok := s.mirror[id]
		if !ok {
			continue
		}
		var score float64
		if metric == distance.MetricCosine {
			score = distance.Cosine(query, rec.Vector)
		} else {
			score = distance.Euclidean(query, rec.Vector)
		}
		hits = append(hits, hit{rec: rec, score: score})
	}
	return hits
}
