// Package store provides the vector indices behind retrieval: an exact
// in-memory index and an HNSW-backed index, both searched with maximal
// marginal relevance (MMR) re-ranking.
package store

import (
	"context"
	"math"
)

// Match is a single search result.
type Match struct {
	ID string
	// Score is the cosine similarity between the query and the match.
	Score float32
}

// SearchOptions configures an MMR search.
type SearchOptions struct {
	// K is the number of results to return.
	K int
	// FetchK is the size of the raw-similarity candidate pool MMR selects
	// from. Zero defaults to 2*K.
	FetchK int
	// Lambda blends query similarity against inter-result diversity:
	// 1.0 is pure similarity ranking, lower values penalize candidates
	// similar to already-selected results.
	Lambda float64
}

// VectorStore stores embeddings and answers similarity+diversity searches.
type VectorStore interface {
	// Add inserts vectors with their IDs. An existing ID is replaced.
	Add(ctx context.Context, ids []string, vectors [][]float32) error

	// Delete removes vectors by ID. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error

	// Clear empties the index.
	Clear()

	// Search returns up to opts.K items ranked by MMR.
	Search(ctx context.Context, query []float32, opts SearchOptions) ([]*Match, error)

	// Count returns the number of stored vectors.
	Count() int

	// Close releases resources.
	Close() error
}

// VectorStoreConfig configures a vector store.
type VectorStoreConfig struct {
	// Dimensions is the vector dimension; 0 adopts the first added vector's.
	Dimensions int

	// M is the HNSW max connections per layer (HNSW backend only).
	M int

	// EfSearch is the HNSW query-time search width (HNSW backend only).
	EfSearch int
}

// DefaultVectorStoreConfig returns sensible defaults.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		M:          16,
		EfSearch:   64,
	}
}

// normalizeVector normalizes a vector to unit length, returning a copy.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	out := make([]float32, len(v))
	copy(out, v)
	if sumSquares == 0 {
		return out
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range out {
		out[i] *= inv
	}
	return out
}

// dot computes the inner product. For unit vectors this is the cosine
// similarity.
func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// candidate is an MMR candidate: a stored vector with its query similarity.
type candidate struct {
	id  string
	vec []float32
	sim float32
}

// mmrSelect greedily picks up to k candidates maximizing
//
//	lambda*sim(query, c) - (1-lambda)*max_sim(c, selected)
//
// Candidates must be sorted by sim descending; with lambda = 1.0 the
// diversity penalty vanishes and selection degenerates to that order.
func mmrSelect(cands []candidate, k int, lambda float64) []*Match {
	if k > len(cands) {
		k = len(cands)
	}
	selected := make([]*Match, 0, k)
	selectedVecs := make([][]float32, 0, k)
	used := make([]bool, len(cands))

	for len(selected) < k {
		bestIdx := -1
		bestScore := math.Inf(-1)
		for i, c := range cands {
			if used[i] {
				continue
			}
			// No penalty on the first pick; afterwards the true maximum,
			// which can be negative for anti-correlated candidates.
			maxSim := 0.0
			if len(selectedVecs) > 0 {
				maxSim = math.Inf(-1)
			}
			for _, sv := range selectedVecs {
				if s := float64(dot(c.vec, sv)); s > maxSim {
					maxSim = s
				}
			}
			score := lambda*float64(c.sim) - (1-lambda)*maxSim
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			break
		}
		used[bestIdx] = true
		selected = append(selected, &Match{ID: cands[bestIdx].id, Score: cands[bestIdx].sim})
		selectedVecs = append(selectedVecs, cands[bestIdx].vec)
	}
	return selected
}
