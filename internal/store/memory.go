package store

import (
	"context"
	"sort"
	"sync"

	pqerr "github.com/corpusqa/corpusqa/internal/errors"
)

// MemoryStore is the exact-search vector index: brute-force cosine
// similarity over every stored vector, then MMR re-ranking. It is the
// default backend; the HNSW backend trades exactness for scale.
type MemoryStore struct {
	mu     sync.RWMutex
	config VectorStoreConfig

	// order preserves insertion order so equal-similarity candidates
	// rank deterministically.
	order []string
	vecs  map[string][]float32

	closed bool
}

// NewMemoryStore creates an exact in-memory vector store.
func NewMemoryStore(cfg VectorStoreConfig) *MemoryStore {
	return &MemoryStore{
		config: cfg,
		vecs:   make(map[string][]float32),
	}
}

// Add inserts vectors with their IDs, replacing existing entries.
// Vectors are normalized on insert so search reduces to dot products.
func (s *MemoryStore) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return pqerr.Newf(pqerr.ErrCodeInvalidInput,
			"ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return pqerr.New(pqerr.ErrCodeStoreClosed, "vector store is closed", nil)
	}

	for i, id := range ids {
		if s.config.Dimensions == 0 {
			s.config.Dimensions = len(vectors[i])
		}
		if len(vectors[i]) != s.config.Dimensions {
			return pqerr.Newf(pqerr.ErrCodeInvalidInput,
				"vector dimension mismatch: expected %d, got %d", s.config.Dimensions, len(vectors[i]))
		}
		if _, exists := s.vecs[id]; !exists {
			s.order = append(s.order, id)
		}
		s.vecs[id] = normalizeVector(vectors[i])
	}
	return nil
}

// Delete removes vectors by ID. Unknown IDs are ignored.
func (s *MemoryStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return pqerr.New(pqerr.ErrCodeStoreClosed, "vector store is closed", nil)
	}

	removed := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, exists := s.vecs[id]; exists {
			delete(s.vecs, id)
			removed[id] = true
		}
	}
	if len(removed) == 0 {
		return nil
	}
	kept := s.order[:0]
	for _, id := range s.order {
		if !removed[id] {
			kept = append(kept, id)
		}
	}
	s.order = kept
	return nil
}

// Clear empties the index.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = nil
	s.vecs = make(map[string][]float32)
}

// Search scores every stored vector against the query, keeps the FetchK
// most similar, and re-ranks them with MMR down to K results.
func (s *MemoryStore) Search(ctx context.Context, query []float32, opts SearchOptions) ([]*Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, pqerr.New(pqerr.ErrCodeStoreClosed, "vector store is closed", nil)
	}
	if opts.K <= 0 || len(s.vecs) == 0 {
		return []*Match{}, nil
	}
	if s.config.Dimensions != 0 && len(query) != s.config.Dimensions {
		return nil, pqerr.Newf(pqerr.ErrCodeInvalidInput,
			"query dimension mismatch: expected %d, got %d", s.config.Dimensions, len(query))
	}

	fetchK := opts.FetchK
	if fetchK <= 0 {
		fetchK = 2 * opts.K
	}
	if fetchK < opts.K {
		fetchK = opts.K
	}

	q := normalizeVector(query)
	cands := make([]candidate, 0, len(s.order))
	for _, id := range s.order {
		vec := s.vecs[id]
		cands = append(cands, candidate{id: id, vec: vec, sim: dot(q, vec)})
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].sim > cands[j].sim })
	if len(cands) > fetchK {
		cands = cands[:fetchK]
	}

	return mmrSelect(cands, opts.K, opts.Lambda), nil
}

// Count returns the number of stored vectors.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vecs)
}

// Close releases resources.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.vecs = nil
	s.order = nil
	return nil
}

var _ VectorStore = (*MemoryStore)(nil)
