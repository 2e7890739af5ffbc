package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	pqerr "github.com/corpusqa/corpusqa/internal/errors"
)

// HNSWStore implements VectorStore on the coder/hnsw pure Go graph.
// Approximate nearest-neighbor search supplies the candidate pool; the
// MMR re-rank runs over retained copies of the stored vectors.
type HNSWStore struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorStoreConfig

	// ID mapping (string <-> uint64 graph key).
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	// vecs retains normalized vectors per ID for the MMR diversity term
	// and for persistence.
	vecs map[string][]float32

	closed bool
}

// hnswMetadata stores ID mappings and vectors for persistence.
type hnswMetadata struct {
	IDMap   map[string]uint64
	NextKey uint64
	Config  VectorStoreConfig
	Vecs    map[string][]float32
}

// NewHNSWStore creates an HNSW-backed vector store.
func NewHNSWStore(cfg VectorStoreConfig) (*HNSWStore, error) {
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 64
	}

	return &HNSWStore{
		graph:  newGraph(cfg),
		config: cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
		vecs:   make(map[string][]float32),
	}, nil
}

func newGraph(cfg VectorStoreConfig) *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = cfg.M
	g.EfSearch = cfg.EfSearch
	g.Ml = 0.25
	return g
}

// Add inserts vectors with their IDs. An existing ID is replaced through
// lazy deletion: the old graph node is orphaned rather than removed,
// because coder/hnsw breaks when the last node is deleted.
func (s *HNSWStore) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) == 0 {
		return nil
	}
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

		if existingKey, exists := s.idMap[id]; exists {
			delete(s.keyMap, existingKey)
			delete(s.idMap, id)
		}

		key := s.nextKey
		s.nextKey++

		vec := normalizeVector(vectors[i])
		s.graph.Add(hnsw.MakeNode(key, vec))

		s.idMap[id] = key
		s.keyMap[key] = id
		s.vecs[id] = vec
	}
	return nil
}

// Delete removes vectors by ID via lazy deletion: mappings and retained
// vectors go away, the graph node stays but never surfaces in results.
func (s *HNSWStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return pqerr.New(pqerr.ErrCodeStoreClosed, "vector store is closed", nil)
	}

	for _, id := range ids {
		if key, exists := s.idMap[id]; exists {
			delete(s.keyMap, key)
			delete(s.idMap, id)
			delete(s.vecs, id)
		}
	}
	return nil
}

// Clear empties the index, replacing the graph outright.
func (s *HNSWStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.graph = newGraph(s.config)
	s.idMap = make(map[string]uint64)
	s.keyMap = make(map[uint64]string)
	s.vecs = make(map[string][]float32)
	s.nextKey = 0
}

// Search asks the graph for the candidate pool, filters lazy-deleted
// orphans, and MMR re-ranks down to K. The graph is over-queried by the
// orphan count so deletions cannot starve the pool.
func (s *HNSWStore) Search(ctx context.Context, query []float32, opts SearchOptions) ([]*Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, pqerr.New(pqerr.ErrCodeStoreClosed, "vector store is closed", nil)
	}
	if opts.K <= 0 || len(s.idMap) == 0 {
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

	orphans := s.graph.Len() - len(s.idMap)
	q := normalizeVector(query)
	nodes := s.graph.Search(q, fetchK+orphans)

	cands := make([]candidate, 0, len(nodes))
	for _, node := range nodes {
		id, exists := s.keyMap[node.Key]
		if !exists {
			continue
		}
		cands = append(cands, candidate{id: id, vec: s.vecs[id], sim: dot(q, s.vecs[id])})
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].sim > cands[j].sim })
	if len(cands) > fetchK {
		cands = cands[:fetchK]
	}

	return mmrSelect(cands, opts.K, opts.Lambda), nil
}

// Count returns the number of live vectors.
func (s *HNSWStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}
	return len(s.idMap)
}

// Save persists the graph and metadata to disk atomically.
func (s *HNSWStore) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return pqerr.New(pqerr.ErrCodeStoreClosed, "vector store is closed", nil)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}

	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}
	if err := s.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmp)
		return pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}

	return s.saveMetadata(path + ".meta")
}

func (s *HNSWStore) saveMetadata(path string) error {
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}

	meta := hnswMetadata{
		IDMap:   s.idMap,
		NextKey: s.nextKey,
		Config:  s.config,
		Vecs:    s.vecs,
	}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		file.Close()
		os.Remove(tmp)
		return pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}
	return os.Rename(tmp, path)
}

// Load restores the graph and metadata written by Save.
func (s *HNSWStore) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return pqerr.New(pqerr.ErrCodeStoreClosed, "vector store is closed", nil)
	}

	if err := s.loadMetadata(path + ".meta"); err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}
	defer file.Close()

	// coder/hnsw Import requires an io.ByteReader.
	if err := s.graph.Import(bufio.NewReader(file)); err != nil {
		return pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}
	return nil
}

func (s *HNSWStore) loadMetadata(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}
	defer file.Close()

	var meta hnswMetadata
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}

	s.idMap = meta.IDMap
	s.nextKey = meta.NextKey
	s.config = meta.Config
	s.vecs = meta.Vecs
	if s.vecs == nil {
		s.vecs = make(map[string][]float32)
	}
	s.keyMap = make(map[uint64]string, len(s.idMap))
	for id, key := range s.idMap {
		s.keyMap[key] = id
	}
	return nil
}

// Close releases resources.
func (s *HNSWStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.graph = nil
	s.vecs = nil
	return nil
}

var _ VectorStore = (*HNSWStore)(nil)
