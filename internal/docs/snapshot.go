package docs

import (
	"context"
	"sort"
)

// Snapshot is the persistable state of a Store: documents, chunks with
// their embeddings, and the tombstone set. Vector indices are rebuilt
// from the stored embeddings on restore.
type Snapshot struct {
	Documents  []*Document
	Chunks     []*Chunk
	Tombstones []string
}

// Snapshot captures the store's current state.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		Documents:  make([]*Document, 0, len(s.docs)),
		Chunks:     make([]*Chunk, len(s.chunks)),
		Tombstones: make([]string, 0, len(s.tombstones)),
	}
	for _, d := range s.docs {
		snap.Documents = append(snap.Documents, d)
	}
	sort.Slice(snap.Documents, func(i, j int) bool { return snap.Documents[i].Key < snap.Documents[j].Key })
	copy(snap.Chunks, s.chunks)
	for key := range s.tombstones {
		snap.Tombstones = append(snap.Tombstones, key)
	}
	sort.Strings(snap.Tombstones)
	return snap
}

// Restore replaces the store's state with a snapshot and rebuilds the
// vector indices from the stored embeddings. No provider calls happen.
func (s *Store) Restore(ctx context.Context, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.textIndex.Clear()
	if s.docIndex != nil {
		s.docIndex.Clear()
	}

	s.docs = make(map[string]*Document, len(snap.Documents))
	s.docnames = make(map[string]bool, len(snap.Documents))
	s.chunks = make([]*Chunk, 0, len(snap.Chunks))
	s.chunkByID = make(map[string]*Chunk, len(snap.Chunks))
	s.tombstones = make(map[string]bool, len(snap.Tombstones))

	for _, d := range snap.Documents {
		s.docs[d.Key] = d
		s.docnames[d.Name] = true
		if s.docIndex != nil && len(d.Embedding) > 0 {
			if err := s.docIndex.Add(ctx, []string{d.Key}, [][]float32{d.Embedding}); err != nil {
				return err
			}
		}
	}

	ids := make([]string, len(snap.Chunks))
	vecs := make([][]float32, len(snap.Chunks))
	for i, c := range snap.Chunks {
		s.chunks = append(s.chunks, c)
		s.chunkByID[c.ID] = c
		ids[i] = c.ID
		vecs[i] = c.Embedding
	}
	if len(ids) > 0 {
		if err := s.textIndex.Add(ctx, ids, vecs); err != nil {
			return err
		}
	}

	for _, key := range snap.Tombstones {
		s.tombstones[key] = true
	}
	return nil
}
