package store

import (
	pqerr "github.com/corpusqa/corpusqa/internal/errors"
)

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendHNSW   = "hnsw"
)

// New creates a vector store for the named backend.
func New(backend string, cfg VectorStoreConfig) (VectorStore, error) {
	switch backend {
	case BackendMemory, "":
		return NewMemoryStore(cfg), nil
	case BackendHNSW:
		return NewHNSWStore(cfg)
	default:
		return nil, pqerr.Newf(pqerr.ErrCodeConfigInvalid, "unknown vector store backend %q", backend)
	}
}
