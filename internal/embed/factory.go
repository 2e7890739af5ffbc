package embed

import (
	pqerr "github.com/corpusqa/corpusqa/internal/errors"
)

// New creates an embedder for the configured provider, wrapped in the
// LRU cache when a cache size is set.
func New(cfg Config) (Embedder, error) {
	var inner Embedder
	switch cfg.Provider {
	case "ollama", "":
		inner = NewOllamaEmbedder(cfg)
	case "openai":
		inner = NewOpenAIEmbedder(cfg)
	case "static":
		inner = NewStaticEmbedder(cfg.Dimensions)
	default:
		return nil, pqerr.Newf(pqerr.ErrCodeConfigInvalid, "unknown embedding provider %q", cfg.Provider)
	}

	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(inner, cfg.CacheSize), nil
	}
	return inner, nil
}
