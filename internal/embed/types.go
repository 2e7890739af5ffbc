// Package embed generates text embeddings through pluggable providers.
// Ollama and OpenAI back production use; a deterministic static embedder
// keeps tests and offline runs hermetic. An LRU cache wraps any of them.
package embed

import (
	"context"
	"time"
)

// Defaults for provider configuration.
const (
	DefaultOllamaHost  = "http://localhost:11434"
	DefaultOllamaModel = "nomic-embed-text"
	DefaultOpenAIHost  = "https://api.openai.com/v1"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultTimeout     = 60 * time.Second
	DefaultDimensions  = 768
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, preserving order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier, used in cache keys.
	ModelName() string

	// Close releases resources.
	Close() error
}

// Config configures an embedding provider.
type Config struct {
	// Provider selects the backend: "ollama", "openai", or "static".
	Provider string
	Model    string
	// Host is the provider base URL.
	Host string
	// APIKey authenticates OpenAI requests.
	APIKey string
	// Dimensions is 0 for auto-detection from the first embedding.
	Dimensions int
	// CacheSize is the LRU embedding cache size; 0 disables caching.
	CacheSize int
	Timeout   time.Duration
}
