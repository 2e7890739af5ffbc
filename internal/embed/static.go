package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// StaticEmbedder produces deterministic embeddings by hashing word
// tokens into a fixed-size vector. No network, no model: identical text
// always embeds identically, and texts sharing vocabulary land near each
// other. It backs tests and offline smoke runs, not production quality
// retrieval.
type StaticEmbedder struct {
	dims int
}

var _ Embedder = (*StaticEmbedder)(nil)

// NewStaticEmbedder creates a static embedder with the given dimension,
// defaulting to DefaultDimensions.
func NewStaticEmbedder(dims int) *StaticEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &StaticEmbedder{dims: dims}
}

// Embed hashes each lowercase token into two vector slots and normalizes
// the result to unit length.
func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dims)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		vec[sum%uint64(e.dims)] += 1.0
		vec[(sum>>32)%uint64(e.dims)] += 0.5
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1.0 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	} else {
		// Empty text maps to a fixed unit vector.
		vec[0] = 1.0
	}
	return vec, nil
}

// EmbedBatch embeds each text independently.
func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		vecs[i] = v
	}
	return vecs, nil
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the model identifier.
func (e *StaticEmbedder) ModelName() string {
	return "static-hash"
}

// Close is a no-op.
func (e *StaticEmbedder) Close() error {
	return nil
}
