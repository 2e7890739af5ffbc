package embed

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder wraps StaticEmbedder and counts provider calls.
type countingEmbedder struct {
	*StaticEmbedder
	calls atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.StaticEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(int64(len(texts)))
	return c.StaticEmbedder.EmbedBatch(ctx, texts)
}

func TestStaticEmbedder_Deterministic(t *testing.T) {
	// Given: a static embedder
	e := NewStaticEmbedder(64)

	// When: I embed the same text twice and different text once
	a1, err := e.Embed(context.Background(), "penguins dive deep")
	require.NoError(t, err)
	a2, err := e.Embed(context.Background(), "penguins dive deep")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "submarines navigate depths")
	require.NoError(t, err)

	// Then: identical text embeds identically, different text differently
	assert.Equal(t, a1, a2)
	assert.NotEqual(t, a1, b)
	assert.Len(t, a1, 64)

	// And: vectors are unit length
	var norm float64
	for _, v := range a1 {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-5)
}

func TestCachedEmbedder_AvoidsRepeatCalls(t *testing.T) {
	// Given: a cached embedder over a counting inner embedder
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder(16)}
	c := NewCachedEmbedder(inner, 10)

	// When: I embed the same text twice
	v1, err := c.Embed(context.Background(), "repeated text")
	require.NoError(t, err)
	v2, err := c.Embed(context.Background(), "repeated text")
	require.NoError(t, err)

	// Then: the inner embedder ran once
	assert.Equal(t, v1, v2)
	assert.Equal(t, int64(1), inner.calls.Load())
}

func TestCachedEmbedder_BatchEmbedsOnlyMisses(t *testing.T) {
	// Given: a cache warmed with one of three texts
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder(16)}
	c := NewCachedEmbedder(inner, 10)
	_, err := c.Embed(context.Background(), "warm")
	require.NoError(t, err)
	require.Equal(t, int64(1), inner.calls.Load())

	// When: I batch-embed three texts including the warm one
	vecs, err := c.EmbedBatch(context.Background(), []string{"cold1", "warm", "cold2"})
	require.NoError(t, err)

	// Then: only the two misses hit the provider, order is preserved
	require.Len(t, vecs, 3)
	assert.Equal(t, int64(3), inner.calls.Load())
	direct, err := inner.StaticEmbedder.Embed(context.Background(), "warm")
	require.NoError(t, err)
	assert.Equal(t, direct, vecs[1])
}

func TestNew_ProviderSelection(t *testing.T) {
	// Static provider, no cache
	e, err := New(Config{Provider: "static", Dimensions: 8})
	require.NoError(t, err)
	assert.IsType(t, &StaticEmbedder{}, e)

	// Cache wrapping when a size is set
	e, err = New(Config{Provider: "static", Dimensions: 8, CacheSize: 5})
	require.NoError(t, err)
	assert.IsType(t, &CachedEmbedder{}, e)

	// Unknown provider rejected
	_, err = New(Config{Provider: "cohere"})
	assert.Error(t, err)
}
