package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	// Operating points the pipeline depends on
	assert.Equal(t, 3000, cfg.Chunking.ChunkSize)
	assert.Equal(t, 100, cfg.Chunking.Overlap)
	assert.Equal(t, 10, cfg.Retrieval.EvidenceK)
	assert.Equal(t, 1.0, cfg.Retrieval.MMRLambda)
	assert.Equal(t, 5, cfg.Answer.MaxSources)
	assert.Equal(t, 4, cfg.Answer.MaxConcurrent)
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	// When: I load a path that does not exist
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	// Then: defaults come back without error
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Chunking.ChunkSize, cfg.Chunking.ChunkSize)
}

func TestLoad_FileValuesLayerOverDefaults(t *testing.T) {
	// Given: a config file overriding two fields
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"chunking:\n  chunk_size: 1500\nretrieval:\n  evidence_k: 20\n"), 0o644))

	// When: I load it
	cfg, err := Load(path)
	require.NoError(t, err)

	// Then: overridden fields win, the rest stay default
	assert.Equal(t, 1500, cfg.Chunking.ChunkSize)
	assert.Equal(t, 20, cfg.Retrieval.EvidenceK)
	assert.Equal(t, 100, cfg.Chunking.Overlap)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	// Given: a file value and an env var for the same field
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("answer:\n  max_concurrent: 2\n"), 0o644))
	t.Setenv("CORPUSQA_MAX_CONCURRENT", "8")

	// When: I load
	cfg, err := Load(path)
	require.NoError(t, err)

	// Then: the env var wins
	assert.Equal(t, 8, cfg.Answer.MaxConcurrent)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"overlap equal to chunk size", func(c *Config) { c.Chunking.Overlap = c.Chunking.ChunkSize }},
		{"negative overlap", func(c *Config) { c.Chunking.Overlap = -1 }},
		{"zero chunk size", func(c *Config) { c.Chunking.ChunkSize = 0 }},
		{"lambda above one", func(c *Config) { c.Retrieval.MMRLambda = 1.5 }},
		{"zero evidence k", func(c *Config) { c.Retrieval.EvidenceK = 0 }},
		{"zero max sources", func(c *Config) { c.Answer.MaxSources = 0 }},
		{"zero max concurrent", func(c *Config) { c.Answer.MaxConcurrent = 0 }},
		{"unknown backend", func(c *Config) { c.Retrieval.Backend = "faiss" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	// Given: a modified config saved to disk
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := DefaultConfig()
	cfg.Retrieval.Backend = "hnsw"
	cfg.Retrieval.MMRLambda = 0.7
	require.NoError(t, Save(cfg, path))

	// When: I load it back
	loaded, err := Load(path)
	require.NoError(t, err)

	// Then: the values survive
	assert.Equal(t, "hnsw", loaded.Retrieval.Backend)
	assert.Equal(t, 0.7, loaded.Retrieval.MMRLambda)
}
