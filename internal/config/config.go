// Package config loads and validates the corpusqa configuration.
// Configuration is YAML on disk with environment variable overrides;
// every field has a default so a missing file is not an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	pqerr "github.com/corpusqa/corpusqa/internal/errors"
)

// Config represents the complete corpusqa configuration.
type Config struct {
	Version    int              `yaml:"version"`
	Paths      PathsConfig      `yaml:"paths"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Answer     AnswerConfig     `yaml:"answer"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	LLM        LLMConfig        `yaml:"llm"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// PathsConfig configures where on-disk state lives.
type PathsConfig struct {
	// IndexDir holds the SQLite snapshot and saved vector indices.
	IndexDir string `yaml:"index_dir"`
}

// ChunkingConfig configures the document chunker.
type ChunkingConfig struct {
	// ChunkSize is the target chunk size in characters.
	ChunkSize int `yaml:"chunk_size"`
	// Overlap is the number of characters shared between adjacent chunks.
	// Must be strictly smaller than ChunkSize.
	Overlap int `yaml:"overlap"`
	// DisableCheck skips the text-likeness validation on ingestion.
	DisableCheck bool `yaml:"disable_check"`
}

// RetrievalConfig configures vector retrieval.
type RetrievalConfig struct {
	// Backend selects the vector index implementation: "memory" or "hnsw".
	Backend string `yaml:"backend"`
	// EvidenceK is the number of chunks to retrieve per question.
	EvidenceK int `yaml:"evidence_k"`
	// MMRLambda balances query similarity against result diversity.
	// 1.0 is pure similarity ranking; lower values favor diversity.
	MMRLambda float64 `yaml:"mmr_lambda"`
}

// AnswerConfig configures evidence scoring and answer synthesis.
type AnswerConfig struct {
	// MaxSources is the maximum number of evidence pieces in the context block.
	MaxSources int `yaml:"max_sources"`
	// MaxConcurrent bounds in-flight scoring calls during the map step.
	MaxConcurrent int `yaml:"max_concurrent"`
	// SummaryLength is the length hint passed to the scoring call.
	SummaryLength string `yaml:"summary_length"`
	// AnswerLength is the length hint passed to the QA call.
	AnswerLength string `yaml:"answer_length"`
	// DetailedCitations appends the full citation under each evidence line.
	DetailedCitations bool `yaml:"detailed_citations"`
	// PrePrompt optionally runs before synthesis; its output is added to
	// the context as extra background. Placeholder: {question}.
	PrePrompt string `yaml:"pre_prompt"`
	// PostPrompt optionally rewrites the synthesized answer.
	// Placeholders: {question}, {answer}.
	PostPrompt string `yaml:"post_prompt"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the backend: "ollama", "openai", or "static".
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	// Host is the provider endpoint (Ollama) or base URL (OpenAI).
	Host string `yaml:"host"`
	// Dimensions is 0 for auto-detection from the first embedding.
	Dimensions int `yaml:"dimensions"`
	// CacheSize is the number of embeddings kept in the LRU cache.
	CacheSize int           `yaml:"cache_size"`
	Timeout   time.Duration `yaml:"timeout"`
}

// LLMConfig configures the chat/completion provider.
type LLMConfig struct {
	// Provider selects the backend: "ollama" or "openai".
	Provider string `yaml:"provider"`
	// Model answers questions; SummaryModel scores evidence (defaults to Model).
	Model        string        `yaml:"model"`
	SummaryModel string        `yaml:"summary_model"`
	Host         string        `yaml:"host"`
	Timeout      time.Duration `yaml:"timeout"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the standard operating points: 3000-char chunks
// with 100-char overlap, 10 evidence candidates, 5 answer sources, 4
// concurrent scoring calls, pure-similarity MMR.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			IndexDir: filepath.Join(home, ".corpusqa"),
		},
		Chunking: ChunkingConfig{
			ChunkSize: 3000,
			Overlap:   100,
		},
		Retrieval: RetrievalConfig{
			Backend:   "memory",
			EvidenceK: 10,
			MMRLambda: 1.0,
		},
		Answer: AnswerConfig{
			MaxSources:        5,
			MaxConcurrent:     4,
			SummaryLength:     "about 100 words",
			AnswerLength:      "about 200 words, but can be longer",
			DetailedCitations: true,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "ollama",
			Model:     "nomic-embed-text",
			Host:      "http://localhost:11434",
			CacheSize: 1000,
			Timeout:   60 * time.Second,
		},
		LLM: LLMConfig{
			Provider: "ollama",
			Model:    "llama3.1",
			Host:     "http://localhost:11434",
			Timeout:  120 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from path, layering file values over defaults
// and environment overrides over both. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to defaults
		case err != nil:
			return nil, pqerr.ConfigError(fmt.Sprintf("read config %s", path), err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, pqerr.ConfigError(fmt.Sprintf("parse config %s", path), err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path as YAML using an atomic rename.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return pqerr.ConfigError("marshal config", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return pqerr.ConfigError("create config directory", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return pqerr.ConfigError("write config", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return pqerr.ConfigError("rename config", err)
	}
	return nil
}

// applyEnvOverrides applies CORPUSQA_* environment variables. Env vars
// take precedence over file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CORPUSQA_INDEX_DIR"); v != "" {
		cfg.Paths.IndexDir = v
	}
	if v := os.Getenv("CORPUSQA_EMBED_PROVIDER"); v != "" {
		cfg.Embeddings.Provider = v
	}
	if v := os.Getenv("CORPUSQA_EMBED_MODEL"); v != "" {
		cfg.Embeddings.Model = v
	}
	if v := os.Getenv("CORPUSQA_EMBED_HOST"); v != "" {
		cfg.Embeddings.Host = v
	}
	if v := os.Getenv("CORPUSQA_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("CORPUSQA_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("CORPUSQA_LLM_HOST"); v != "" {
		cfg.LLM.Host = v
	}
	if v := os.Getenv("CORPUSQA_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Answer.MaxConcurrent = n
		}
	}
	if v := os.Getenv("CORPUSQA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks invariants the pipeline depends on.
func (c *Config) Validate() error {
	if c.Chunking.ChunkSize <= 0 {
		return pqerr.Newf(pqerr.ErrCodeConfigInvalid, "chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.ChunkSize {
		return pqerr.Newf(pqerr.ErrCodeConfigInvalid,
			"overlap must be in [0, chunk_size), got overlap=%d chunk_size=%d",
			c.Chunking.Overlap, c.Chunking.ChunkSize)
	}
	if c.Retrieval.MMRLambda < 0 || c.Retrieval.MMRLambda > 1 {
		return pqerr.Newf(pqerr.ErrCodeConfigInvalid, "mmr_lambda must be in [0,1], got %g", c.Retrieval.MMRLambda)
	}
	if c.Retrieval.EvidenceK <= 0 {
		return pqerr.Newf(pqerr.ErrCodeConfigInvalid, "evidence_k must be positive, got %d", c.Retrieval.EvidenceK)
	}
	if c.Answer.MaxSources <= 0 {
		return pqerr.Newf(pqerr.ErrCodeConfigInvalid, "max_sources must be positive, got %d", c.Answer.MaxSources)
	}
	if c.Answer.MaxConcurrent <= 0 {
		return pqerr.Newf(pqerr.ErrCodeConfigInvalid, "max_concurrent must be positive, got %d", c.Answer.MaxConcurrent)
	}
	switch c.Retrieval.Backend {
	case "memory", "hnsw":
	default:
		return pqerr.Newf(pqerr.ErrCodeConfigInvalid, "unknown retrieval backend %q", c.Retrieval.Backend)
	}
	return nil
}
