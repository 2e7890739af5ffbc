package llm

import (
	pqerr "github.com/corpusqa/corpusqa/internal/errors"
)

// New creates a chat client for the configured provider.
func New(cfg Config) (Client, error) {
	switch cfg.Provider {
	case "ollama", "":
		return NewOllamaClient(cfg), nil
	case "openai":
		return NewOpenAIClient(cfg), nil
	default:
		return nil, pqerr.Newf(pqerr.ErrCodeConfigInvalid, "unknown llm provider %q", cfg.Provider)
	}
}
