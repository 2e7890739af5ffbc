// Package llm provides chat-completion clients for evidence scoring and
// answer synthesis, plus the prompt templates and response parsing the
// pipeline depends on. Ollama and OpenAI back production use; a scripted
// client keeps tests hermetic.
package llm

import (
	"context"
	"time"
)

// Defaults for provider configuration.
const (
	DefaultOllamaHost  = "http://localhost:11434"
	DefaultOllamaModel = "llama3.1"
	DefaultOpenAIHost  = "https://api.openai.com/v1"
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultTimeout     = 120 * time.Second
)

// Usage reports provider token consumption for one completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Result is one completion: the text plus the model and token usage
// that produced it, so callers can account per-model token totals.
type Result struct {
	Text  string
	Model string
	Usage Usage
}

// Client is a chat-completion provider. An empty system prompt sends
// the user prompt alone.
type Client interface {
	Complete(ctx context.Context, system, prompt string) (*Result, error)

	// ModelName returns the model identifier.
	ModelName() string

	// Close releases resources.
	Close() error
}

// Config configures a chat-completion provider.
type Config struct {
	// Provider selects the backend: "ollama" or "openai".
	Provider string
	Model    string
	// Host is the provider base URL.
	Host string
	// APIKey authenticates OpenAI requests.
	APIKey  string
	Timeout time.Duration
}
