package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	pqerr "github.com/corpusqa/corpusqa/internal/errors"
)

// OllamaClient completes prompts through Ollama's /api/chat endpoint.
type OllamaClient struct {
	client    *http.Client
	transport *http.Transport
	host      string
	modelName string
	timeout   time.Duration
}

var _ Client = (*OllamaClient)(nil)

// NewOllamaClient creates an Ollama chat client.
func NewOllamaClient(cfg Config) *OllamaClient {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	transport := &http.Transport{
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     10 * time.Second,
	}
	return &OllamaClient{
		client:    &http.Client{Transport: transport},
		transport: transport,
		host:      cfg.Host,
		modelName: cfg.Model,
		timeout:   cfg.Timeout,
	}
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

type ollamaChatResponse struct {
	Message         ollamaChatMessage `json:"message"`
	PromptEvalCount int               `json:"prompt_eval_count"`
	EvalCount       int               `json:"eval_count"`
}

// Complete sends one chat completion request and returns the response
// text with token usage.
func (c *OllamaClient) Complete(ctx context.Context, system, prompt string) (*Result, error) {
	var messages []ollamaChatMessage
	if system != "" {
		messages = append(messages, ollamaChatMessage{Role: "system", Content: system})
	}
	messages = append(messages, ollamaChatMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(ollamaChatRequest{Model: c.modelName, Messages: messages})
	if err != nil {
		return nil, pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, pqerr.ProviderError("ollama chat request", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, pqerr.ProviderError(
			fmt.Sprintf("ollama chat returned %d: %s", resp.StatusCode, msg), nil)
	}

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, pqerr.ProviderError("decode ollama chat response", err)
	}

	return &Result{
		Text:  out.Message.Content,
		Model: c.modelName,
		Usage: Usage{
			PromptTokens:     out.PromptEvalCount,
			CompletionTokens: out.EvalCount,
		},
	}, nil
}

// ModelName returns the model identifier.
func (c *OllamaClient) ModelName() string {
	return c.modelName
}

// Close releases idle connections.
func (c *OllamaClient) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}
