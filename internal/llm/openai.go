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

// OpenAIClient completes prompts through an OpenAI-compatible
// /chat/completions endpoint.
type OpenAIClient struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	modelName string
	timeout   time.Duration
}

var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient creates an OpenAI chat client.
func NewOpenAIClient(cfg Config) *OpenAIClient {
	if cfg.Host == "" {
		cfg.Host = DefaultOpenAIHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &OpenAIClient{
		client:    &http.Client{},
		baseURL:   cfg.Host,
		apiKey:    cfg.APIKey,
		modelName: cfg.Model,
		timeout:   cfg.Timeout,
	}
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model    string              `json:"model"`
	Messages []openAIChatMessage `json:"messages"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIChatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete sends one chat completion request and returns the response
// text with token usage.
func (c *OpenAIClient) Complete(ctx context.Context, system, prompt string) (*Result, error) {
	var messages []openAIChatMessage
	if system != "" {
		messages = append(messages, openAIChatMessage{Role: "system", Content: system})
	}
	messages = append(messages, openAIChatMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(openAIChatRequest{Model: c.modelName, Messages: messages})
	if err != nil {
		return nil, pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, pqerr.ProviderError("openai chat request", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, pqerr.ProviderError(
			fmt.Sprintf("openai chat returned %d: %s", resp.StatusCode, msg), nil)
	}

	var out openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, pqerr.ProviderError("decode openai chat response", err)
	}
	if len(out.Choices) == 0 {
		return nil, pqerr.ProviderError("openai chat returned no choices", nil)
	}

	return &Result{
		Text:  out.Choices[0].Message.Content,
		Model: c.modelName,
		Usage: Usage{
			PromptTokens:     out.Usage.PromptTokens,
			CompletionTokens: out.Usage.CompletionTokens,
		},
	}, nil
}

// ModelName returns the model identifier.
func (c *OpenAIClient) ModelName() string {
	return c.modelName
}

// Close releases idle connections.
func (c *OpenAIClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
