package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	pqerr "github.com/corpusqa/corpusqa/internal/errors"
)

// OpenAIEmbedder generates embeddings through an OpenAI-compatible
// /embeddings endpoint.
type OpenAIEmbedder struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	modelName string
	timeout   time.Duration

	mu     sync.RWMutex
	dims   int
	closed bool
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an OpenAI embedder.
func NewOpenAIEmbedder(cfg Config) *OpenAIEmbedder {
	if cfg.Host == "" {
		cfg.Host = DefaultOpenAIHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &OpenAIEmbedder{
		client:    &http.Client{},
		baseURL:   cfg.Host,
		apiKey:    cfg.APIKey,
		modelName: cfg.Model,
		timeout:   cfg.Timeout,
		dims:      cfg.Dimensions,
	}
}

type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed generates an embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one API call.
// Results are reordered by the response index field.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, pqerr.New(pqerr.ErrCodeStoreClosed, "embedder is closed", nil)
	}

	body, err := json.Marshal(openAIEmbedRequest{Model: e.modelName, Input: texts})
	if err != nil {
		return nil, pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, pqerr.Wrap(pqerr.ErrCodeInternal, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, pqerr.ProviderError("openai embed request", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, pqerr.ProviderError(
			fmt.Sprintf("openai embeddings returned %d: %s", resp.StatusCode, msg), nil)
	}

	var out openAIEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, pqerr.ProviderError("decode openai embed response", err)
	}
	if len(out.Data) != len(texts) {
		return nil, pqerr.ProviderError(
			fmt.Sprintf("openai returned %d embeddings for %d texts", len(out.Data), len(texts)), nil)
	}

	vecs := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, pqerr.ProviderError(fmt.Sprintf("openai embedding index %d out of range", d.Index), nil)
		}
		vecs[d.Index] = d.Embedding
	}

	e.mu.Lock()
	if e.dims == 0 && len(vecs) > 0 {
		e.dims = len(vecs[0])
	}
	e.mu.Unlock()

	return vecs, nil
}

// Dimensions returns the embedding dimension, 0 before first use when
// auto-detecting.
func (e *OpenAIEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

// ModelName returns the model identifier.
func (e *OpenAIEmbedder) ModelName() string {
	return e.modelName
}

// Close releases idle connections.
func (e *OpenAIEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.client.CloseIdleConnections()
	return nil
}
