package llm

import (
	"context"
	"sync"

	pqerr "github.com/corpusqa/corpusqa/internal/errors"
)

// ScriptedClient returns canned responses computed by a caller-supplied
// function. It exists for tests and dry runs; no network involved.
type ScriptedClient struct {
	mu sync.Mutex

	// Respond computes a response for a prompt. When nil, Default is
	// returned for every call.
	Respond func(system, prompt string) (string, error)

	// Default is the response when Respond is nil.
	Default string

	// Calls records every prompt received, in order.
	Calls []string
}

var _ Client = (*ScriptedClient)(nil)

// Complete records the prompt and returns the scripted response.
func (c *ScriptedClient) Complete(ctx context.Context, system, prompt string) (*Result, error) {
	c.mu.Lock()
	c.Calls = append(c.Calls, prompt)
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, pqerr.Wrap(pqerr.ErrCodeProviderCall, err)
	}

	text := c.Default
	if c.Respond != nil {
		var err error
		text, err = c.Respond(system, prompt)
		if err != nil {
			return nil, err
		}
	}
	return &Result{
		Text:  text,
		Model: c.ModelName(),
		Usage: Usage{PromptTokens: len(prompt) / 4, CompletionTokens: len(text) / 4},
	}, nil
}

// CallCount returns the number of completions served.
func (c *ScriptedClient) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Calls)
}

// ModelName returns the model identifier.
func (c *ScriptedClient) ModelName() string {
	return "scripted"
}

// Close is a no-op.
func (c *ScriptedClient) Close() error {
	return nil
}
