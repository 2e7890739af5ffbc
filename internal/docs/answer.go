package docs

import (
	"sync"

	"github.com/google/uuid"

	"github.com/corpusqa/corpusqa/internal/llm"
)

// AnswerState tracks an answer's progress through the pipeline.
type AnswerState string

const (
	StateCreated          AnswerState = "created"
	StateEvidenceGathered AnswerState = "evidence-gathered"
	StateSynthesized      AnswerState = "synthesized"
)

// InsufficientAnswer is the degenerate answer returned when the context
// block is effectively empty.
const InsufficientAnswer = "I cannot answer this question due to insufficient information."

// Answer carries one question through evidence gathering and synthesis.
// Methods are safe for concurrent use; the map step adds token counts
// from multiple goroutines.
type Answer struct {
	ID       string
	Question string

	mu         sync.Mutex
	state      AnswerState
	contexts   []*Evidence
	text       string
	formatted  string
	references string
	tokens     map[string]TokenCount
}

// NewAnswer creates an answer for a question.
func NewAnswer(question string) *Answer {
	return &Answer{
		ID:       uuid.New().String(),
		Question: question,
		state:    StateCreated,
		tokens:   make(map[string]TokenCount),
	}
}

// AddTokens merges a completion's token usage into the per-model tally.
func (a *Answer) AddTokens(r *llm.Result) {
	a.mu.Lock()
	defer a.mu.Unlock()
	addUsage(a.tokens, r)
}

// TokenCounts returns a copy of the per-model token tally.
func (a *Answer) TokenCounts() map[string]TokenCount {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]TokenCount, len(a.tokens))
	for k, v := range a.tokens {
		out[k] = v
	}
	return out
}

// State returns the answer's pipeline state.
func (a *Answer) State() AnswerState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Contexts returns the gathered evidence.
func (a *Answer) Contexts() []*Evidence {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.contexts
}

// Text returns the synthesized answer text.
func (a *Answer) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.text
}

// Formatted returns the full formatted answer: question, answer text,
// and references.
func (a *Answer) Formatted() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.formatted
}

// References returns the numbered bibliography block.
func (a *Answer) References() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.references
}

func (a *Answer) setEvidence(contexts []*Evidence) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.contexts = append(a.contexts, contexts...)
	a.state = StateEvidenceGathered
}

func (a *Answer) setSynthesis(text, formatted, references string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.text = text
	a.formatted = formatted
	a.references = references
	a.state = StateSynthesized
}
