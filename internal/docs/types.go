// Package docs is the document collection and the question pipeline over
// it: ingest and chunk documents, retrieve and score evidence, and
// synthesize cited answers.
package docs

import (
	"fmt"

	"github.com/corpusqa/corpusqa/internal/llm"
)

// Document is one ingested document. Key is the stable content hash;
// Name is the short citation key (e.g. Smith2020) chunk names and
// in-answer citations use.
type Document struct {
	Key      string
	Name     string
	Citation string
	// Embedding is the citation embedding, used for document-level matching.
	Embedding []float32
}

// Chunk is one piece of a document's text. ID is "{dockey}#{ordinal}",
// stable across document renames so index entries never go stale.
type Chunk struct {
	ID      string
	Name    string
	Text    string
	DocKey  string
	Ordinal int
	// Embedding is retained for persistence and index rebuilds.
	Embedding []float32
}

// chunkID builds the vector ID for a chunk.
func chunkID(dockey string, ordinal int) string {
	return fmt.Sprintf("%s#%d", dockey, ordinal)
}

// Evidence is one scored piece of support for a question: the chunk, the
// model's summary of it, and the 0-10 relevance score. Zero-score
// evidence is dropped before synthesis.
type Evidence struct {
	Chunk   *Chunk
	Summary string
	Score   int
}

// TokenCount accumulates provider token usage per model.
type TokenCount struct {
	Prompt     int
	Completion int
}

// addUsage merges one completion's usage into a per-model tally.
func addUsage(counts map[string]TokenCount, r *llm.Result) {
	if r == nil {
		return
	}
	tc := counts[r.Model]
	tc.Prompt += r.Usage.PromptTokens
	tc.Completion += r.Usage.CompletionTokens
	counts[r.Model] = tc
}
