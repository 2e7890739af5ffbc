package docs

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/corpusqa/corpusqa/internal/chunk"
	"github.com/corpusqa/corpusqa/internal/embed"
	pqerr "github.com/corpusqa/corpusqa/internal/errors"
	"github.com/corpusqa/corpusqa/internal/llm"
	"github.com/corpusqa/corpusqa/internal/parse"
	"github.com/corpusqa/corpusqa/internal/store"
)

// StoreOptions are the pipeline operating parameters.
type StoreOptions struct {
	Chunking chunk.Options
	// DisableCheck skips the text-likeness validation on ingestion.
	DisableCheck bool
	// EvidenceK is the number of chunks retrieved per question.
	EvidenceK int
	// MMRLambda balances query similarity against retrieval diversity.
	MMRLambda float64
	// MaxSources caps the evidence pieces entering the context block.
	MaxSources int
	// MaxConcurrent bounds in-flight scoring calls during evidence
	// gathering.
	MaxConcurrent int
	// SummaryLength and AnswerLength are length hints passed verbatim to
	// the scoring and QA prompts.
	SummaryLength string
	AnswerLength  string
	// DetailedCitations includes the full citation in scoring prompts
	// and under each evidence block.
	DetailedCitations bool
	// PrePrompt, when set, runs before synthesis with {question} filled
	// in; its output joins the context as extra background information.
	PrePrompt string
	// PostPrompt, when set, runs after synthesis with {question} and
	// {answer} filled in; its output replaces the answer text.
	PostPrompt string
}

// DefaultStoreOptions returns the standard operating parameters.
func DefaultStoreOptions() StoreOptions {
	return StoreOptions{
		Chunking:          chunk.DefaultOptions(),
		EvidenceK:         10,
		MMRLambda:         1.0,
		MaxSources:        5,
		MaxConcurrent:     4,
		SummaryLength:     "about 100 words",
		AnswerLength:      "about 200 words, but can be longer",
		DetailedCitations: true,
	}
}

// Deps are the collaborators a Store needs.
type Deps struct {
	Embedder embed.Embedder
	// LLM answers questions; SummaryLLM scores evidence and defaults to
	// LLM when nil.
	LLM        llm.Client
	SummaryLLM llm.Client
	// TextIndex holds chunk embeddings; DocIndex holds citation
	// embeddings for document-level matching.
	TextIndex store.VectorStore
	DocIndex  store.VectorStore
	Parser    *parse.Parser
	Logger    *slog.Logger
}

// Store is the document collection: documents, their chunks, the vector
// indices over them, and the question pipeline.
type Store struct {
	mu sync.RWMutex

	logger     *slog.Logger
	parser     *parse.Parser
	tok        chunk.Tokenizer
	embedder   embed.Embedder
	answerLLM  llm.Client
	summaryLLM llm.Client
	textIndex  store.VectorStore
	docIndex   store.VectorStore
	opts       StoreOptions

	docs       map[string]*Document
	docnames   map[string]bool
	chunks     []*Chunk
	chunkByID  map[string]*Chunk
	tombstones map[string]bool
}

// NewStore creates a document store.
func NewStore(deps Deps, opts StoreOptions) *Store {
	if deps.SummaryLLM == nil {
		deps.SummaryLLM = deps.LLM
	}
	if deps.Parser == nil {
		deps.Parser = parse.NewParser()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Store{
		logger:     deps.Logger,
		parser:     deps.Parser,
		tok:        chunk.WordTokenizer{},
		embedder:   deps.Embedder,
		answerLLM:  deps.LLM,
		summaryLLM: deps.SummaryLLM,
		textIndex:  deps.TextIndex,
		docIndex:   deps.DocIndex,
		opts:       opts,
		docs:       make(map[string]*Document),
		docnames:   make(map[string]bool),
		chunkByID:  make(map[string]*Chunk),
		tombstones: make(map[string]bool),
	}
}

// AddOptions override ingestion defaults for one document.
type AddOptions struct {
	// Citation skips the citation bootstrap call when set.
	Citation string
	// Docname skips name derivation when set.
	Docname string
	// DocKey overrides the content-hash key.
	DocKey string
	// DisableCheck skips the text-likeness validation for this document.
	DisableCheck bool
}

// AddPath ingests a file: parse, chunk, bootstrap a citation when none
// is given, derive a unique name, embed, and index. Returns the final
// document name. Re-adding an already-present document is a no-op
// returning the existing name.
func (s *Store) AddPath(ctx context.Context, path string, opts AddOptions) (string, error) {
	if opts.DocKey == "" {
		dockey, err := md5sum(path)
		if err != nil {
			return "", pqerr.Wrap(pqerr.ErrCodeInvalidInput, err)
		}
		opts.DocKey = dockey
	}

	s.mu.RLock()
	if existing, ok := s.docs[opts.DocKey]; ok {
		s.mu.RUnlock()
		return existing.Name, nil
	}
	s.mu.RUnlock()

	parsed, err := s.parser.File(path)
	if err != nil {
		return "", err
	}
	return s.AddParsed(ctx, parsed, path, opts)
}

// AddParsed ingests already-parsed content, for callers that ran an
// external parser themselves. The source string labels the document in
// the citation fallback and error messages; when no DocKey is given the
// parsed content is hashed for one.
func (s *Store) AddParsed(ctx context.Context, parsed *parse.ParsedText, source string, opts AddOptions) (string, error) {
	dockey := opts.DocKey
	if dockey == "" {
		dockey = contentKey(parsed)
	}

	s.mu.RLock()
	if existing, ok := s.docs[dockey]; ok {
		s.mu.RUnlock()
		return existing.Name, nil
	}
	s.mu.RUnlock()

	var err error
	citation := opts.Citation
	if citation == "" {
		citation, err = s.bootstrapCitation(ctx, source, parsed)
		if err != nil {
			return "", err
		}
	}

	docname := opts.Docname
	if docname == "" {
		docname, err = deriveDocname(citation)
		if err != nil {
			return "", err
		}
	}

	pieces, err := chunk.Split(parsed, docname, s.opts.Chunking, s.tok)
	if err != nil {
		return "", err
	}
	if len(pieces[0].Text) < 10 ||
		(!s.opts.DisableCheck && !opts.DisableCheck && !parse.MaybeIsText(pieces[0].Text)) {
		return "", pqerr.Newf(pqerr.ErrCodeNotText,
			"%s does not look like a text document; pass disable_check to ignore", source)
	}

	doc := &Document{Key: dockey, Name: docname, Citation: citation}
	added, err := s.AddTexts(ctx, doc, pieces)
	if err != nil {
		return "", err
	}
	if !added {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if existing, ok := s.docs[dockey]; ok {
			return existing.Name, nil
		}
		return docname, nil
	}

	s.logger.InfoContext(ctx, "document added",
		slog.String("docname", doc.Name),
		slog.String("dockey", dockey),
		slog.Int("chunks", len(pieces)))
	return doc.Name, nil
}

// AddTexts ingests pre-chunked pieces for a document: embed them and the
// citation, finalize a unique name (renaming chunk names in lockstep),
// and index everything. Returns false when the document key is already
// present.
func (s *Store) AddTexts(ctx context.Context, doc *Document, pieces []*chunk.Piece) (bool, error) {
	if len(pieces) == 0 {
		return false, pqerr.ParsingImpossible(doc.Name)
	}

	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Text
	}
	var vecs [][]float32
	var citeVec []float32
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vecs, err = s.embedder.EmbedBatch(gctx, texts)
		return err
	})
	g.Go(func() error {
		var err error
		citeVec, err = s.embedder.Embed(gctx, doc.Citation)
		return err
	})
	if err := g.Wait(); err != nil {
		return false, err
	}
	doc.Embedding = citeVec

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[doc.Key]; ok {
		return false, nil
	}

	if final := uniqueName(doc.Name, s.docnames); final != doc.Name {
		prev := doc.Name
		doc.Name = final
		for _, p := range pieces {
			p.Name = strings.Replace(p.Name, prev, final, 1)
		}
	}

	chunks := make([]*Chunk, len(pieces))
	ids := make([]string, len(pieces))
	for i, p := range pieces {
		chunks[i] = &Chunk{
			ID:        chunkID(doc.Key, i),
			Name:      p.Name,
			Text:      p.Text,
			DocKey:    doc.Key,
			Ordinal:   i,
			Embedding: vecs[i],
		}
		ids[i] = chunks[i].ID
	}

	if err := s.textIndex.Add(ctx, ids, vecs); err != nil {
		return false, err
	}
	if s.docIndex != nil {
		if err := s.docIndex.Add(ctx, []string{doc.Key}, [][]float32{citeVec}); err != nil {
			return false, err
		}
	}

	s.docs[doc.Key] = doc
	s.docnames[doc.Name] = true
	for _, c := range chunks {
		s.chunks = append(s.chunks, c)
		s.chunkByID[c.ID] = c
	}
	// A re-added document supersedes its tombstone.
	delete(s.tombstones, doc.Key)
	return true, nil
}

// bootstrapCitation asks the model for an MLA citation from the leading
// chunk of a document, falling back to a placeholder when the model
// cannot produce one. The system prompt is skipped on purpose: with it
// the model is too hesitant to answer.
func (s *Store) bootstrapCitation(ctx context.Context, path string, parsed *parse.ParsedText) (string, error) {
	peek, err := chunk.Split(parsed, "", s.opts.Chunking, s.tok)
	if err != nil {
		return "", err
	}

	res, err := s.answerLLM.Complete(ctx, "", llm.CitationPrompt(peek[0].Text))
	if err != nil {
		return "", err
	}
	s.logger.DebugContext(ctx, "citation bootstrap", slog.String("citation", res.Text))

	citation := strings.TrimSpace(res.Text)
	if len(citation) < 3 || strings.Contains(citation, "Unknown") || strings.Contains(citation, "insufficient") {
		citation = fmt.Sprintf("Unknown, %s, %d", filepath.Base(path), time.Now().Year())
	}
	return citation, nil
}

// Delete removes a document by name or key. Unknown documents are a
// no-op. The document's chunks leave the metadata maps immediately; its
// index entries are filtered at retrieval time via the tombstone set.
func (s *Store) Delete(ctx context.Context, nameOrKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[nameOrKey]
	if !ok {
		for _, d := range s.docs {
			if d.Name == nameOrKey {
				doc = d
				break
			}
		}
	}
	if doc == nil {
		return nil
	}

	delete(s.docs, doc.Key)
	delete(s.docnames, doc.Name)
	s.tombstones[doc.Key] = true

	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if c.DocKey == doc.Key {
			delete(s.chunkByID, c.ID)
		} else {
			kept = append(kept, c)
		}
	}
	s.chunks = kept

	s.logger.InfoContext(ctx, "document deleted",
		slog.String("docname", doc.Name),
		slog.String("dockey", doc.Key))
	return nil
}

// Retrieve returns the k chunks most relevant to query. The index is
// over-fetched by the tombstone count so lazily-deleted entries never
// crowd out live ones, then results are filtered and truncated.
func (s *Store) Retrieve(ctx context.Context, query string, k int) ([]*Chunk, error) {
	s.mu.RLock()
	empty := len(s.docs) == 0
	overK := k + len(s.tombstones)
	lambda := s.opts.MMRLambda
	s.mu.RUnlock()

	if empty || k <= 0 {
		return []*Chunk{}, nil
	}

	qvec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	matches, err := s.textIndex.Search(ctx, qvec, store.SearchOptions{
		K:      overK,
		FetchK: 2 * overK,
		Lambda: lambda,
	})
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Chunk, 0, k)
	for _, m := range matches {
		c, ok := s.chunkByID[m.ID]
		if !ok || s.tombstones[c.DocKey] {
			continue
		}
		out = append(out, c)
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// MatchDocuments returns the documents whose citations are most similar
// to query, for corpus exploration and pre-filtering.
func (s *Store) MatchDocuments(ctx context.Context, query string, k int) ([]*Document, error) {
	if s.docIndex == nil {
		return []*Document{}, nil
	}

	qvec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	matches, err := s.docIndex.Search(ctx, qvec, store.SearchOptions{K: k, Lambda: 1.0})
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Document, 0, len(matches))
	for _, m := range matches {
		if d, ok := s.docs[m.ID]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// GatherEvidence retrieves candidate chunks for the answer's question
// and scores each with a bounded-concurrency map step. Chunks whose IDs
// appear in exclude are skipped; the retrieval over-fetches by the
// exclusion count to compensate. Evidence scoring zero is dropped. A
// single failed scoring call drops that chunk, not the batch.
func (s *Store) GatherEvidence(ctx context.Context, answer *Answer, exclude map[string]bool) ([]*Evidence, error) {
	s.mu.RLock()
	empty := len(s.docs) == 0
	opts := s.opts
	s.mu.RUnlock()

	if empty {
		answer.setEvidence(nil)
		return []*Evidence{}, nil
	}

	k := opts.EvidenceK
	if len(exclude) > 0 {
		k += len(exclude)
	}
	matches, err := s.Retrieve(ctx, answer.Question, k)
	if err != nil {
		return nil, err
	}
	if len(exclude) > 0 {
		kept := matches[:0]
		for _, m := range matches {
			if !exclude[m.ID] {
				kept = append(kept, m)
			}
		}
		matches = kept
	}

	citations := make([]string, len(matches))
	s.mu.RLock()
	for i, m := range matches {
		citations[i] = m.Name
		if opts.DetailedCitations {
			if d, ok := s.docs[m.DocKey]; ok {
				citations[i] = m.Name + ": " + d.Citation
			}
		}
	}
	s.mu.RUnlock()

	sem := semaphore.NewWeighted(int64(opts.MaxConcurrent))
	var wg sync.WaitGroup
	results := make([]*Evidence, len(matches))
	llmResults := make([]*llm.Result, len(matches))

	for i, m := range matches {
		wg.Add(1)
		go func(i int, m *Chunk) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)

			prompt := llm.SummaryPrompt(answer.Question, citations[i], m.Text, opts.SummaryLength)
			res, err := s.summaryLLM.Complete(ctx, llm.SystemPrompt, prompt)
			if err != nil {
				s.logger.WarnContext(ctx, "evidence scoring failed",
					slog.String("chunk", m.Name),
					slog.String("error", err.Error()))
				return
			}
			llmResults[i] = res
			results[i] = &Evidence{
				Chunk:   m,
				Summary: llm.StripScoreLine(res.Text),
				Score:   llm.ExtractScore(res.Text),
			}
		}(i, m)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, pqerr.Wrap(pqerr.ErrCodeProviderCall, err)
	}

	for _, r := range llmResults {
		answer.AddTokens(r)
	}

	kept := make([]*Evidence, 0, len(results))
	for _, ev := range results {
		if ev != nil && ev.Score > 0 {
			kept = append(kept, ev)
		}
	}
	answer.setEvidence(kept)
	return kept, nil
}

// Synthesize turns evidence into a cited answer, gathering it first for
// an answer that has not been through the map step: rank and truncate
// evidence, build the context block, run the QA call, and reconcile
// citations into a bibliography of keys actually used.
func (s *Store) Synthesize(ctx context.Context, answer *Answer) error {
	s.mu.RLock()
	opts := s.opts
	s.mu.RUnlock()

	// A fresh answer has not been through the map step yet; run it. An
	// answer that gathered and found nothing proceeds to the degenerate
	// path instead of re-gathering.
	if answer.State() == StateCreated {
		if _, err := s.GatherEvidence(ctx, answer, nil); err != nil {
			return err
		}
	}

	preStr := ""
	if opts.PrePrompt != "" {
		res, err := s.answerLLM.Complete(ctx, llm.SystemPrompt,
			llm.Render(opts.PrePrompt, map[string]string{"question": answer.Question}))
		if err != nil {
			return err
		}
		answer.AddTokens(res)
		preStr = res.Text
	}

	contexts := answer.Contexts()
	filtered := make([]*Evidence, len(contexts))
	copy(filtered, contexts)
	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Score > filtered[j].Score })
	if len(filtered) > opts.MaxSources {
		filtered = filtered[:opts.MaxSources]
	}

	blocks := make([]string, 0, len(filtered))
	names := make([]string, 0, len(filtered))
	for _, ev := range filtered {
		block := fmt.Sprintf("%s: %s", ev.Chunk.Name, ev.Summary)
		if opts.DetailedCitations {
			s.mu.RLock()
			if d, ok := s.docs[ev.Chunk.DocKey]; ok {
				block += "\nFrom " + d.Citation
			}
			s.mu.RUnlock()
		}
		blocks = append(blocks, block)
		names = append(names, ev.Chunk.Name)
	}
	if preStr != "" {
		blocks = append(blocks, "Extra background information: "+preStr)
	}
	evidenceStr := strings.Join(blocks, "\n\n")
	contextStr := evidenceStr + "\n\nValid keys: " + strings.Join(names, ", ")

	var answerText string
	if len(evidenceStr) < 10 {
		answerText = InsufficientAnswer
	} else {
		res, err := s.answerLLM.Complete(ctx, llm.SystemPrompt,
			llm.QAPrompt(answer.Question, contextStr, opts.AnswerLength))
		if err != nil {
			return err
		}
		answer.AddTokens(res)
		answerText = res.Text
	}

	// Models occasionally echo the example citation verbatim.
	answerText = strings.ReplaceAll(answerText, llm.ExampleCitation, "")

	type bibEntry struct{ name, citation string }
	var bib []bibEntry
	seen := make(map[string]bool)
	s.mu.RLock()
	for _, ev := range filtered {
		name := ev.Chunk.Name
		if seen[name] || !llm.NameInText(name, answerText) {
			continue
		}
		seen[name] = true
		citation := ""
		if d, ok := s.docs[ev.Chunk.DocKey]; ok {
			citation = d.Citation
		}
		bib = append(bib, bibEntry{name: name, citation: citation})
	}
	s.mu.RUnlock()

	bibLines := make([]string, len(bib))
	for i, b := range bib {
		bibLines[i] = fmt.Sprintf("%d. (%s): %s", i+1, b.name, b.citation)
	}
	bibStr := strings.Join(bibLines, "\n\n")

	if opts.PostPrompt != "" {
		res, err := s.answerLLM.Complete(ctx, llm.SystemPrompt,
			llm.Render(opts.PostPrompt, map[string]string{
				"question": answer.Question,
				"answer":   answerText,
			}))
		if err != nil {
			return err
		}
		answer.AddTokens(res)
		answerText = res.Text
	}

	formatted := fmt.Sprintf("Question: %s\n\n%s\n", answer.Question, answerText)
	if len(bib) > 0 {
		formatted += fmt.Sprintf("\nReferences\n\n%s\n", bibStr)
	}

	answer.setSynthesis(answerText, formatted, bibStr)
	return nil
}

// Query runs the full pipeline for a question: gather evidence, then
// synthesize the answer.
func (s *Store) Query(ctx context.Context, question string) (*Answer, error) {
	answer := NewAnswer(question)
	if _, err := s.GatherEvidence(ctx, answer, nil); err != nil {
		return nil, err
	}
	if err := s.Synthesize(ctx, answer); err != nil {
		return nil, err
	}
	return answer, nil
}

// Documents lists the live documents sorted by name.
func (s *Store) Documents() []*Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Document, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ChunkCount returns the number of live chunks.
func (s *Store) ChunkCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// contentKey hashes parsed content, yielding the default document key
// when no source file is available to hash.
func contentKey(pt *parse.ParsedText) string {
	h := md5.New()
	switch pt.Metadata.ParseType {
	case parse.KindPages:
		for _, pg := range pt.Pages {
			io.WriteString(h, pg.Text)
		}
	case parse.KindLines:
		for _, l := range pt.Lines {
			io.WriteString(h, l)
		}
	default:
		io.WriteString(h, pt.Text)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// md5sum hashes a file's contents, yielding the default document key.
func md5sum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
