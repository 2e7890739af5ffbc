package cmd

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/corpusqa/corpusqa/internal/docs"
	"github.com/corpusqa/corpusqa/internal/embed"
	"github.com/corpusqa/corpusqa/internal/llm"
	"github.com/corpusqa/corpusqa/internal/persist"
	"github.com/corpusqa/corpusqa/internal/store"
)

// pipeline bundles the runtime collaborators a command needs: the
// document store wired to its providers and indices, plus the snapshot
// database.
type pipeline struct {
	store    *docs.Store
	db       *persist.DB
	embedder embed.Embedder
	llms     []llm.Client
}

// openPipeline builds the pipeline from configuration and restores the
// persisted corpus.
func openPipeline(ctx context.Context) (*pipeline, error) {
	embedder, err := embed.New(embed.Config{
		Provider:   cfg.Embeddings.Provider,
		Model:      cfg.Embeddings.Model,
		Host:       cfg.Embeddings.Host,
		APIKey:     os.Getenv("OPENAI_API_KEY"),
		Dimensions: cfg.Embeddings.Dimensions,
		CacheSize:  cfg.Embeddings.CacheSize,
		Timeout:    cfg.Embeddings.Timeout,
	})
	if err != nil {
		return nil, err
	}

	answerLLM, err := llm.New(llm.Config{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		Host:     cfg.LLM.Host,
		APIKey:   os.Getenv("OPENAI_API_KEY"),
		Timeout:  cfg.LLM.Timeout,
	})
	if err != nil {
		embedder.Close()
		return nil, err
	}
	llms := []llm.Client{answerLLM}

	summaryLLM := answerLLM
	if cfg.LLM.SummaryModel != "" && cfg.LLM.SummaryModel != cfg.LLM.Model {
		summaryLLM, err = llm.New(llm.Config{
			Provider: cfg.LLM.Provider,
			Model:    cfg.LLM.SummaryModel,
			Host:     cfg.LLM.Host,
			APIKey:   os.Getenv("OPENAI_API_KEY"),
			Timeout:  cfg.LLM.Timeout,
		})
		if err != nil {
			answerLLM.Close()
			embedder.Close()
			return nil, err
		}
		llms = append(llms, summaryLLM)
	}

	vsCfg := store.DefaultVectorStoreConfig(cfg.Embeddings.Dimensions)
	textIndex, err := store.New(cfg.Retrieval.Backend, vsCfg)
	if err != nil {
		return nil, err
	}
	docIndex, err := store.New(cfg.Retrieval.Backend, vsCfg)
	if err != nil {
		return nil, err
	}

	s := docs.NewStore(docs.Deps{
		Embedder:   embedder,
		LLM:        answerLLM,
		SummaryLLM: summaryLLM,
		TextIndex:  textIndex,
		DocIndex:   docIndex,
		Logger:     logger,
	}, docs.StoreOptions{
		Chunking:          chunkOptions(),
		DisableCheck:      cfg.Chunking.DisableCheck,
		EvidenceK:         cfg.Retrieval.EvidenceK,
		MMRLambda:         cfg.Retrieval.MMRLambda,
		MaxSources:        cfg.Answer.MaxSources,
		MaxConcurrent:     cfg.Answer.MaxConcurrent,
		SummaryLength:     cfg.Answer.SummaryLength,
		AnswerLength:      cfg.Answer.AnswerLength,
		DetailedCitations: cfg.Answer.DetailedCitations,
		PrePrompt:         cfg.Answer.PrePrompt,
		PostPrompt:        cfg.Answer.PostPrompt,
	})

	if err := os.MkdirAll(cfg.Paths.IndexDir, 0o755); err != nil {
		return nil, err
	}
	db, err := persist.Open(filepath.Join(cfg.Paths.IndexDir, "corpusqa.db"))
	if err != nil {
		return nil, err
	}

	snap, err := db.Load(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := s.Restore(ctx, snap); err != nil {
		db.Close()
		return nil, err
	}

	logger.DebugContext(ctx, "pipeline opened",
		slog.Int("documents", len(snap.Documents)),
		slog.Int("chunks", len(snap.Chunks)))

	return &pipeline{store: s, db: db, embedder: embedder, llms: llms}, nil
}

// save persists the current corpus snapshot.
func (p *pipeline) save(ctx context.Context) error {
	return p.db.Save(ctx, p.store.Snapshot())
}

// close releases providers and the database.
func (p *pipeline) close() {
	for _, c := range p.llms {
		_ = c.Close()
	}
	_ = p.embedder.Close()
	_ = p.db.Close()
}
