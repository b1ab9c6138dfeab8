package cmd

import (
	"context"
	"errors"

	"clinrag/internal/embedder"
	"clinrag/internal/evidence"
	"clinrag/internal/llm"
	"clinrag/internal/log"
	"clinrag/internal/metadata"
	"clinrag/internal/rag"
	"clinrag/internal/retriever"
	"clinrag/internal/store"
)

// openCorpus opens the configured corpus. A missing or unreadable corpus is
// not an error: the engine degrades to "insufficient evidence", so a nil
// Reader is returned instead.
func openCorpus() store.Reader {
	s, err := store.Open(cfg.Corpus.Path)
	if err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			log.Warnw("corpus unavailable", "path", cfg.Corpus.Path)
		} else {
			log.Warnw("corpus unreadable", "path", cfg.Corpus.Path, "error", err)
		}
		return nil
	}
	return s
}

// newEmbedder builds the configured embedding provider, or nil when the
// provider is "none".
func newEmbedder() (embedder.Embedder, error) {
	e := cfg.Embedding
	return embedder.New(e.Provider, e.BaseURL, e.APIKey, e.Model, e.Timeout)
}

// newEngine wires providers and the corpus into a rag.Engine. The returned
// corpus may be nil and must be closed by the caller otherwise.
func newEngine(ctx context.Context) (*rag.Engine, store.Reader, error) {
	emb, err := newEmbedder()
	if err != nil {
		return nil, nil, err
	}

	l := cfg.LLM
	completer, err := llm.New(l.Provider, l.BaseURL, l.APIKey, l.Model, l.Timeout, llm.GenerationParams{
		MaxTokens:   l.MaxTokens,
		Temperature: l.Temperature,
	})
	if err != nil {
		return nil, nil, err
	}

	overrides, err := metadata.LoadOverrides(cfg.Corpus.MetadataOverrides)
	if err != nil {
		return nil, nil, err
	}

	corpus := openCorpus()
	r := retriever.New(ctx, corpus, emb)
	log.Infow("retriever ready", "strategy", r.Strategy().String(), "corpus", cfg.Corpus.Path)

	rc := cfg.Retrieval
	engine := rag.NewEngine(r, rag.NewSynthesizer(completer, l.Timeout), rag.Config{
		TopK: rc.TopK,
		Evidence: evidence.Options{
			MinSimilarity:   rc.MinSimilarity,
			MinKeywordScore: rc.MinKeywordScore,
			ExcerptChars:    rc.ExcerptChars,
			MaxCitations:    rc.MaxCitations,
			Overrides:       overrides,
		},
	})
	return engine, corpus, nil
}
