// Package retriever ranks corpus chunks against a query string.
package retriever

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"clinrag/internal/embedder"
	"clinrag/internal/log"
	"clinrag/internal/store"
)

// Strategy names the ranking method a Retriever uses.
type Strategy int

const (
	StrategyUnavailable Strategy = iota
	StrategyEmbedding
	StrategyKeyword
)

func (s Strategy) String() string {
	switch s {
	case StrategyEmbedding:
		return "embedding"
	case StrategyKeyword:
		return "keyword"
	default:
		return "unavailable"
	}
}

func (s Strategy) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Result is one ranked chunk. Score is a cosine similarity for the
// embedding strategy and an integer-valued relevance score for the keyword
// strategy; the two are not comparable.
type Result struct {
	Chunk    store.ChunkRow
	Score    float64
	Strategy Strategy
}

// Retriever returns at most k results, best first. Equal scores keep corpus
// order. An empty query returns no results without calling any provider.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Result, error)
	Strategy() Strategy
}

// New probes the corpus and picks a strategy. A vector corpus with stored
// embeddings and a configured embedder ranks by cosine similarity. Any
// other readable corpus falls back to keyword scoring. A corpus with no
// known tables, or a nil corpus, yields a Retriever that never returns
// results.
func New(ctx context.Context, corpus store.Reader, emb embedder.Embedder) Retriever {
	if corpus == nil {
		return unavailable{}
	}

	switch corpus.Schema() {
	case store.SchemaVector:
		if emb == nil {
			log.Infow("no embedding provider configured, using keyword retrieval")
			return &Keyword{corpus: corpus}
		}
		dims, err := corpus.Dimensions(ctx)
		if err != nil {
			log.Warnw("probe embedding dimensions", "error", err)
		}
		if dims == 0 {
			log.Warnw("corpus has no stored embeddings, using keyword retrieval")
			return &Keyword{corpus: corpus}
		}
		if built, _ := corpus.GetMeta(ctx, "embedding_model"); built != "" && built != emb.Model() {
			log.Warnw("embedding model differs from the one the corpus was built with",
				"corpus_model", built, "query_model", emb.Model())
		}
		return &Embedding{corpus: corpus, embedder: emb}
	case store.SchemaLightweight:
		return &Keyword{corpus: corpus}
	default:
		log.Warnw("corpus has no recognizable schema, retrieval disabled")
		return unavailable{}
	}
}

type unavailable struct{}

func (unavailable) Retrieve(context.Context, string, int) ([]Result, error) { return nil, nil }
func (unavailable) Strategy() Strategy                                      { return StrategyUnavailable }

// topK sorts results by descending score, stable on ties, and truncates.
func topK(results []Result, k int) []Result {
	slices.SortStableFunc(results, func(a, b Result) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}

func blank(query string) bool {
	return strings.TrimSpace(query) == ""
}
