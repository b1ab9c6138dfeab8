package retriever

import (
	"context"
	"fmt"
	"math"

	"clinrag/internal/embedder"
	"clinrag/internal/log"
	"clinrag/internal/store"
)

// Embedding ranks chunks by cosine similarity to the query embedding.
type Embedding struct {
	corpus   store.Reader
	embedder embedder.Embedder
}

func (e *Embedding) Strategy() Strategy { return StrategyEmbedding }

// Retrieve embeds query and scores every embedded chunk. A provider failure
// is logged and yields no results; only corpus read errors are returned.
func (e *Embedding) Retrieve(ctx context.Context, query string, k int) ([]Result, error) {
	if blank(query) || k <= 0 {
		return nil, nil
	}

	qv, err := e.embedder.EmbedSingle(ctx, query)
	if err != nil {
		log.Warnw("query embedding failed, returning no evidence", "error", err)
		return nil, nil
	}

	rows, err := e.corpus.EmbeddedChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load embedded chunks: %w", err)
	}

	results := make([]Result, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		sim, ok := CosineSimilarity(qv, row.Embedding)
		if !ok {
			skipped++
			continue
		}
		row.Embedding = nil
		results = append(results, Result{Chunk: row, Score: sim, Strategy: StrategyEmbedding})
	}
	if skipped > 0 {
		log.Debugf("skipped %d chunks with incompatible embeddings", skipped)
	}
	return topK(results, k), nil
}

// CosineSimilarity returns the cosine of the angle between a and b. ok is
// false when the lengths differ or either vector has zero norm.
func CosineSimilarity(a, b []float32) (sim float64, ok bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}
