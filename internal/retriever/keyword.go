package retriever

import (
	"context"
	"fmt"
	"strings"

	"clinrag/internal/store"
)

// Keyword weights.
const (
	TitleWordWeight      = 15
	TextWordWeight       = 5
	MedicalKeywordWeight = 8
	TitlePartialWeight   = 5
	TextContainsWeight   = 3
)

// MedicalKeywords are domain terms that score when present in both the
// query and the chunk text.
var MedicalKeywords = []string{
	"anemia", "pneumonia", "diabetes", "kidney", "renal", "asthma",
	"depression", "length of stay", "hospital", "readmission",
	"mortality", "complications", "treatment", "diagnosis",
	"creatinine", "glucose", "hematocrit", "blood", "medication",
}

// Keyword ranks chunks by lexical overlap with the query. It needs no
// provider and works on either schema.
type Keyword struct {
	corpus store.Reader
}

func (kw *Keyword) Strategy() Strategy { return StrategyKeyword }

// Retrieve scores every chunk and keeps those with a positive score.
func (kw *Keyword) Retrieve(ctx context.Context, query string, k int) ([]Result, error) {
	if blank(query) || k <= 0 {
		return nil, nil
	}

	rows, err := kw.corpus.Chunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}

	var results []Result
	for _, row := range rows {
		if score := KeywordScore(query, row.Title, row.Text); score > 0 {
			results = append(results, Result{Chunk: row, Score: float64(score), Strategy: StrategyKeyword})
		}
	}
	return topK(results, k), nil
}

// KeywordScore is the lexical relevance of a chunk to query. Matching is
// case-insensitive substring matching on whitespace-separated query words:
//
//	+15 per query word found in the title
//	+5  per query word found in the text
//	+8  per medical keyword found in both query and text
//	+5  per (query word, title word) pair where either contains the other
//	+3  per query word found in the text
func KeywordScore(query, title, text string) int {
	q := strings.ToLower(query)
	t := strings.ToLower(title)
	c := strings.ToLower(text)
	words := strings.Fields(q)

	score := 0
	for _, w := range words {
		if strings.Contains(t, w) {
			score += TitleWordWeight
		}
		if strings.Contains(c, w) {
			score += TextWordWeight + TextContainsWeight
		}
	}

	for _, kw := range MedicalKeywords {
		if strings.Contains(q, kw) && strings.Contains(c, kw) {
			score += MedicalKeywordWeight
		}
	}

	for _, w := range words {
		for _, tw := range strings.Fields(t) {
			if strings.Contains(tw, w) || strings.Contains(w, tw) {
				score += TitlePartialWeight
			}
		}
	}
	return score
}
