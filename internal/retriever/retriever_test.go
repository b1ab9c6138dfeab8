package retriever

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinrag/internal/store"
)

// memCorpus is an in-memory store.Reader.
type memCorpus struct {
	schema store.Schema
	rows   []store.ChunkRow
	model  string
}

func (m *memCorpus) Schema() store.Schema { return m.schema }

func (m *memCorpus) Chunks(ctx context.Context) ([]store.ChunkRow, error) {
	out := make([]store.ChunkRow, len(m.rows))
	for i, r := range m.rows {
		r.Embedding = nil
		out[i] = r
	}
	return out, nil
}

func (m *memCorpus) EmbeddedChunks(ctx context.Context) ([]store.ChunkRow, error) {
	var out []store.ChunkRow
	for _, r := range m.rows {
		if r.Embedding != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memCorpus) Documents(ctx context.Context) ([]store.DocumentSummary, error) { return nil, nil }

func (m *memCorpus) Dimensions(ctx context.Context) (int, error) {
	for _, r := range m.rows {
		if r.Embedding != nil {
			return len(r.Embedding), nil
		}
	}
	return 0, nil
}

func (m *memCorpus) GetMeta(ctx context.Context, key string) (string, error) {
	if key == "embedding_model" {
		return m.model, nil
	}
	return "", nil
}

func (m *memCorpus) Close() error { return nil }

// stubEmbedder returns vec for every query, or err.
type stubEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (s *stubEmbedder) Model() string { return "stub" }

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vec
	}
	return out, nil
}

func (s *stubEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	v, err := s.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func vectorCorpus() *memCorpus {
	return &memCorpus{
		schema: store.SchemaVector,
		rows: []store.ChunkRow{
			{ID: 1, Title: "Orthogonal", Text: "o", Embedding: []float32{0, 1}},
			{ID: 2, Title: "Exact", Text: "e", Embedding: []float32{1, 0}},
			{ID: 3, Title: "Unembedded", Text: "u"},
			{ID: 4, Title: "Exact twin", Text: "e2", Embedding: []float32{2, 0}},
			{ID: 5, Title: "Wrong dims", Text: "w", Embedding: []float32{1, 0, 0}},
			{ID: 6, Title: "Zero", Text: "z", Embedding: []float32{0, 0}},
			{ID: 7, Title: "Diagonal", Text: "d", Embedding: []float32{1, 1}},
		},
	}
}

func TestNew_StrategyProbe(t *testing.T) {
	ctx := context.Background()
	emb := &stubEmbedder{vec: []float32{1, 0}}

	tests := []struct {
		name   string
		corpus store.Reader
		emb    *stubEmbedder
		want   Strategy
	}{
		{"vector with embedder", vectorCorpus(), emb, StrategyEmbedding},
		{"vector without embedder", vectorCorpus(), nil, StrategyKeyword},
		{"vector with no stored embeddings", &memCorpus{schema: store.SchemaVector, rows: []store.ChunkRow{{ID: 1}}}, emb, StrategyKeyword},
		{"lightweight with embedder", &memCorpus{schema: store.SchemaLightweight}, emb, StrategyKeyword},
		{"lightweight without embedder", &memCorpus{schema: store.SchemaLightweight}, nil, StrategyKeyword},
		{"unknown schema", &memCorpus{schema: store.SchemaNone}, emb, StrategyUnavailable},
		{"no corpus", nil, emb, StrategyUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Retriever
			if tt.emb == nil {
				r = New(ctx, tt.corpus, nil)
			} else {
				r = New(ctx, tt.corpus, tt.emb)
			}
			assert.Equal(t, tt.want, r.Strategy())
		})
	}
}

func TestEmbedding_RanksByCosine(t *testing.T) {
	emb := &stubEmbedder{vec: []float32{1, 0}}
	r := New(context.Background(), vectorCorpus(), emb)

	results, err := r.Retrieve(context.Background(), "anemia", 10)
	require.NoError(t, err)

	ids := make([]int64, len(results))
	for i, res := range results {
		ids[i] = res.Chunk.ID
		assert.Equal(t, StrategyEmbedding, res.Strategy)
		assert.Nil(t, res.Chunk.Embedding)
	}
	// Ties keep corpus order; unembedded, zero and mismatched vectors are skipped.
	assert.Equal(t, []int64{2, 4, 7, 1}, ids)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.InDelta(t, 0.7071, results[2].Score, 1e-4)

	top, err := r.Retrieve(context.Background(), "anemia", 2)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}

func TestEmbedding_OrderStable(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	corpus := &memCorpus{schema: store.SchemaVector}
	for i := range 200 {
		// Coarse values force many exact ties.
		v := []float32{float32(rng.Intn(3)), float32(rng.Intn(3)), float32(rng.Intn(3) + 1)}
		corpus.rows = append(corpus.rows, store.ChunkRow{ID: int64(i + 1), Embedding: v})
	}
	r := New(context.Background(), corpus, &stubEmbedder{vec: []float32{1, 2, 3}})

	first, err := r.Retrieve(context.Background(), "q", 50)
	require.NoError(t, err)
	for range 5 {
		again, err := r.Retrieve(context.Background(), "q", 50)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	for i := 1; i < len(first); i++ {
		if first[i].Score == first[i-1].Score {
			assert.Less(t, first[i-1].Chunk.ID, first[i].Chunk.ID)
		}
	}
}

func TestEmbedding_ProviderFailureIsSoft(t *testing.T) {
	emb := &stubEmbedder{err: errors.New("connection refused")}
	r := New(context.Background(), vectorCorpus(), emb)
	require.Equal(t, StrategyEmbedding, r.Strategy())

	results, err := r.Retrieve(context.Background(), "anemia", 10)
	assert.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieve_EmptyQueryMakesNoCalls(t *testing.T) {
	emb := &stubEmbedder{vec: []float32{1, 0}}
	r := New(context.Background(), vectorCorpus(), emb)

	results, err := r.Retrieve(context.Background(), "   ", 10)
	assert.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, emb.calls)

	kw := New(context.Background(), &memCorpus{schema: store.SchemaLightweight}, nil)
	results, err = kw.Retrieve(context.Background(), "", 10)
	assert.NoError(t, err)
	assert.Empty(t, results)
}

func TestKeyword_AnemiaLengthOfStay(t *testing.T) {
	corpus := &memCorpus{
		schema: store.SchemaLightweight,
		rows: []store.ChunkRow{
			{ID: 1, Title: "Pneumonia in Older Adults", Text: "pneumonia outcomes in older adults"},
			{ID: 2, Title: "Anemia in Hospitalized Patients", Text: "anemia was associated with a longer length of stay"},
			{ID: 3, Title: "Cardiac Surgery", Text: "no overlap here at all"},
		},
	}
	r := New(context.Background(), corpus, nil)

	results, err := r.Retrieve(context.Background(), "anemia length of stay", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, int64(2), results[0].Chunk.ID)
	assert.GreaterOrEqual(t, results[0].Score, float64(TitleWordWeight+TextContainsWeight))
	for _, res := range results {
		assert.Positive(t, res.Score)
		assert.NotEqual(t, int64(3), res.Chunk.ID, "zero-score chunks are excluded")
	}
}

func TestKeywordScore_TitleMatchIsMonotonic(t *testing.T) {
	queries := []string{"anemia", "asthma readmission", "anemia length of stay", "kidney creatinine"}
	titles := []string{"", "Outcomes", "Hospital Outcomes in Adults", "Anemia Study"}
	texts := []string{"", "patients were followed for thirty days", "anemia and kidney disease"}

	for _, q := range queries {
		for _, title := range titles {
			for _, text := range texts {
				for _, w := range strings.Fields(q) {
					base := KeywordScore(q, title, text)
					withMatch := KeywordScore(q, title+" "+w, text)
					assert.Greater(t, withMatch, base, "query %q title %q + %q", q, title, w)
				}
			}
		}
	}
}

func TestKeywordScore_Weights(t *testing.T) {
	// "anemia": title +15, text +5 +3, medical keyword +8, title partial +5.
	assert.Equal(t, 36, KeywordScore("anemia", "Anemia", "anemia"))
	assert.Equal(t, 0, KeywordScore("anemia", "Asthma", "asthma"))
	// Partial: "hospital" is contained in "hospitalization".
	assert.Equal(t, 15+5, KeywordScore("hospital", "Hospitalization", ""))
}

func TestCosineSimilarity(t *testing.T) {
	sim, ok := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	assert.True(t, ok)
	assert.InDelta(t, 0, sim, 1e-9)

	sim, ok = CosineSimilarity([]float32{1, 2}, []float32{-1, -2})
	assert.True(t, ok)
	assert.InDelta(t, -1, sim, 1e-9)

	_, ok = CosineSimilarity([]float32{1}, []float32{1, 2})
	assert.False(t, ok)
	_, ok = CosineSimilarity([]float32{0, 0}, []float32{1, 2})
	assert.False(t, ok)
	_, ok = CosineSimilarity(nil, nil)
	assert.False(t, ok)
}
