package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T, schema Schema) (string, *SQLiteStore) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "papers.db")
	s, err := Create(path, schema)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return path, s
}

func seed(t *testing.T, w Writer) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, w.InsertDocument(ctx,
		Document{Filename: "b-anemia.pdf", Title: "Anemia and Length of Stay", Author: "Kim et al.", Year: 2019, FullText: "full b"},
		[]Chunk{
			{Index: 0, Text: "anemia prolongs length of stay", Start: 0, End: 30, Embedding: []float32{1, 0, 0}},
			{Index: 2, Text: "second stored chunk", Start: 20, End: 39},
		},
	))
	require.NoError(t, w.InsertDocument(ctx,
		Document{Filename: "a-asthma.txt", Title: "Asthma Trends", Author: "Unknown", FullText: "full a"},
		[]Chunk{{Index: 0, Text: "asthma hospitalization", End: 22, Embedding: []float32{0, 0.5, 0.25}}},
	))
	require.NoError(t, w.SetMeta(ctx, "embedding_model", "nomic-embed-text"))
}

func TestStore_VectorRoundTrip(t *testing.T) {
	path, w := setupTestStore(t, SchemaVector)
	seed(t, w)
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	ctx := context.Background()

	assert.Equal(t, SchemaVector, r.Schema())

	chunks, err := r.Chunks(ctx)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "anemia prolongs length of stay", chunks[0].Text)
	assert.Equal(t, "Anemia and Length of Stay", chunks[0].Title)
	assert.Equal(t, "Kim et al.", chunks[0].Author)
	assert.Equal(t, 2019, chunks[0].Year)
	assert.Equal(t, 2, chunks[1].Index)
	assert.Nil(t, chunks[0].Embedding, "Chunks does not load embeddings")
	assert.Equal(t, 0, chunks[2].Year)
	assert.Less(t, chunks[0].ID, chunks[1].ID)

	embedded, err := r.EmbeddedChunks(ctx)
	require.NoError(t, err)
	require.Len(t, embedded, 2)
	assert.Equal(t, []float32{1, 0, 0}, embedded[0].Embedding)
	assert.Equal(t, []float32{0, 0.5, 0.25}, embedded[1].Embedding)

	dims, err := r.Dimensions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, dims)

	docs, err := r.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a-asthma.txt", docs[0].Filename)
	assert.Equal(t, DocumentSummary{Filename: "b-anemia.pdf", Title: "Anemia and Length of Stay", Author: "Kim et al.", Year: 2019, Chunks: 2, Embedded: 1}, docs[1])

	model, err := r.GetMeta(ctx, "embedding_model")
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", model)

	missing, err := r.GetMeta(ctx, "nope")
	require.NoError(t, err)
	assert.Equal(t, "", missing)
}

func TestStore_LightweightRoundTrip(t *testing.T) {
	path, w := setupTestStore(t, SchemaLightweight)
	seed(t, w)
	require.NoError(t, w.Close())

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	ctx := context.Background()

	assert.Equal(t, SchemaLightweight, r.Schema())

	chunks, err := r.Chunks(ctx)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "b-anemia.pdf", chunks[0].Filename)
	assert.Equal(t, "a-asthma.txt", chunks[2].Filename)

	docs, err := r.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, 2, docs[1].Chunks)
}

func TestStore_DuplicateFilenameRollsBack(t *testing.T) {
	_, w := setupTestStore(t, SchemaVector)
	ctx := context.Background()
	doc := Document{Filename: "x.pdf", Title: "X", FullText: "x"}

	require.NoError(t, w.InsertDocument(ctx, doc, []Chunk{{Text: "one"}}))
	require.Error(t, w.InsertDocument(ctx, doc, []Chunk{{Text: "two"}}))

	chunks, err := w.Chunks(ctx)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}

func TestOpen_Unavailable(t *testing.T) {
	dir := t.TempDir()

	_, err := Open(filepath.Join(dir, "missing.db"))
	assert.ErrorIs(t, err, ErrUnavailable)

	empty := filepath.Join(dir, "empty.db")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = Open(empty)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOpen_UnknownTablesIsSchemaNone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, SchemaNone, s.Schema())
	chunks, err := s.Chunks(context.Background())
	assert.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestOpen_LegacyLightweightCorpus(t *testing.T) {
	// Text years and JSON embeddings, as written by older tooling.
	path := filepath.Join(t.TempDir(), "legacy.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE paper_chunks (id INTEGER PRIMARY KEY, filename TEXT, title TEXT, authors TEXT,
		year TEXT, chunk_index INTEGER, chunk_text TEXT, embedding TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO paper_chunks VALUES (1, 'p.pdf', NULL, NULL, '2020.0', 0, 'text', '[0.5, 1.5]')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	rows, err := s.EmbeddedChunks(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2020, rows[0].Year)
	assert.Equal(t, "", rows[0].Title)
	assert.Equal(t, []float32{0.5, 1.5}, rows[0].Embedding)
}

func TestDecodeEmbedding_BadLength(t *testing.T) {
	_, err := decodeEmbedding([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestParseSchema(t *testing.T) {
	s, err := ParseSchema("lightweight")
	require.NoError(t, err)
	assert.Equal(t, "lightweight", s.String())

	_, err = ParseSchema("graph")
	assert.Error(t, err)
}
