package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinrag/internal/metadata"
	"clinrag/internal/store"
)

// fakeEmbedder returns [rune count, 1] for each text. Batches of more than
// one text fail when failBatches is set, and any text containing poison
// fails on its own.
type fakeEmbedder struct {
	failBatches bool
	poison      string
	calls       atomic.Int64
}

func (f *fakeEmbedder) Model() string { return "fake-embed" }

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	if f.failBatches && len(texts) > 1 {
		return nil, errors.New("batch rejected")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if f.poison != "" && strings.Contains(t, f.poison) {
			return nil, errors.New("poisoned input")
		}
		out[i] = []float32{float32(len([]rune(t))), 1}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	v, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

const anemiaDoc = `Title: Anemia and Hospital Length of Stay
Author: Jane Kim
Year: 2019

Severe anemia is associated with longer hospital stays in adult inpatients.
Patients with low hematocrit were more likely to require transfusion.
Length of stay increased with anemia severity across all cohorts studied.
`

const asthmaDoc = `Title: Asthma Exacerbations in Urban Hospitals
Author: Luis Ortega

Asthma admissions peaked in autumn and were linked to respiratory infections.
Readmission within thirty days was common among poorly controlled patients.
`

func writeSources(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"a-anemia.txt":     anemiaDoc,
		"b-asthma.md":      asthmaDoc,
		"c-short.txt":      "too short",
		".hidden.txt":      anemiaDoc,
		"notes/d-copy.txt": anemiaDoc,
		"image.png":        "not a document",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func testConfig(t *testing.T) Config {
	return Config{
		DBPath:         filepath.Join(t.TempDir(), "papers_rag.db"),
		Schema:         store.SchemaVector,
		ChunkSize:      120,
		ChunkOverlap:   20,
		MinTextChars:   50,
		MinChunkChars:  10,
		Workers:        4,
		EmbedBatchSize: 2,
	}
}

func TestBuild_WritesCorpus(t *testing.T) {
	src := writeSources(t)
	cfg := testConfig(t)
	emb := &fakeEmbedder{}

	var progress []int
	p := New(cfg, emb)
	p.OnProgress = func(phase string, processed, total int) {
		progress = append(progress, processed)
	}

	stats, err := p.Build(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.DocumentsTotal)
	assert.Equal(t, 3, stats.DocumentsIndexed)
	assert.Equal(t, 1, stats.DocumentsSkipped)
	assert.Equal(t, stats.ChunksWritten, stats.ChunksEmbedded)
	assert.Zero(t, stats.EmbedFailures)
	assert.Equal(t, []int{1, 2, 3, 4}, progress)

	_, err = os.Stat(cfg.DBPath + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary corpus should be renamed away")
	_, err = os.Stat(cfg.DBPath + ".lock")
	assert.True(t, os.IsNotExist(err), "lock should be released")

	s, err := store.Open(cfg.DBPath)
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	docs, err := s.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "a-anemia.txt", docs[0].Filename)
	assert.Equal(t, "Anemia and Hospital Length of Stay", docs[0].Title)
	assert.Equal(t, "Jane Kim", docs[0].Author)
	assert.Equal(t, 2019, docs[0].Year)
	assert.Equal(t, "b-asthma.md", docs[1].Filename)
	assert.Equal(t, "Luis Ortega", docs[1].Author)
	assert.Equal(t, "notes/d-copy.txt", docs[2].Filename)

	chunks, err := s.Chunks(ctx)
	require.NoError(t, err)
	assert.Len(t, chunks, stats.ChunksWritten)
	for _, c := range chunks {
		assert.GreaterOrEqual(t, len([]rune(strings.TrimSpace(c.Text))), cfg.MinChunkChars)
	}

	dims, err := s.Dimensions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, dims)

	model, err := s.GetMeta(ctx, "embedding_model")
	require.NoError(t, err)
	assert.Equal(t, "fake-embed", model)
	size, err := s.GetMeta(ctx, "chunk_size")
	require.NoError(t, err)
	assert.Equal(t, "120", size)
	schema, err := s.GetMeta(ctx, "schema")
	require.NoError(t, err)
	assert.Equal(t, "vector", schema)
}

func TestBuild_EmbedFailuresStoreNull(t *testing.T) {
	src := writeSources(t)
	cfg := testConfig(t)
	emb := &fakeEmbedder{failBatches: true, poison: "transfusion"}

	stats, err := New(cfg, emb).Build(context.Background(), src)
	require.NoError(t, err)

	// The sentence mentioning transfusion appears in two documents.
	assert.Positive(t, stats.EmbedFailures)
	assert.Equal(t, stats.ChunksWritten, stats.ChunksEmbedded+stats.EmbedFailures)

	s, err := store.Open(cfg.DBPath)
	require.NoError(t, err)
	defer s.Close()

	all, err := s.Chunks(context.Background())
	require.NoError(t, err)
	embedded, err := s.EmbeddedChunks(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, stats.ChunksWritten)
	assert.Len(t, embedded, stats.ChunksEmbedded)
	for _, c := range embedded {
		assert.NotContains(t, c.Text, "transfusion")
	}
}

func TestBuild_WithoutEmbedder(t *testing.T) {
	src := writeSources(t)
	cfg := testConfig(t)
	cfg.Schema = store.SchemaLightweight

	stats, err := New(cfg, nil).Build(context.Background(), src)
	require.NoError(t, err)
	assert.Positive(t, stats.ChunksWritten)
	assert.Zero(t, stats.ChunksEmbedded)

	s, err := store.Open(cfg.DBPath)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, store.SchemaLightweight, s.Schema())

	model, err := s.GetMeta(context.Background(), "embedding_model")
	require.NoError(t, err)
	assert.Equal(t, "", model)
}

func TestBuild_ReproducibleOrder(t *testing.T) {
	src := writeSources(t)
	cfg := testConfig(t)

	read := func() []store.ChunkRow {
		_, err := New(cfg, &fakeEmbedder{}).Build(context.Background(), src)
		require.NoError(t, err)
		s, err := store.Open(cfg.DBPath)
		require.NoError(t, err)
		defer s.Close()
		rows, err := s.Chunks(context.Background())
		require.NoError(t, err)
		return rows
	}

	first := read()
	second := read()
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Filename, second[i].Filename)
		assert.Equal(t, first[i].Index, second[i].Index)
	}
}

func TestBuild_Locked(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.DBPath+".lock", []byte(strconv.Itoa(os.Getpid())), 0o644))

	_, err := New(cfg, nil).Build(context.Background(), writeSources(t))
	assert.ErrorIs(t, err, ErrLocked)
	assert.Contains(t, err.Error(), cfg.DBPath+".lock")

	_, err = os.Stat(cfg.DBPath)
	assert.True(t, os.IsNotExist(err))
}

func TestBuild_MissingSourceKeepsExistingCorpus(t *testing.T) {
	cfg := testConfig(t)
	_, err := New(cfg, nil).Build(context.Background(), writeSources(t))
	require.NoError(t, err)
	before, err := os.ReadFile(cfg.DBPath)
	require.NoError(t, err)

	_, err = New(cfg, nil).Build(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open source directory")

	after, err := os.ReadFile(cfg.DBPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = os.Stat(cfg.DBPath + ".tmp")
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(cfg.DBPath + ".lock")
	assert.True(t, os.IsNotExist(err))
}

func TestBuild_Canceled(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(cfg, &fakeEmbedder{}).Build(ctx, writeSources(t))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = os.Stat(cfg.DBPath)
	assert.True(t, os.IsNotExist(err))
}

func TestBuild_ReclaimsStaleLock(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("stale lock reclaim needs unix signals")
	}
	cfg := testConfig(t)
	// Far above any pid_max, so no such process exists.
	require.NoError(t, os.WriteFile(cfg.DBPath+".lock", []byte("2147483600"), 0o644))

	stats, err := New(cfg, nil).Build(context.Background(), writeSources(t))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.DocumentsIndexed)

	_, err = os.Stat(cfg.DBPath + ".lock")
	assert.True(t, os.IsNotExist(err))
}

func TestBuild_UnreadableLockIsHeld(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.DBPath+".lock", nil, 0o644))

	_, err := New(cfg, nil).Build(context.Background(), writeSources(t))
	assert.ErrorIs(t, err, ErrLocked)
	assert.Contains(t, err.Error(), "unknown process")
}

func TestBuild_MetadataOverrides(t *testing.T) {
	src := t.TempDir()
	doc := "Author: Unknown\nPublished: 2011\n\n" + strings.Repeat("Anemia prolongs hospital stays in older adults. ", 4)
	require.NoError(t, os.WriteFile(filepath.Join(src, "kim-anemia.txt"), []byte(doc), 0o644))

	cfg := testConfig(t)
	cfg.Overrides = metadata.Overrides{"kim-anemia.txt": {Author: "Kim J", Year: 2019}}
	_, err := New(cfg, nil).Build(context.Background(), src)
	require.NoError(t, err)

	s, err := store.Open(cfg.DBPath)
	require.NoError(t, err)
	defer s.Close()
	docs, err := s.Documents(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Kim J", docs[0].Author)
	assert.Equal(t, 2019, docs[0].Year)
}
