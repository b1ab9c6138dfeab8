// Package ingest builds a corpus from a directory of source documents.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"clinrag/internal/embedder"
	"clinrag/internal/log"
	"clinrag/internal/metadata"
	"clinrag/internal/store"
)

// Config holds the build configuration.
type Config struct {
	DBPath         string
	Schema         store.Schema
	ChunkSize      int
	ChunkOverlap   int
	MinTextChars   int
	MinChunkChars  int
	Workers        int
	EmbedBatchSize int
	EmbedInterval  time.Duration
	// Extensions limits the walked file types; nil means walker.DefaultExts.
	Extensions map[string]bool
	// Overrides supplies curated metadata by filename.
	Overrides metadata.Overrides
}

// Stats reports build results.
type Stats struct {
	DocumentsTotal   int
	DocumentsIndexed int
	DocumentsSkipped int
	ChunksWritten    int
	ChunksEmbedded   int
	EmbedFailures    int
}

// ProgressFunc is called by the store stage after each document.
type ProgressFunc func(phase string, processed, total int)

// Pipeline runs full rebuilds of one corpus file.
type Pipeline struct {
	config   Config
	embedder embedder.Embedder

	// OnProgress, when set, receives per-document progress.
	OnProgress ProgressFunc
}

// New creates a Pipeline. emb may be nil, in which case chunks are stored
// without embeddings.
func New(cfg Config, emb embedder.Embedder) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = 16
	}
	if cfg.Schema == store.SchemaNone {
		cfg.Schema = store.SchemaVector
	}
	p := &Pipeline{config: cfg}
	if emb != nil {
		p.embedder = embedder.NewLimited(emb, cfg.EmbedInterval)
	}
	return p
}

// Build ingests every document under sourceDir into a fresh corpus. The new
// corpus is written next to DBPath and renamed over it only on success, so
// readers of the old file never see a partial build. ErrLocked is returned
// when another build holds the lock.
func (p *Pipeline) Build(ctx context.Context, sourceDir string) (*Stats, error) {
	release, err := acquireLock(p.config.DBPath)
	if err != nil {
		return nil, err
	}
	defer release()

	tmp := p.config.DBPath + ".tmp"
	s, err := store.Create(tmp, p.config.Schema)
	if err != nil {
		return nil, fmt.Errorf("create corpus: %w", err)
	}
	discard := func() {
		s.Close()
		removeDBFiles(tmp)
	}

	log.Infow("building corpus",
		"source", sourceDir,
		"corpus", p.config.DBPath,
		"schema", p.config.Schema.String(),
		"embed", p.embedder != nil,
	)

	stats, err := p.run(ctx, sourceDir, s)
	if err != nil {
		discard()
		return stats, err
	}
	if err := ctx.Err(); err != nil {
		discard()
		return stats, err
	}

	if err := p.writeMeta(ctx, s); err != nil {
		discard()
		return stats, fmt.Errorf("write meta: %w", err)
	}
	if err := s.Close(); err != nil {
		removeDBFiles(tmp)
		return stats, fmt.Errorf("close corpus: %w", err)
	}

	for _, suffix := range []string{"-wal", "-shm", "-journal"} {
		if err := os.Remove(p.config.DBPath + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warnf("remove stale %s: %v", p.config.DBPath+suffix, err)
		}
	}
	if err := os.Rename(tmp, p.config.DBPath); err != nil {
		removeDBFiles(tmp)
		return stats, fmt.Errorf("replace corpus: %w", err)
	}

	log.Infow("corpus built",
		"documents", stats.DocumentsIndexed,
		"skipped", stats.DocumentsSkipped,
		"chunks", stats.ChunksWritten,
		"embedded", stats.ChunksEmbedded,
		"embed_failures", stats.EmbedFailures,
	)
	return stats, nil
}

func (p *Pipeline) writeMeta(ctx context.Context, s *store.SQLiteStore) error {
	model := ""
	if p.embedder != nil {
		model = p.embedder.Model()
	}
	meta := []struct{ key, value string }{
		{"schema", p.config.Schema.String()},
		{"embedding_model", model},
		{"chunk_size", strconv.Itoa(p.config.ChunkSize)},
		{"chunk_overlap", strconv.Itoa(p.config.ChunkOverlap)},
		{"built_at", time.Now().UTC().Format(time.RFC3339)},
	}
	for _, m := range meta {
		if err := s.SetMeta(ctx, m.key, m.value); err != nil {
			return err
		}
	}
	return nil
}

func removeDBFiles(path string) {
	for _, p := range []string{path, path + "-wal", path + "-shm", path + "-journal"} {
		_ = os.Remove(p)
	}
}
