package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"clinrag/internal/chunker"
	"clinrag/internal/extract"
	"clinrag/internal/log"
	"clinrag/internal/metadata"
	"clinrag/internal/store"
	"clinrag/internal/walker"
)

// docWork carries one walked file through the stages. Files that fail
// extraction still travel as skip markers so the store stage can keep walk
// order.
type docWork struct {
	info   walker.FileInfo
	skip   bool
	doc    store.Document
	chunks []store.Chunk
	// embedFailures counts chunks whose embedding could not be produced.
	embedFailures int
}

func (p *Pipeline) run(ctx context.Context, root string, s *store.SQLiteStore) (*Stats, error) {
	numWorkers := p.config.Workers

	var stats Stats
	var docsTotal atomic.Int64

	// Stage 1: Walk
	fileCh, walkErrCh := walker.Walk(ctx, root, p.config.Extensions)

	// Stage 2: Extract + metadata + chunk (N workers)
	preparedCh := make(chan docWork, numWorkers)
	var prepWg sync.WaitGroup
	for range numWorkers {
		prepWg.Add(1)
		go func() {
			defer prepWg.Done()
			for fi := range fileCh {
				docsTotal.Add(1)
				preparedCh <- p.prepare(ctx, fi)
			}
		}()
	}
	go func() {
		prepWg.Wait()
		close(preparedCh)
	}()

	// Stage 3: Embed (1 worker)
	embeddedCh := make(chan docWork, 4)
	var embedWg sync.WaitGroup
	embedWg.Add(1)
	go func() {
		defer embedWg.Done()
		defer close(embeddedCh)

		for w := range preparedCh {
			if !w.skip && p.embedder != nil && ctx.Err() == nil {
				w.embedFailures = p.embedChunks(ctx, w.info.RelPath, w.chunks)
			}
			embeddedCh <- w
		}
	}()

	// Stage 4: Store (1 writer, walk order)
	var storeErr error
	var storeWg sync.WaitGroup
	storeWg.Add(1)
	go func() {
		defer storeWg.Done()

		pending := make(map[int]docWork)
		next := 0
		processed := 0
		for w := range embeddedCh {
			pending[w.info.Seq] = w
			for {
				w, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				next++

				if err := p.write(ctx, s, w, &stats); err != nil {
					log.Error("store document "+w.info.RelPath, err)
					storeErr = err
					stats.DocumentsSkipped++
				}
				processed++
				if p.OnProgress != nil {
					p.OnProgress("Ingesting documents...", processed, int(docsTotal.Load()))
				}
			}
		}
		if len(pending) > 0 {
			log.Warnf("%d documents left unordered after walk", len(pending))
		}
	}()

	// Wait for all stages to complete.
	storeWg.Wait()
	embedWg.Wait()

	stats.DocumentsTotal = int(docsTotal.Load())

	if err := <-walkErrCh; err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return &stats, err
		}
		return &stats, fmt.Errorf("walk: %w", err)
	}
	if storeErr != nil && stats.DocumentsIndexed == 0 {
		return &stats, fmt.Errorf("storage failed: %w", storeErr)
	}
	return &stats, nil
}

// prepare extracts, describes and chunks one file. Failures are logged and
// turned into skip markers.
func (p *Pipeline) prepare(ctx context.Context, fi walker.FileInfo) docWork {
	w := docWork{info: fi, skip: true}
	if ctx.Err() != nil {
		return w
	}

	text, err := extract.File(fi.Path, p.config.MinTextChars)
	if err != nil {
		log.Warnw("skipping document", "file", fi.RelPath, "error", err)
		return w
	}

	override, _ := p.config.Overrides.Lookup(fi.RelPath)
	md := metadata.Infer(metadata.Source{
		Filename: filepath.Base(fi.Path),
		Pages:    text.Pages,
		Override: override,
	})
	log.Debugf("%s: title from %s, author from %s, year from %s",
		fi.RelPath, md.TitleFrom, md.AuthorFrom, orNone(md.YearFrom))

	full := text.Full()
	for _, piece := range chunker.Split(full, p.config.ChunkSize, p.config.ChunkOverlap) {
		if utf8.RuneCountInString(strings.TrimSpace(piece.Text)) < p.config.MinChunkChars {
			continue
		}
		w.chunks = append(w.chunks, store.Chunk{
			Index: piece.Index,
			Text:  piece.Text,
			Start: piece.Start,
			End:   piece.End,
		})
	}
	if len(w.chunks) == 0 {
		log.Warnw("skipping document", "file", fi.RelPath, "error", "no chunks above minimum length")
		return w
	}

	w.skip = false
	w.doc = store.Document{
		Filename: fi.RelPath,
		Title:    md.Title,
		Author:   md.Author,
		Year:     md.Year,
		FullText: full,
	}
	return w
}

// embedChunks fills in chunk embeddings in batches. A failed batch is retried
// one chunk at a time; chunks that still fail keep a nil embedding. It
// returns the number of such chunks.
func (p *Pipeline) embedChunks(ctx context.Context, relPath string, chunks []store.Chunk) int {
	failures := 0
	size := p.config.EmbedBatchSize
	for i := 0; i < len(chunks); i += size {
		end := min(i+size, len(chunks))
		batch := chunks[i:end]

		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = c.Text
		}

		embs, err := p.embedder.Embed(ctx, texts)
		if err == nil && len(embs) != len(texts) {
			err = fmt.Errorf("provider returned %d embeddings for %d texts", len(embs), len(texts))
		}
		if err == nil {
			for j := range batch {
				batch[j].Embedding = embs[j]
			}
			continue
		}

		log.Warnw("batch embedding failed, retrying per chunk", "file", relPath, "chunks", len(batch), "error", err)
		for j := range batch {
			if ctx.Err() != nil {
				failures += len(batch) - j
				break
			}
			emb, err := p.embedder.EmbedSingle(ctx, batch[j].Text)
			if err != nil {
				log.Warnw("chunk embedding failed", "file", relPath, "chunk", batch[j].Index, "error", err)
				failures++
				continue
			}
			batch[j].Embedding = emb
		}
	}
	return failures
}

func (p *Pipeline) write(ctx context.Context, s *store.SQLiteStore, w docWork, stats *Stats) error {
	if w.skip {
		stats.DocumentsSkipped++
		return nil
	}
	if err := s.InsertDocument(ctx, w.doc, w.chunks); err != nil {
		return err
	}
	stats.DocumentsIndexed++
	stats.ChunksWritten += len(w.chunks)
	for _, c := range w.chunks {
		if c.Embedding != nil {
			stats.ChunksEmbedded++
		}
	}
	stats.EmbedFailures += w.embedFailures
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
