// Package store persists the literature corpus in SQLite. Two layouts are
// supported: a vector schema with separate documents and chunks tables, and
// a lightweight single-table schema for keyword-only corpora.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// ErrUnavailable is returned by Open when the corpus file is missing or
// empty.
var ErrUnavailable = errors.New("corpus unavailable")

// Reader is the query-time view of a corpus. Implementations must be safe
// for concurrent use.
type Reader interface {
	// Schema reports which layout the corpus uses.
	Schema() Schema
	// Chunks returns every chunk with its document metadata, in id order.
	// Embeddings are not loaded.
	Chunks(ctx context.Context) ([]ChunkRow, error)
	// EmbeddedChunks returns chunks that carry an embedding, in id order.
	EmbeddedChunks(ctx context.Context) ([]ChunkRow, error)
	// Documents lists documents with chunk counts, ordered by filename.
	Documents(ctx context.Context) ([]DocumentSummary, error)
	// Dimensions returns the embedding length, or 0 if nothing is embedded.
	Dimensions(ctx context.Context) (int, error)
	// GetMeta returns a metadata value by key, or "" if not set.
	GetMeta(ctx context.Context, key string) (string, error)
	Close() error
}

// Writer is used by ingestion to fill a fresh corpus.
type Writer interface {
	// InsertDocument stores a document and all of its chunks atomically.
	InsertDocument(ctx context.Context, doc Document, chunks []Chunk) error
	// SetMeta sets a metadata key-value pair.
	SetMeta(ctx context.Context, key, value string) error
	Close() error
}

// SQLiteStore implements Reader and Writer.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	schema Schema
}

// Create makes a new, empty corpus at path, replacing any existing file.
func Create(path string, schema Schema) (*SQLiteStore, error) {
	for _, p := range []string{path, path + "-wal", path + "-shm", path + "-journal"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale %s: %w", p, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=DELETE&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := Init(db, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db, path: path, schema: schema}, nil
}

// Open opens an existing corpus read-only and detects its schema. A corpus
// with no recognizable tables opens with SchemaNone.
func Open(path string) (*SQLiteStore, error) {
	st, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrUnavailable)
		}
		return nil, fmt.Errorf("stat corpus: %w", err)
	}
	if st.Size() == 0 {
		return nil, fmt.Errorf("%s is empty: %w", path, ErrUnavailable)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	schema, err := DetectSchema(context.Background(), db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("detect schema: %w", err)
	}
	return &SQLiteStore{db: db, path: path, schema: schema}, nil
}

func (s *SQLiteStore) Schema() Schema { return s.schema }

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) InsertDocument(ctx context.Context, doc Document, chunks []Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	switch s.schema {
	case SchemaVector:
		err = insertVector(ctx, tx, doc, chunks)
	case SchemaLightweight:
		err = insertLightweight(ctx, tx, doc, chunks)
	default:
		err = fmt.Errorf("cannot write to schema %s", s.schema)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

func insertVector(ctx context.Context, tx *sql.Tx, doc Document, chunks []Chunk) error {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO documents (filename, title, author, year, full_text) VALUES (?, ?, ?, ?, ?)",
		doc.Filename, doc.Title, doc.Author, nullYear(doc.Year), doc.FullText,
	)
	if err != nil {
		return fmt.Errorf("insert document %s: %w", doc.Filename, err)
	}
	docID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chunks (document_id, chunk_index, chunk_text, char_start, char_end, embedding) VALUES (?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		blob, err := encodeEmbedding(c.Embedding)
		if err != nil {
			return fmt.Errorf("serialize embedding for %s chunk %d: %w", doc.Filename, c.Index, err)
		}
		if _, err := stmt.ExecContext(ctx, docID, c.Index, c.Text, c.Start, c.End, blob); err != nil {
			return fmt.Errorf("insert chunk %d of %s: %w", c.Index, doc.Filename, err)
		}
	}
	return nil
}

func insertLightweight(ctx context.Context, tx *sql.Tx, doc Document, chunks []Chunk) error {
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO paper_chunks (filename, title, authors, year, chunk_index, chunk_text, embedding) VALUES (?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		blob, err := encodeEmbedding(c.Embedding)
		if err != nil {
			return fmt.Errorf("serialize embedding for %s chunk %d: %w", doc.Filename, c.Index, err)
		}
		if _, err := stmt.ExecContext(ctx, doc.Filename, doc.Title, doc.Author, nullYear(doc.Year), c.Index, c.Text, blob); err != nil {
			return fmt.Errorf("insert chunk %d of %s: %w", c.Index, doc.Filename, err)
		}
	}
	return nil
}

const (
	vectorChunksQuery = `
		SELECT c.id, d.filename, d.title, d.author, d.year, c.chunk_index, c.chunk_text%s
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		%s
		ORDER BY c.id`
	lightweightChunksQuery = `
		SELECT id, filename, title, authors, year, chunk_index, chunk_text%s
		FROM paper_chunks
		%s
		ORDER BY id`
)

func (s *SQLiteStore) Chunks(ctx context.Context) ([]ChunkRow, error) {
	return s.queryChunks(ctx, false)
}

func (s *SQLiteStore) EmbeddedChunks(ctx context.Context) ([]ChunkRow, error) {
	return s.queryChunks(ctx, true)
}

func (s *SQLiteStore) queryChunks(ctx context.Context, embedded bool) ([]ChunkRow, error) {
	var tmpl, embCol, where string
	switch s.schema {
	case SchemaVector:
		tmpl, embCol, where = vectorChunksQuery, ", c.embedding", "WHERE c.embedding IS NOT NULL"
	case SchemaLightweight:
		tmpl, embCol, where = lightweightChunksQuery, ", embedding", "WHERE embedding IS NOT NULL"
	default:
		return nil, nil
	}
	if !embedded {
		embCol, where = "", ""
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(tmpl, embCol, where))
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var out []ChunkRow
	for rows.Next() {
		var (
			r             ChunkRow
			title, author sql.NullString
			year          sql.NullString
			blob          []byte
		)
		dest := []any{&r.ID, &r.Filename, &title, &author, &year, &r.Index, &r.Text}
		if embedded {
			dest = append(dest, &blob)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		r.Title = title.String
		r.Author = author.String
		r.Year = parseYear(year)
		if embedded {
			if r.Embedding, err = decodeEmbedding(blob); err != nil {
				return nil, fmt.Errorf("chunk %d: %w", r.ID, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Documents(ctx context.Context) ([]DocumentSummary, error) {
	var q string
	switch s.schema {
	case SchemaVector:
		q = `
			SELECT d.filename, d.title, d.author, d.year, COUNT(c.id), COUNT(c.embedding)
			FROM documents d
			LEFT JOIN chunks c ON c.document_id = d.id
			GROUP BY d.id
			ORDER BY d.filename`
	case SchemaLightweight:
		q = `
			SELECT filename, MIN(title), MIN(authors), MIN(year), COUNT(*), COUNT(embedding)
			FROM paper_chunks
			GROUP BY filename
			ORDER BY filename`
	default:
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentSummary
	for rows.Next() {
		var (
			d             DocumentSummary
			title, author sql.NullString
			year          sql.NullString
		)
		if err := rows.Scan(&d.Filename, &title, &author, &year, &d.Chunks, &d.Embedded); err != nil {
			return nil, err
		}
		d.Title, d.Author, d.Year = title.String, author.String, parseYear(year)
		out = append(out, d)
	}
	return out, rows.Err()
}

// Dimensions asks sqlite-vec for the length of the first stored embedding.
func (s *SQLiteStore) Dimensions(ctx context.Context) (int, error) {
	var table string
	switch s.schema {
	case SchemaVector:
		table = "chunks"
	case SchemaLightweight:
		table = "paper_chunks"
	default:
		return 0, nil
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT vec_length(embedding) FROM "+table+" WHERE embedding IS NOT NULL ORDER BY id LIMIT 1",
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

func (s *SQLiteStore) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil && strings.Contains(err.Error(), "no such table") {
		return "", nil
	}
	return value, err
}

func (s *SQLiteStore) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullYear(y int) any {
	if y == 0 {
		return nil
	}
	return y
}

// parseYear accepts integer and text years; corpora built by other tools
// store either.
func parseYear(v sql.NullString) int {
	if !v.Valid {
		return 0
	}
	s := strings.TrimSpace(v.String)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	y, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return y
}

func encodeEmbedding(v []float32) (any, error) {
	if len(v) == 0 {
		return nil, nil
	}
	return sqlite_vec.SerializeFloat32(v)
}

// decodeEmbedding reverses sqlite_vec.SerializeFloat32. JSON arrays are also
// accepted for corpora that stored embeddings as text.
func decodeEmbedding(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if b[0] == '[' {
		var v []float32
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, fmt.Errorf("decode json embedding: %w", err)
		}
		return v, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
