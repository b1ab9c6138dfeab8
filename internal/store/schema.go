package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema identifies which table layout a corpus file uses.
type Schema int

const (
	SchemaNone Schema = iota
	SchemaVector
	SchemaLightweight
)

func (s Schema) String() string {
	switch s {
	case SchemaVector:
		return "vector"
	case SchemaLightweight:
		return "lightweight"
	default:
		return "none"
	}
}

// ParseSchema maps a config value to a Schema.
func ParseSchema(s string) (Schema, error) {
	switch s {
	case "vector":
		return SchemaVector, nil
	case "lightweight":
		return SchemaLightweight, nil
	default:
		return SchemaNone, fmt.Errorf("unknown corpus schema %q", s)
	}
}

const metaDDL = `
CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// vectorDDL stores documents and their chunks separately. Embeddings are
// little-endian float32 BLOBs, NULL when the provider failed.
const vectorDDL = `
CREATE TABLE IF NOT EXISTS documents (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    filename  TEXT NOT NULL UNIQUE,
    title     TEXT NOT NULL DEFAULT '',
    author    TEXT NOT NULL DEFAULT '',
    year      INTEGER,
    full_text TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    chunk_index INTEGER NOT NULL,
    chunk_text  TEXT NOT NULL,
    char_start  INTEGER NOT NULL DEFAULT 0,
    char_end    INTEGER NOT NULL DEFAULT 0,
    embedding   BLOB
);

CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id, chunk_index);
` + metaDDL

// lightweightDDL is a single denormalized table for keyword-only corpora.
const lightweightDDL = `
CREATE TABLE IF NOT EXISTS paper_chunks (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    filename    TEXT NOT NULL,
    title       TEXT,
    authors     TEXT,
    year        INTEGER,
    chunk_index INTEGER NOT NULL,
    chunk_text  TEXT NOT NULL,
    embedding   BLOB,
    created_at  TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
` + metaDDL

// Init creates the tables for schema if they don't exist.
func Init(db *sql.DB, schema Schema) error {
	var ddl string
	switch schema {
	case SchemaVector:
		ddl = vectorDDL
	case SchemaLightweight:
		ddl = lightweightDDL
	default:
		return fmt.Errorf("cannot initialize schema %s", schema)
	}
	_, err := db.Exec(ddl)
	return err
}

// DetectSchema inspects sqlite_master. A paper_chunks table wins over
// chunks, matching how corpora built by older tooling are read.
func DetectSchema(ctx context.Context, db *sql.DB) (Schema, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		return SchemaNone, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	tables := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return SchemaNone, err
		}
		tables[name] = true
	}
	if err := rows.Err(); err != nil {
		return SchemaNone, err
	}

	switch {
	case tables["paper_chunks"]:
		return SchemaLightweight, nil
	case tables["chunks"]:
		return SchemaVector, nil
	default:
		return SchemaNone, nil
	}
}
