package store

// Document is one ingested source file. Year is 0 when unknown.
type Document struct {
	ID       int64
	Filename string
	Title    string
	Author   string
	Year     int
	FullText string
}

// Chunk is a piece of a Document as written by ingestion. Start and End
// are rune offsets into the document text. Embedding is nil when the
// provider failed or embedding was disabled.
type Chunk struct {
	Index     int
	Text      string
	Start     int
	End       int
	Embedding []float32
}

// ChunkRow is a stored chunk joined with its document's metadata, in the
// shape the retriever consumes. It is the same for both schemas.
type ChunkRow struct {
	ID        int64
	Filename  string
	Title     string
	Author    string
	Year      int
	Index     int
	Text      string
	Embedding []float32
}

// DocumentSummary lists a document with its chunk count.
type DocumentSummary struct {
	Filename string
	Title    string
	Author   string
	Year     int
	Chunks   int
	Embedded int
}
