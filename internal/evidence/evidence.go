// Package evidence filters ranked chunks into a bounded prompt context and
// a list of citations.
package evidence

import (
	"fmt"
	"strconv"
	"strings"

	"clinrag/internal/log"
	"clinrag/internal/metadata"
	"clinrag/internal/retriever"
)

// Options tunes Assemble. The two floors are independent: a keyword score
// of 5 is not equivalent to a cosine similarity of 0.8.
type Options struct {
	MinSimilarity   float64
	MinKeywordScore float64
	// ExcerptChars bounds each chunk's contribution to the context, in runes.
	ExcerptChars int
	// MaxCitations caps the returned citation list; 0 means no cap.
	MaxCitations int
	// Overrides replaces stored metadata per filename.
	Overrides metadata.Overrides
}

// DefaultOptions returns the stock thresholds.
func DefaultOptions() Options {
	return Options{
		MinSimilarity:   0.8,
		MinKeywordScore: 5,
		ExcerptChars:    800,
	}
}

// Citation is the bibliographic record for one piece of surviving evidence.
// Year is 0 when unknown.
type Citation struct {
	Filename string             `json:"filename"`
	Title    string             `json:"title"`
	Author   string             `json:"author,omitempty"`
	Year     int                `json:"year,omitempty"`
	Score    float64            `json:"score"`
	Strategy retriever.Strategy `json:"strategy"`
}

// String renders "<name> (<author>, <year>)", dropping whichever parts are
// unknown. Placeholder values are never shown.
func (c Citation) String() string {
	name := metadata.Stem(c.Filename)
	if name == "" || name == "." {
		name = c.Title
	}

	var parts []string
	if a := metadata.DisplayAuthor(c.Author); a != "" {
		parts = append(parts, a)
	}
	if c.Year > 0 {
		parts = append(parts, strconv.Itoa(c.Year))
	}
	if len(parts) == 0 {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, strings.Join(parts, ", "))
}

// IsPlaceholder reports whether s carries no real author information,
// e.g. "None.", "Unknown Author" or "nan, nan".
func IsPlaceholder(s string) bool {
	return metadata.IsPlaceholderAuthor(s)
}

// Evidence is the output of Assemble.
type Evidence struct {
	// Context is the excerpts of surviving chunks, separated by blank lines.
	Context   string
	Citations []Citation
	// Used holds the surviving results in rank order.
	Used []retriever.Result
}

// Empty reports whether no result survived.
func (e Evidence) Empty() bool { return len(e.Used) == 0 }

// Assemble applies the relevance floor for each result's strategy, keeps
// the first result per document title, fills missing author and year from
// the filename and chunk text, and builds the prompt context.
func Assemble(results []retriever.Result, opts Options) Evidence {
	var ev Evidence
	seen := make(map[string]bool)
	excerpts := make([]string, 0, len(results))

	for _, r := range results {
		if !passesFloor(r, opts) {
			continue
		}
		key := dedupKey(r)
		if seen[key] {
			continue
		}
		seen[key] = true

		c := Citation{
			Filename: r.Chunk.Filename,
			Title:    r.Chunk.Title,
			Author:   r.Chunk.Author,
			Year:     r.Chunk.Year,
			Score:    r.Score,
			Strategy: r.Strategy,
		}
		resolve(&c, r.Chunk.Text, opts.Overrides)

		ev.Used = append(ev.Used, r)
		ev.Citations = append(ev.Citations, c)
		excerpts = append(excerpts, Excerpt(r.Chunk.Text, opts.ExcerptChars))
	}

	ev.Context = strings.Join(excerpts, "\n\n")
	if opts.MaxCitations > 0 && len(ev.Citations) > opts.MaxCitations {
		ev.Citations = ev.Citations[:opts.MaxCitations]
	}
	return ev
}

func passesFloor(r retriever.Result, opts Options) bool {
	switch r.Strategy {
	case retriever.StrategyEmbedding:
		return r.Score >= opts.MinSimilarity
	case retriever.StrategyKeyword:
		return r.Score >= opts.MinKeywordScore
	default:
		return false
	}
}

// dedupKey is the document title, or the filename for untitled rows so they
// do not collapse into one.
func dedupKey(r retriever.Result) string {
	if t := strings.TrimSpace(r.Chunk.Title); t != "" {
		return "t:" + t
	}
	return "f:" + r.Chunk.Filename
}

// resolve applies the override for the citation's file, then fills a
// placeholder author or a missing year from the filename and chunk text.
// Overrides beat stored values; stored values beat filename heuristics.
func resolve(c *Citation, text string, overrides metadata.Overrides) {
	if ov, ok := overrides.Lookup(c.Filename); ok {
		if ov.Title != "" {
			c.Title = ov.Title
		}
		if ov.Author != "" {
			c.Author = ov.Author
		}
		if ov.Year > 0 {
			c.Year = ov.Year
		}
	}
	needAuthor := IsPlaceholder(c.Author)
	if !needAuthor && c.Year > 0 {
		return
	}
	year, author := metadata.FromFilename(c.Filename, text)
	if needAuthor {
		c.Author = author
	}
	if c.Year == 0 {
		c.Year = year
	}
	log.Debugf("resolved citation %s: author=%q year=%d", c.Filename, c.Author, c.Year)
}

// Excerpt returns the first n runes of s. n <= 0 returns s unchanged.
func Excerpt(s string, n int) string {
	if n <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
