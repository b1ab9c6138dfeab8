// Package metadata infers bibliographic title, author and year from a
// document's text and filename. Each field is resolved by an ordered list of
// strategies; the first strategy that matches wins and its name is recorded.
package metadata

import (
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// UnknownAuthor is stored when no author strategy matches.
const UnknownAuthor = "Unknown"

// Year bounds accepted by the document strategies.
const (
	MinYear = 1980
	MaxYear = 2030
)

// Source is the input to Infer.
type Source struct {
	Filename string
	Pages    []string
	// Override fields, when set, win over every strategy.
	Override Override
}

// Metadata is the inferred bibliographic record. Year is 0 when absent.
type Metadata struct {
	Title      string
	Author     string
	Year       int
	TitleFrom  string
	AuthorFrom string
	YearFrom   string
}

// Strategy is one named extraction rule.
type Strategy[T any] struct {
	Name string
	Find func(d *Doc) (T, bool)
}

// Doc is the pre-split view of a Source shared by all strategies.
type Doc struct {
	Filename string
	// Lines are the non-blank, trimmed lines of the whole document.
	Lines []string
	// FirstPage holds the non-blank, trimmed lines of page 1.
	FirstPage []string
	// Title is the winning title, available to author strategies.
	Title string
}

// NewDoc prepares src for the strategies.
func NewDoc(src Source) *Doc {
	d := &Doc{Filename: src.Filename}
	for i, p := range src.Pages {
		lines := nonBlankLines(p)
		d.Lines = append(d.Lines, lines...)
		if i == 0 {
			d.FirstPage = lines
		}
	}
	return d
}

// TitleStrategies, AuthorStrategies and YearStrategies are tried in order.
var (
	TitleStrategies  = []Strategy[string]{titleMarker, titleFirstPage, titleFilename}
	AuthorStrategies = []Strategy[string]{authorMarker, authorNameShape, authorEtAl}
	YearStrategies   = []Strategy[int]{yearMarker, yearFirstPageMax, yearJournal}
)

// Infer fills each field from src.Override, or else from the first
// matching strategy in its list.
func Infer(src Source) Metadata {
	d := NewDoc(src)
	var m Metadata
	src.Override.apply(&m)

	if m.TitleFrom == "" {
		m.Title, m.TitleFrom = first(d, TitleStrategies)
	}
	d.Title = m.Title

	if m.AuthorFrom == "" {
		m.Author, m.AuthorFrom = first(d, AuthorStrategies)
		if IsPlaceholderAuthor(m.Author) {
			m.Author, m.AuthorFrom = UnknownAuthor, ""
		}
	}

	if m.YearFrom == "" {
		m.Year, m.YearFrom = first(d, YearStrategies)
	}
	return m
}

// first returns the value and name of the first matching strategy.
func first[T any](d *Doc, strategies []Strategy[T]) (T, string) {
	for _, s := range strategies {
		if v, ok := s.Find(d); ok {
			return v, s.Name
		}
	}
	var zero T
	return zero, ""
}

func nonBlankLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func head(lines []string, n int) []string {
	if len(lines) > n {
		return lines[:n]
	}
	return lines
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

// Stem returns the filename without directory and extension.
func Stem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

var minorWords = map[string]bool{
	"of": true, "and": true, "in": true, "on": true, "with": true,
	"for": true, "to": true, "a": true, "an": true, "the": true,
}

// TitleFromFilename turns "anemia-in_older-adults" into
// "Anemia in Older Adults".
func TitleFromFilename(filename string) string {
	words := strings.Fields(strings.NewReplacer("-", " ", "_", " ").Replace(Stem(filename)))
	for i, w := range words {
		if i > 0 && minorWords[strings.ToLower(w)] {
			words[i] = strings.ToLower(w)
			continue
		}
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
