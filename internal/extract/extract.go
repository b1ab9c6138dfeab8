// Package extract pulls plain text out of source documents.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrUnsupported is returned for file types with no extractor.
	ErrUnsupported = errors.New("unsupported document type")
	// ErrInsufficientText marks documents with too little extractable text,
	// typically scanned PDFs with no text layer.
	ErrInsufficientText = errors.New("insufficient extractable text")
)

// Text is the extracted content of one document, one entry per page. Plain
// text files are a single page.
type Text struct {
	Pages []string
}

// Full joins the pages with newlines.
func (t Text) Full() string {
	return strings.Join(t.Pages, "\n")
}

// FirstPage returns page 1, or "".
func (t Text) FirstPage() string {
	if len(t.Pages) == 0 {
		return ""
	}
	return t.Pages[0]
}

// File extracts text from path and rejects documents whose trimmed text is
// shorter than minChars runes.
func File(path string, minChars int) (Text, error) {
	var (
		t   Text
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		t, err = PDF(path)
	case ".txt", ".md":
		t, err = Plain(path)
	default:
		return Text{}, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupported)
	}
	if err != nil {
		return Text{}, err
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(t.Full())); n < minChars {
		return Text{}, fmt.Errorf("%s: %d chars: %w", filepath.Base(path), n, ErrInsufficientText)
	}
	return t, nil
}

// Plain reads a text file as a single page.
func Plain(path string) (Text, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Text{}, fmt.Errorf("read %s: %w", path, err)
	}
	s := string(b)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}
	return Text{Pages: []string{s}}, nil
}

// PDF extracts text page by page. Pages that fail to decode are left empty
// so page numbering is preserved.
func PDF(path string) (t Text, err error) {
	// The pdf reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return Text{}, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	n := r.NumPage()
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		s, err := p.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, s)
	}
	return Text{Pages: pages}, nil
}
