package metadata

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Override is a curated bibliographic record for one file. Empty fields
// leave the inferred value alone.
type Override struct {
	Title  string `yaml:"title"`
	Author string `yaml:"author"`
	Year   int    `yaml:"year"`
}

// Overrides maps a filename to its curated record. Keys are either the
// corpus-relative path or the bare file name.
type Overrides map[string]Override

// OverrideStrategy is the strategy name recorded for overridden fields.
const OverrideStrategy = "override"

// LoadOverrides reads a YAML (or JSON) overrides file. An empty path yields
// nil overrides.
func LoadOverrides(path string) (Overrides, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open metadata overrides: %w", err)
	}
	defer f.Close()
	return DecodeOverrides(f)
}

// DecodeOverrides parses an overrides document.
func DecodeOverrides(r io.Reader) (Overrides, error) {
	var o Overrides
	if err := yaml.NewDecoder(r).Decode(&o); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode metadata overrides: %w", err)
	}
	for name, ov := range o {
		if ov.Year != 0 && (ov.Year < 1800 || ov.Year > 2100) {
			return nil, fmt.Errorf("metadata override %s: implausible year %d", name, ov.Year)
		}
	}
	return o, nil
}

// Lookup finds the override for filename, trying the full slash-separated
// path first and then the base name.
func (o Overrides) Lookup(filename string) (Override, bool) {
	if len(o) == 0 || filename == "" {
		return Override{}, false
	}
	if ov, ok := o[filepath.ToSlash(filename)]; ok {
		return ov, true
	}
	ov, ok := o[filepath.Base(filename)]
	return ov, ok
}

// apply copies the override's non-empty fields into m.
func (ov Override) apply(m *Metadata) {
	if t := strings.TrimSpace(ov.Title); t != "" {
		m.Title, m.TitleFrom = t, OverrideStrategy
	}
	if a := strings.TrimSpace(ov.Author); a != "" {
		m.Author, m.AuthorFrom = a, OverrideStrategy
	}
	if ov.Year > 0 {
		m.Year, m.YearFrom = ov.Year, OverrideStrategy
	}
}
