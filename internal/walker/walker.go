// Package walker streams candidate source documents from a directory tree.
package walker

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// FileInfo holds metadata about a discovered source document.
type FileInfo struct {
	Seq     int // position in walk order, starting at 0
	Path    string
	RelPath string
	Size    int64
}

// MaxFileSize is the largest document considered (64 MiB).
const MaxFileSize = 64 << 20

// DefaultExts are the extensions ingested when none are given.
var DefaultExts = map[string]bool{"pdf": true, "txt": true, "md": true}

// IgnoreFile lists extra exclusion patterns, one per line, at the source
// root. Patterns add to the defaults.
const IgnoreFile = ".clinragignore"

var defaultIgnores = []string{
	"__pycache__",
	"node_modules",
}

// Walk traverses the tree rooted at root in lexical order and sends matching
// documents on the returned channel. Hidden directories and files, empty
// files and files over MaxFileSize are skipped. An inaccessible root is
// reported on the error channel and nothing is sent.
func Walk(ctx context.Context, root string, allowedExts map[string]bool) (<-chan FileInfo, <-chan error) {
	if allowedExts == nil {
		allowedExts = DefaultExts
	}
	files := make(chan FileInfo, 64)
	errs := make(chan error, 1)

	go func() {
		defer close(files)
		defer close(errs)

		absRoot, err := filepath.Abs(root)
		if err != nil {
			errs <- err
			return
		}
		st, err := os.Stat(absRoot)
		if err != nil {
			errs <- fmt.Errorf("open source directory: %w", err)
			return
		}
		if !st.IsDir() {
			errs <- fmt.Errorf("open source directory: %s is not a directory", root)
			return
		}

		ignores := loadIgnorePatterns(absRoot)
		seq := 0

		err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == absRoot {
					return err
				}
				return nil // skip unreadable entries, keep walking
			}
			if path == absRoot {
				return nil
			}

			name := d.Name()
			rel, _ := filepath.Rel(absRoot, path)
			rel = filepath.ToSlash(rel)

			if d.IsDir() {
				if strings.HasPrefix(name, ".") || matchesIgnore(name, rel, ignores) {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasPrefix(name, ".") || d.Type()&fs.ModeSymlink != 0 {
				return nil
			}

			ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
			if !allowedExts[ext] || matchesIgnore(name, rel, ignores) {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return nil
			}
			if info.Size() > MaxFileSize || info.Size() == 0 {
				return nil
			}

			select {
			case files <- FileInfo{Seq: seq, Path: path, RelPath: rel, Size: info.Size()}:
				seq++
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})
		if err != nil {
			errs <- err
		}
	}()

	return files, errs
}

// loadIgnorePatterns returns the default patterns plus any listed in
// IgnoreFile at the source root. Blank lines and # comments are ignored.
func loadIgnorePatterns(root string) []string {
	patterns := slices.Clone(defaultIgnores)
	data, err := os.ReadFile(filepath.Join(root, IgnoreFile))
	if err != nil {
		return patterns
	}
	for line := range strings.Lines(string(data)) {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			patterns = append(patterns, line)
		}
	}
	return patterns
}

// matchesIgnore checks a name or slash-separated relative path against the
// patterns: exact name, path prefix, or glob.
func matchesIgnore(name, relPath string, patterns []string) bool {
	for _, p := range patterns {
		if name == p {
			return true
		}
		if strings.HasPrefix(relPath, p+"/") || relPath == p {
			return true
		}
		if matched, _ := filepath.Match(p, relPath); matched {
			return true
		}
		if matched, _ := filepath.Match(p, name); matched {
			return true
		}
	}
	return false
}
