package walker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func collect(t *testing.T, root string) ([]FileInfo, error) {
	t.Helper()
	files, errs := Walk(context.Background(), root, nil)
	var out []FileInfo
	for f := range files {
		out = append(out, f)
	}
	return out, <-errs
}

func TestWalk_LexicalOrderAndFilters(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b-paper.pdf", "%PDF")
	writeFile(t, root, "a-notes.txt", "notes")
	writeFile(t, root, "sub/c.md", "# c")
	writeFile(t, root, "image.png", "png")
	writeFile(t, root, "empty.txt", "")
	writeFile(t, root, ".hidden.txt", "hidden")
	writeFile(t, root, ".cache/d.txt", "cached")
	writeFile(t, root, "skipme/e.txt", "ignored")
	writeFile(t, root, IgnoreFile, "# local\nskipme\n")

	got, err := collect(t, root)
	require.NoError(t, err)

	var rels []string
	for i, f := range got {
		assert.Equal(t, i, f.Seq)
		rels = append(rels, f.RelPath)
	}
	assert.Equal(t, []string{"a-notes.txt", "b-paper.pdf", "sub/c.md"}, rels)
}

func TestWalk_MissingRoot(t *testing.T) {
	got, err := collect(t, filepath.Join(t.TempDir(), "nope"))
	assert.Empty(t, got)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open source directory")
}

func TestWalk_RootIsFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "x.txt", "x")
	_, err := collect(t, filepath.Join(root, "x.txt"))
	assert.Error(t, err)
}

func TestMatchesIgnore(t *testing.T) {
	patterns := []string{"drafts", "*.bak.txt", "archive/old"}
	assert.True(t, matchesIgnore("drafts", "drafts", patterns))
	assert.True(t, matchesIgnore("x.bak.txt", "x.bak.txt", patterns))
	assert.True(t, matchesIgnore("p.pdf", "archive/old/p.pdf", patterns))
	assert.False(t, matchesIgnore("draftsman.txt", "draftsman.txt", patterns))
}
