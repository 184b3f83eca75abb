package rag

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func libraryTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := []string{
		"medical/first-aid.pdf",
		"library-water/purification.pdf",
		"misc/deep/nested/rare-manual.pdf",
	}
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o644))
	}
	return root
}

func TestResolveDirectCategory(t *testing.T) {
	r := NewResolver(libraryTree(t))
	path, err := r.Resolve("medical", "first-aid.pdf")
	require.NoError(t, err)
	assert.Equal(t, "first-aid.pdf", filepath.Base(path))
	assert.Contains(t, path, "medical")
}

func TestResolveLibraryPrefix(t *testing.T) {
	root := libraryTree(t)
	r := NewResolver(root)

	// Category stored stripped; the on-disk directory carries the prefix.
	path, err := r.Resolve("water", "purification.pdf")
	require.NoError(t, err)
	assert.Contains(t, path, "library-water")

	// A caller passing the prefixed form resolves to the same file.
	again, err := r.Resolve("library-water", "purification.pdf")
	require.NoError(t, err)
	assert.Equal(t, path, again)
}

func TestResolveRecursiveDescent(t *testing.T) {
	r := NewResolver(libraryTree(t))
	path, err := r.Resolve("wrong-category", "rare-manual.pdf")
	require.NoError(t, err)
	assert.Equal(t, "rare-manual.pdf", filepath.Base(path))
}

func TestResolveNotFound(t *testing.T) {
	r := NewResolver(libraryTree(t))
	_, err := r.Resolve("medical", "missing.pdf")
	assert.ErrorIs(t, err, ErrSourceNotFound)

	_, err = r.Resolve("medical", "")
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestOpenUsesResolvedPath(t *testing.T) {
	var opened string
	r := NewResolver(libraryTree(t), WithOpener(func(path string) error {
		opened = path
		return nil
	}))

	require.NoError(t, r.Open("medical", "first-aid.pdf"))
	assert.Equal(t, "first-aid.pdf", filepath.Base(opened))

	err := r.Open("medical", "missing.pdf")
	assert.ErrorIs(t, err, ErrSourceNotFound)
	assert.Equal(t, "first-aid.pdf", filepath.Base(opened), "opener must not run on a miss")
}
