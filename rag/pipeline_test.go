package rag

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLibrary lays out PDFs whose "extraction" is faked per file name.
func fakeLibrary(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := []string{
		"library-water/boiling.pdf",
		"library-water/filters.pdf",
		"fire/ignition.pdf",
		"broken/corrupt.pdf",
	}
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))
	}
	return root
}

// fakeNative produces text keyed on the file name and fails for corrupt.pdf.
func fakeNative(path string, _ int) ([]string, error) {
	if strings.Contains(path, "corrupt") {
		return nil, os.ErrInvalid
	}
	base := filepath.Base(path)
	return []string{
		"all about " + base + " page one " + strings.Repeat("content ", 10),
		"all about " + base + " page two " + strings.Repeat("content ", 10),
	}, nil
}

func newFakeIndexer(t *testing.T, opts ...IndexerOption) *Indexer {
	t.Helper()
	e := NewExtractor()
	e.native = fakeNative
	return NewIndexer(e, NewTextChunker(), opts...)
}

func TestIndexerRun(t *testing.T) {
	root := fakeLibrary(t)
	shardDir := t.TempDir()

	summary, err := newFakeIndexer(t).Run(context.Background(), root, shardDir)
	require.NoError(t, err)

	assert.Equal(t, 4, summary.TotalFilesFound)
	assert.Equal(t, 3, summary.Successful)
	assert.Equal(t, 1, summary.Failed, "the corrupt document is skipped, not fatal")
	assert.Equal(t, 0, summary.Skipped)

	shards, err := ListShards(shardDir)
	require.NoError(t, err)
	assert.Len(t, shards, 3)

	// The summary itself is persisted beside the shards.
	data, err := os.ReadFile(filepath.Join(shardDir, shardSummaryName))
	require.NoError(t, err)
	var loaded IndexSummary
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, summary.Successful, loaded.Successful)
}

func TestIndexerCategoryStripsLibraryPrefix(t *testing.T) {
	root := fakeLibrary(t)
	shardDir := t.TempDir()

	_, err := newFakeIndexer(t).Run(context.Background(), root, shardDir)
	require.NoError(t, err)

	shards, err := ListShards(shardDir)
	require.NoError(t, err)

	categories := map[string]bool{}
	for _, path := range shards {
		shard, err := ReadShard(path)
		require.NoError(t, err)
		categories[shard.Metadata.Category] = true
		assert.NotEmpty(t, shard.Chunks)
		assert.Equal(t, 2, shard.Metadata.PageCount)
		for _, c := range shard.Chunks {
			assert.Equal(t, shard.Metadata.Category, c.Metadata.Category)
		}
	}
	assert.True(t, categories["water"], "library- prefix must be stripped")
	assert.True(t, categories["fire"])
	assert.False(t, categories["library-water"])
}

func TestIndexerResumeSkipsExistingShards(t *testing.T) {
	root := fakeLibrary(t)
	shardDir := t.TempDir()

	first, err := newFakeIndexer(t).Run(context.Background(), root, shardDir)
	require.NoError(t, err)
	require.Equal(t, 3, first.Successful)

	second, err := newFakeIndexer(t, WithResume(true)).Run(context.Background(), root, shardDir)
	require.NoError(t, err)
	assert.Equal(t, 3, second.Skipped)
	assert.Equal(t, 0, second.Successful)
	assert.Equal(t, 1, second.Failed)
}

func TestIndexerLimit(t *testing.T) {
	root := fakeLibrary(t)
	shardDir := t.TempDir()

	summary, err := newFakeIndexer(t, WithLimit(2)).Run(context.Background(), root, shardDir)
	require.NoError(t, err)
	assert.Len(t, summary.Results, 2)
	assert.Equal(t, 4, summary.TotalFilesFound)
}

func TestIndexerConcurrentWorkers(t *testing.T) {
	root := fakeLibrary(t)
	shardDir := t.TempDir()

	summary, err := newFakeIndexer(t, WithWorkers(4)).Run(context.Background(), root, shardDir)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Successful)
}

func TestFindPDFs(t *testing.T) {
	root := fakeLibrary(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))

	pdfs, err := FindPDFs(root)
	require.NoError(t, err)
	assert.Len(t, pdfs, 4)
	for _, p := range pdfs {
		assert.True(t, strings.HasSuffix(strings.ToLower(p), ".pdf"))
	}
}

func TestCategoryOf(t *testing.T) {
	assert.Equal(t, "water", categoryOf("library-water/boiling.pdf"))
	assert.Equal(t, "fire", categoryOf("fire/ignition.pdf"))
	assert.Equal(t, "nested", categoryOf("misc/nested/doc.pdf"))
	assert.Equal(t, "", categoryOf("rootdoc.pdf"))
}
