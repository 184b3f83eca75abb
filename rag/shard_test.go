package rag

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMeta() DocumentMeta {
	return DocumentMeta{
		FileName:      "knots.pdf",
		FilePath:      "/library/camping/knots.pdf",
		RelativePath:  "camping/knots.pdf",
		Category:      "camping",
		FileSizeMB:    1.25,
		PageCount:     12,
		ProcessedDate: "2024-05-01T10:00:00Z",
	}
}

func TestShardRoundTrip(t *testing.T) {
	dir := t.TempDir()
	chunks := []Chunk{
		{ChunkID: 0, Text: "how to tie a bowline", PageNum: 1},
		{ChunkID: 1, Text: "how to tie a clove hitch", PageNum: 3},
	}
	shard := NewDocumentShard(sampleMeta(), chunks)

	path, err := WriteShard(dir, shard)
	require.NoError(t, err)

	loaded, err := ReadShard(path)
	require.NoError(t, err)
	assert.Equal(t, shard, loaded)
	assert.Equal(t, "how to tie a bowline", loaded.Chunks[0].Text)
	assert.Equal(t, 0, loaded.Chunks[0].Metadata.ChunkID)
	assert.Equal(t, 3, loaded.Chunks[1].Metadata.PageNum)
	assert.Equal(t, "camping", loaded.Chunks[1].Metadata.Category)
}

func TestShardFileNameCollisions(t *testing.T) {
	a := ShardFileName("medical/first-aid.pdf")
	b := ShardFileName("homesteading/first-aid.pdf")

	assert.NotEqual(t, a, b, "same stem in different categories must not collide")
	assert.True(t, filepath.Ext(a) == ".json")
	assert.Contains(t, a, "first_aid_")
}

func TestShardFileNameSanitized(t *testing.T) {
	name := ShardFileName("odd/We ird (v2).pdf")
	assert.NotContains(t, name[:len(name)-5], " ")
	assert.NotContains(t, name, "(")
}

func TestListShardsSkipsSummary(t *testing.T) {
	dir := t.TempDir()
	shard := NewDocumentShard(sampleMeta(), []Chunk{{Text: "x"}})
	_, err := WriteShard(dir, shard)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, shardSummaryName), []byte("{}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("n"), 0o644))

	shards, err := ListShards(dir)
	require.NoError(t, err)
	assert.Len(t, shards, 1)
}
