package rag

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkShortTextSingleChunk(t *testing.T) {
	tc := NewTextChunker()
	chunks := tc.Chunk("a short document", []int{0})

	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].ChunkID)
	assert.Equal(t, "a short document", chunks[0].Text)
	assert.Equal(t, 1, chunks[0].PageNum)
}

func TestChunkEmptyText(t *testing.T) {
	tc := NewTextChunker()
	assert.Empty(t, tc.Chunk("", nil))
	assert.Empty(t, tc.Chunk("   \n\n  ", nil))
}

func TestChunkParagraphSplit(t *testing.T) {
	tc := NewTextChunker(ChunkSize(100), ChunkOverlap(20))

	var paras []string
	for i := 0; i < 10; i++ {
		paras = append(paras, strings.Repeat(fmt.Sprintf("p%d ", i), 15)) // ~45 chars each
	}
	text := strings.Join(paras, "\n\n")
	chunks := tc.Chunk(text, nil)

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), 2*tc.ChunkSize)
		assert.NotEmpty(t, strings.TrimSpace(c.Text))
	}
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkID)
	}
}

func TestChunkOverlapCarried(t *testing.T) {
	tc := NewTextChunker(ChunkSize(100), ChunkOverlap(20))

	first := strings.Repeat("alpha ", 15) // 90 chars
	second := strings.Repeat("beta ", 15) // 75 chars
	chunks := tc.Chunk(first+"\n\n"+second, nil)

	require.Len(t, chunks, 2)
	tail := chunks[0].Text[len(chunks[0].Text)-tc.ChunkOverlap:]
	assert.True(t, strings.HasPrefix(chunks[1].Text, tail),
		"second chunk should start with the overlap tail of the first")
	assert.Contains(t, chunks[1].Text, "beta")
}

func TestChunkSentenceFallback(t *testing.T) {
	tc := NewTextChunker(ChunkSize(80), ChunkOverlap(10))

	// One paragraph far over the chunk size, split only by periods.
	var b strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&b, "sentence number %d keeps going. ", i)
	}
	chunks := tc.Chunk(b.String(), nil)

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), 2*tc.ChunkSize)
		assert.True(t, strings.HasSuffix(strings.TrimSpace(c.Text), "."),
			"sentence groups should end on a period: %q", c.Text)
	}
}

func TestChunkConsolidationBoundsCount(t *testing.T) {
	tc := NewTextChunker(ChunkSize(50), ChunkOverlap(0), MaxChunksPerDoc(5))

	var paras []string
	for i := 0; i < 60; i++ {
		paras = append(paras, strings.Repeat(fmt.Sprintf("w%02d ", i), 10))
	}
	chunks := tc.Chunk(strings.Join(paras, "\n\n"), nil)

	assert.LessOrEqual(t, len(chunks), 5)
	assert.GreaterOrEqual(t, len(chunks), 1)
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkID)
	}
	// No content lost: every paragraph token family survives somewhere.
	joined := ""
	for _, c := range chunks {
		joined += c.Text
	}
	assert.Contains(t, joined, "w00")
	assert.Contains(t, joined, "w59")
}

func TestChunkPageNumbers(t *testing.T) {
	pages := []string{
		strings.Repeat("first page text ", 20),
		strings.Repeat("second page text ", 20),
		strings.Repeat("third page text ", 20),
	}
	text := strings.Join(pages, "\n\n")
	offsets := PageOffsets(pages)

	tc := NewTextChunker(ChunkSize(200), ChunkOverlap(0))
	chunks := tc.Chunk(text, offsets)

	require.Greater(t, len(chunks), 1)
	assert.Equal(t, 1, chunks[0].PageNum)
	last := 0
	for _, c := range chunks {
		assert.GreaterOrEqual(t, c.PageNum, last, "pages must be non-decreasing")
		assert.LessOrEqual(t, c.PageNum, len(pages))
		last = c.PageNum
	}
	assert.Greater(t, chunks[len(chunks)-1].PageNum, 1,
		"later chunks should land on later pages")
}

func TestPageOffsets(t *testing.T) {
	pages := []string{"abc", "defgh", "ij"}
	assert.Equal(t, []int{0, 5, 12}, PageOffsets(pages))
}
