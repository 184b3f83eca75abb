package loki

import (
	"github.com/mikeplath/loki/rag"
)

// Chunk is a contiguous passage of one document: its ordinal, its text and
// the page it starts on.
type Chunk = rag.Chunk

// Chunker defines the interface for text chunking implementations.
type Chunker = rag.Chunker

// ChunkerOption configures the default paragraph-first chunker.
type ChunkerOption = rag.TextChunkerOption

// NewChunker creates the default chunker: paragraph-first splitting with a
// sentence fallback for wall-of-text pages, bounded overlap across
// paragraph splits, and a consolidation pass that caps the chunk count per
// document.
func NewChunker(options ...ChunkerOption) *rag.TextChunker {
	return rag.NewTextChunker(options...)
}

// ChunkSize sets the maximum characters per chunk.
func ChunkSize(size int) ChunkerOption {
	return rag.ChunkSize(size)
}

// ChunkOverlap sets the character overlap carried across paragraph splits.
func ChunkOverlap(overlap int) ChunkerOption {
	return rag.ChunkOverlap(overlap)
}

// MaxChunksPerDoc caps the chunk count of one document; excess chunks are
// consolidated.
func MaxChunksPerDoc(n int) ChunkerOption {
	return rag.MaxChunksPerDoc(n)
}
