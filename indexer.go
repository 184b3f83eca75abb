package loki

import (
	"github.com/mikeplath/loki/rag"
)

// Indexer walks a PDF library and writes one chunk shard per document.
type Indexer = rag.Indexer

// IndexerOption configures an Indexer.
type IndexerOption = rag.IndexerOption

// IndexSummary is the aggregate outcome of an indexing run.
type IndexSummary = rag.IndexSummary

// NewIndexer creates an Indexer around an extractor and a chunker.
func NewIndexer(extractor *Extractor, chunker *rag.TextChunker, options ...IndexerOption) *Indexer {
	return rag.NewIndexer(extractor, chunker, options...)
}

// WithWorkers bounds the number of documents processed concurrently.
func WithWorkers(n int) IndexerOption {
	return rag.WithWorkers(n)
}

// WithResume skips documents whose shard already exists.
func WithResume(resume bool) IndexerOption {
	return rag.WithResume(resume)
}

// WithLimit processes only the first n documents.
func WithLimit(n int) IndexerOption {
	return rag.WithLimit(n)
}

// Builder encodes every chunk of a shard directory and persists the
// searchable index directory.
type Builder = rag.Builder

// BuilderOption configures a Builder.
type BuilderOption = rag.BuilderOption

// NewBuilder creates a Builder around an embedder.
func NewBuilder(embedder Embedder, options ...BuilderOption) *Builder {
	return rag.NewBuilder(embedder, options...)
}

// WithBatchSize sets the embedding batch size.
func WithBatchSize(n int) BuilderOption {
	return rag.WithBatchSize(n)
}

// WithIndexType selects the ANN backend (Flat, IVF or Chromem).
func WithIndexType(t string) BuilderOption {
	return rag.WithIndexType(t)
}
