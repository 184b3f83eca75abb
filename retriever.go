package loki

import (
	"github.com/mikeplath/loki/rag"
)

// Retriever runs the query-side pipeline: embed, normalise, search the
// store, threshold by similarity and enrich with chunk text and metadata.
type Retriever = rag.Retriever

// RetrieverOption configures a Retriever.
type RetrieverOption = rag.RetrieverOption

// NewRetriever creates a Retriever over an open store and an embedder.
func NewRetriever(store *VectorStore, embedder Embedder, options ...RetrieverOption) *Retriever {
	return rag.NewRetriever(store, embedder, options...)
}

// WithTopK sets the maximum number of results per query.
func WithTopK(k int) RetrieverOption {
	return rag.WithTopK(k)
}

// WithMinSimilarity drops results scoring below the threshold.
func WithMinSimilarity(s float64) RetrieverOption {
	return rag.WithMinSimilarity(s)
}
