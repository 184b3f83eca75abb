package loki

import (
	"github.com/mikeplath/loki/rag"
)

// VectorStore is the read-only view of a persisted index directory:
// the ANN index plus the chunk text and metadata sidecars. Concurrent
// searches are safe.
type VectorStore = rag.Store

// Manifest summarises an index build and is validated on load.
type Manifest = rag.Manifest

// SearchResult is one ranked passage with provenance and similarity.
type SearchResult = rag.SearchResult

// OpenVectorStore loads an index directory. modelName, when non-empty,
// must match the embedding model recorded in the manifest.
func OpenVectorStore(dir, modelName string) (*VectorStore, error) {
	return rag.OpenStore(dir, modelName)
}

// Index type names accepted by the builder and recorded in manifests.
const (
	IndexTypeFlat    = rag.IndexTypeFlat
	IndexTypeIVF     = rag.IndexTypeIVF
	IndexTypeChromem = rag.IndexTypeChromem
)
