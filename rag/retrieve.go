package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/mikeplath/loki/rag/providers"
)

// Search defaults, overridable per Retriever and per call site config.
const (
	DefaultTopK          = 5
	DefaultMinSimilarity = 0.0
)

// SearchResult is one ranked passage with provenance, the unit handed to
// the prompt composer and to callers of the query interface.
type SearchResult struct {
	VectorID   int       `json:"vector_id"`
	Text       string    `json:"text"`
	Metadata   ChunkMeta `json:"metadata"`
	Similarity float64   `json:"similarity"`
}

// Retriever runs the query-side pipeline: embed, normalise, search the
// store, threshold and enrich. It borrows the store read-only and may be
// used from concurrent readers as long as the embedder is thread safe.
type Retriever struct {
	store         *Store
	embedder      providers.Embedder
	topK          int
	minSimilarity float64
	logger        Logger
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithTopK sets the maximum number of results per query.
func WithTopK(k int) RetrieverOption {
	return func(r *Retriever) { r.topK = k }
}

// WithMinSimilarity drops results scoring below the threshold.
func WithMinSimilarity(s float64) RetrieverOption {
	return func(r *Retriever) { r.minSimilarity = s }
}

// WithRetrieverLogger sets the logger.
func WithRetrieverLogger(l Logger) RetrieverOption {
	return func(r *Retriever) { r.logger = l }
}

// NewRetriever creates a Retriever over an open store and an embedder. The
// embedder must match the model recorded in the store manifest; OpenStore
// enforces this when given the model name.
func NewRetriever(store *Store, embedder providers.Embedder, options ...RetrieverOption) *Retriever {
	r := &Retriever{
		store:         store,
		embedder:      embedder,
		topK:          DefaultTopK,
		minSimilarity: DefaultMinSimilarity,
		logger:        GlobalLogger,
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Retrieve returns the highest-similarity passages for a query, ordered by
// descending similarity. Empty and whitespace-only queries fail before any
// index read.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]SearchResult, error) {
	return r.RetrieveK(ctx, query, r.topK, r.minSimilarity)
}

// RetrieveK is Retrieve with per-call k and similarity threshold.
func (r *Retriever) RetrieveK(ctx context.Context, query string, k int, minSimilarity float64) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidQuery)
	}
	if k <= 0 {
		k = DefaultTopK
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	NormalizeL2(vec)

	hits, err := r.store.Search(vec, k)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		if h.Similarity < minSimilarity {
			continue
		}
		results = append(results, SearchResult{
			VectorID:   h.VectorID,
			Text:       h.Text,
			Metadata:   h.Metadata,
			Similarity: h.Similarity,
		})
	}
	r.logger.Debug("query retrieved", "results", len(results), "k", k, "min_similarity", minSimilarity)
	return results, nil
}
