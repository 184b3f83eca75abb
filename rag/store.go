package rag

import (
	"fmt"
	"os"
	"path/filepath"
)

// Store is the read-only view of a persisted index directory. After Open
// it holds no mutable state; concurrent Search calls are safe.
type Store struct {
	dir      string
	index    ANNIndex
	chunks   []string
	metadata []ChunkMeta
	manifest Manifest
}

// Hit is one row returned by Store.Search, before retriever-level
// thresholding and enrichment.
type Hit struct {
	// VectorID is the row index in the index and both sidecars.
	VectorID int
	// Text is the chunk content.
	Text string
	// Metadata is the chunk's provenance record.
	Metadata ChunkMeta
	// Similarity is the cosine similarity in [-1, 1].
	Similarity float64
}

// OpenStore loads an index directory and validates its invariants. The
// caller's embedding model name, when non-empty, must match the manifest;
// querying with a different model would silently return noise.
func OpenStore(dir, modelName string) (*Store, error) {
	manifestPath := filepath.Join(dir, ManifestFile)
	var manifest Manifest
	if err := readJSON(manifestPath, &manifest); err != nil {
		return nil, &StoreError{Kind: StoreMissingArtifact, Dir: dir, Err: err}
	}
	var status BuildStatus
	if err := readJSON(filepath.Join(dir, StatusFile), &status); err != nil {
		return nil, &StoreError{Kind: StoreMissingArtifact, Dir: dir, Err: err}
	}
	if status.Status != StatusComplete {
		return nil, &StoreError{Kind: StoreMissingArtifact, Dir: dir,
			Err: fmt.Errorf("build status %q", status.Status)}
	}
	if modelName != "" && modelName != manifest.ModelName {
		return nil, &StoreError{Kind: StoreModelMismatch, Dir: dir,
			Err: fmt.Errorf("index built with %q, caller uses %q", manifest.ModelName, modelName)}
	}

	var chunks []string
	if err := readJSON(filepath.Join(dir, ChunksFile), &chunks); err != nil {
		return nil, &StoreError{Kind: StoreMissingArtifact, Dir: dir, Err: err}
	}
	var metadata []ChunkMeta
	if err := readJSON(filepath.Join(dir, MetadataFile), &metadata); err != nil {
		return nil, &StoreError{Kind: StoreMissingArtifact, Dir: dir, Err: err}
	}

	indexPath := filepath.Join(dir, ANNIndexFile)
	if _, err := os.Stat(indexPath); err != nil {
		return nil, &StoreError{Kind: StoreMissingArtifact, Dir: dir, Err: err}
	}
	index, err := LoadANNIndex(indexPath, manifest.IndexType)
	if err != nil {
		return nil, &StoreError{Kind: StoreMissingArtifact, Dir: dir, Err: err}
	}
	if ci, ok := index.(*chromemIndex); ok {
		ci.setDim(manifest.EmbeddingDim)
	}

	if index.Len() != len(chunks) || index.Len() != len(metadata) {
		return nil, &StoreError{Kind: StoreLengthMismatch, Dir: dir,
			Err: fmt.Errorf("index=%d chunks=%d metadata=%d", index.Len(), len(chunks), len(metadata))}
	}
	for i, m := range metadata {
		if m.VectorID != i {
			return nil, &StoreError{Kind: StoreLengthMismatch, Dir: dir,
				Err: fmt.Errorf("metadata row %d has vector_id %d", i, m.VectorID)}
		}
	}

	return &Store{
		dir:      dir,
		index:    index,
		chunks:   chunks,
		metadata: metadata,
		manifest: manifest,
	}, nil
}

// Search returns up to k hits ordered by descending similarity. Fewer hits
// are returned when the index holds fewer rows.
func (s *Store) Search(query []float64, k int) ([]Hit, error) {
	if k > s.index.Len() {
		k = s.index.Len()
	}
	if k <= 0 {
		return nil, nil
	}
	ids, scores, err := s.index.Search(query, k)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}
	hits := make([]Hit, 0, len(ids))
	for i, id := range ids {
		if id < 0 || id >= len(s.chunks) {
			continue
		}
		hits = append(hits, Hit{
			VectorID:   id,
			Text:       s.chunks[id],
			Metadata:   s.metadata[id],
			Similarity: scores[i],
		})
	}
	return hits, nil
}

// Len returns the number of indexed chunks.
func (s *Store) Len() int { return s.index.Len() }

// Dim returns the embedding dimension.
func (s *Store) Dim() int { return s.manifest.EmbeddingDim }

// Manifest returns the build manifest.
func (s *Store) Manifest() Manifest { return s.manifest }
