package rag

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Index directory artifacts. Readers require all of them; the manifest and
// status file are written last so an aborted build is never loadable.
const (
	ANNIndexFile = "ann_index"
	ChunksFile   = "chunks"
	MetadataFile = "metadata"
	ManifestFile = "manifest.json"
	StatusFile   = "status.json"
)

// StatusComplete marks a finished build in the status file.
const StatusComplete = "complete"

// Manifest summarises an index build. It is written once at build
// completion and validated on every load.
type Manifest struct {
	CreationDate string `json:"creation_date"`
	ModelName    string `json:"model_name"`
	EmbeddingDim int    `json:"embedding_dim"`
	NumChunks    int    `json:"num_chunks"`
	NumDocuments int    `json:"num_documents"`
	IndexType    string `json:"index_type"`
}

// BuildStatus is the terminal marker of a build, written after every other
// artifact.
type BuildStatus struct {
	Status string   `json:"status"`
	Date   string   `json:"date"`
	Info   Manifest `json:"info"`
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
