package rag

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// shardSummaryName is the indexing summary file, skipped by the builder.
const shardSummaryName = "indexing_summary.json"

// ShardChunk is one chunk as persisted in a document shard.
type ShardChunk struct {
	ChunkID  int       `json:"chunk_id"`
	Text     string    `json:"text"`
	Metadata ChunkMeta `json:"metadata"`
}

// DocumentShard is the per-document output of the indexing stage and the
// input of the vector index builder.
type DocumentShard struct {
	Metadata DocumentMeta `json:"metadata"`
	Chunks   []ShardChunk `json:"chunks"`
}

// NewDocumentShard assembles a shard from extracted chunks and the owning
// document's metadata.
func NewDocumentShard(meta DocumentMeta, chunks []Chunk) DocumentShard {
	shard := DocumentShard{Metadata: meta, Chunks: make([]ShardChunk, 0, len(chunks))}
	for _, c := range chunks {
		shard.Chunks = append(shard.Chunks, ShardChunk{
			ChunkID: c.ChunkID,
			Text:    c.Text,
			Metadata: ChunkMeta{
				DocumentMeta: meta,
				ChunkID:      c.ChunkID,
				PageNum:      c.PageNum,
			},
		})
	}
	return shard
}

// ShardFileName derives the shard filename for a document. The name embeds
// a hash of the relative path so documents with identical stems in
// different categories never collide.
func ShardFileName(relativePath string) string {
	stem := filepath.Base(relativePath)
	if ext := filepath.Ext(stem); ext != "" {
		stem = stem[:len(stem)-len(ext)]
	}
	sanitized := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, stem)
	sum := md5.Sum([]byte(relativePath))
	return fmt.Sprintf("%s_%x.json", sanitized, sum[:4])
}

// WriteShard persists a shard under dir using its derived filename and
// returns the full path.
func WriteShard(dir string, shard DocumentShard) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create shard dir: %w", err)
	}
	path := filepath.Join(dir, ShardFileName(shard.Metadata.RelativePath))
	data, err := json.MarshalIndent(shard, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode shard: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write shard: %w", err)
	}
	return path, nil
}

// ReadShard loads a single shard file.
func ReadShard(path string) (DocumentShard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DocumentShard{}, fmt.Errorf("read shard: %w", err)
	}
	var shard DocumentShard
	if err := json.Unmarshal(data, &shard); err != nil {
		return DocumentShard{}, fmt.Errorf("decode shard %s: %w", path, err)
	}
	return shard, nil
}

// ListShards walks dir and returns every shard file, skipping the indexing
// summary.
func ListShards(dir string) ([]string, error) {
	var shards []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".json" || filepath.Base(path) == shardSummaryName {
			return nil
		}
		shards = append(shards, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list shards: %w", err)
	}
	return shards, nil
}
