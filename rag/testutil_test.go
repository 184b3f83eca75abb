package rag

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
)

// hashEmbedder is a deterministic embedder for tests: each word increments
// a hashed bucket, so texts sharing words score higher cosine similarity.
type hashEmbedder struct {
	dim  int
	fail map[string]bool // texts that refuse to encode
}

func newHashEmbedder() *hashEmbedder {
	return &hashEmbedder{dim: 32}
}

func (h *hashEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	if h.fail[text] {
		return nil, fmt.Errorf("cannot encode %q", text)
	}
	v := make([]float64, h.dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		f := fnv.New32a()
		f.Write([]byte(strings.Trim(word, ".,!?")))
		v[int(f.Sum32())%h.dim]++
	}
	return v, nil
}

func (h *hashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	rows := make([][]float64, len(texts))
	for i, t := range texts {
		row, err := h.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		rows[i] = row
	}
	return rows, nil
}

func (h *hashEmbedder) Dim() int          { return h.dim }
func (h *hashEmbedder) ModelName() string { return "hash-test" }

// scriptedBackend replays fixed chunks as a generation stream.
type scriptedBackend struct {
	chunks   []string
	lastOpts GenerateOptions
}

func (b *scriptedBackend) Stream(ctx context.Context, _ string, opts GenerateOptions, emit func(string) error) error {
	b.lastOpts = opts
	for _, c := range b.chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(c); err != nil {
			return err
		}
	}
	return nil
}

func (b *scriptedBackend) ModelName() string { return "scripted" }
