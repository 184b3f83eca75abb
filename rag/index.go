package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/mikeplath/loki/rag/providers"
)

// DefaultBatchSize is the number of chunks encoded per embedding request.
const DefaultBatchSize = 32

// Builder encodes every chunk of a shard directory and persists the
// searchable index directory.
type Builder struct {
	embedder  providers.Embedder
	batchSize int
	indexType string
	limiter   *rate.Limiter
	logger    Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithBatchSize sets the embedding batch size.
func WithBatchSize(n int) BuilderOption {
	return func(b *Builder) { b.batchSize = n }
}

// WithIndexType selects the ANN backend (Flat, IVF or Chromem).
func WithIndexType(t string) BuilderOption {
	return func(b *Builder) { b.indexType = t }
}

// WithEmbedRateLimit caps embedding requests per second against the local
// model daemon. Zero disables the limit.
func WithEmbedRateLimit(perSecond float64) BuilderOption {
	return func(b *Builder) {
		if perSecond > 0 {
			b.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithBuilderLogger sets the logger used during the build.
func WithBuilderLogger(l Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder creates a Builder around an embedder.
func NewBuilder(embedder providers.Embedder, options ...BuilderOption) *Builder {
	b := &Builder{
		embedder:  embedder,
		batchSize: DefaultBatchSize,
		indexType: IndexTypeFlat,
		logger:    GlobalLogger,
	}
	for _, option := range options {
		option(b)
	}
	return b
}

// Build reads every shard under shardDir, encodes the chunk texts in
// batches and persists the index directory at outDir. Empty-text chunks
// are skipped; chunks that cannot be encoded even after a per-item retry
// keep a zero placeholder vector so the sidecar arrays never shift. The
// manifest and status files are written last: a build aborted midway
// leaves no manifest and loaders refuse the directory.
func (b *Builder) Build(ctx context.Context, shardDir, outDir string) (Manifest, error) {
	shards, err := ListShards(shardDir)
	if err != nil {
		return Manifest{}, err
	}
	b.logger.Info("building vector index", "shards", len(shards), "index_type", b.indexType)

	var texts []string
	var metas []ChunkMeta
	documents := make(map[string]struct{})
	emptyChunks := 0

	for _, path := range shards {
		shard, err := ReadShard(path)
		if err != nil {
			b.logger.Error("skipping unreadable shard", "path", path, "error", err)
			continue
		}
		documents[shard.Metadata.FilePath] = struct{}{}
		for _, chunk := range shard.Chunks {
			if chunk.Text == "" {
				emptyChunks++
				continue
			}
			meta := chunk.Metadata
			meta.VectorID = len(texts)
			texts = append(texts, chunk.Text)
			metas = append(metas, meta)
		}
	}
	if emptyChunks > 0 {
		b.logger.Warn("skipped empty chunks", "count", emptyChunks)
	}
	if len(texts) == 0 {
		return Manifest{}, fmt.Errorf("no chunks found under %s", shardDir)
	}
	b.logger.Info("encoding chunks", "count", len(texts), "batch_size", b.batchSize)

	vectors, err := b.encodeAll(ctx, texts)
	if err != nil {
		return Manifest{}, err
	}
	for _, v := range vectors {
		NormalizeL2(v)
	}

	index, err := NewANNIndex(b.indexType, b.embedder.Dim())
	if err != nil {
		return Manifest{}, err
	}
	if err := index.Add(vectors); err != nil {
		return Manifest{}, fmt.Errorf("populate index: %w", err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Manifest{}, fmt.Errorf("create index dir: %w", err)
	}
	if err := index.Save(filepath.Join(outDir, ANNIndexFile)); err != nil {
		return Manifest{}, err
	}
	if err := writeJSON(filepath.Join(outDir, ChunksFile), texts); err != nil {
		return Manifest{}, err
	}
	if err := writeJSON(filepath.Join(outDir, MetadataFile), metas); err != nil {
		return Manifest{}, err
	}

	manifest := Manifest{
		CreationDate: time.Now().Format(time.RFC3339),
		ModelName:    b.embedder.ModelName(),
		EmbeddingDim: b.embedder.Dim(),
		NumChunks:    len(texts),
		NumDocuments: len(documents),
		IndexType:    b.indexType,
	}
	if err := writeJSON(filepath.Join(outDir, ManifestFile), manifest); err != nil {
		return Manifest{}, err
	}
	status := BuildStatus{
		Status: StatusComplete,
		Date:   manifest.CreationDate,
		Info:   manifest,
	}
	if err := writeJSON(filepath.Join(outDir, StatusFile), status); err != nil {
		return Manifest{}, err
	}
	b.logger.Info("vector index built", "chunks", manifest.NumChunks, "documents", manifest.NumDocuments)
	return manifest, nil
}

// encodeAll embeds texts batch by batch. A failed batch is retried one
// item at a time; an item that still fails is logged and left as a zero
// placeholder, preserving vector id alignment with the sidecars.
func (b *Builder) encodeAll(ctx context.Context, texts []string) ([][]float64, error) {
	dim := b.embedder.Dim()
	vectors := make([][]float64, 0, len(texts))

	for start := 0; start < len(texts); start += b.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		end := min(start+b.batchSize, len(texts))
		batch := texts[start:end]

		rows, err := b.embedder.EmbedBatch(ctx, batch)
		if err == nil {
			vectors = append(vectors, rows...)
			continue
		}
		b.logger.Error("batch encoding failed, retrying per item", "batch_start", start, "error", err)

		for i, text := range batch {
			row, err := b.embedder.Embed(ctx, text)
			if err != nil {
				b.logger.Error("chunk cannot be encoded, using placeholder",
					"position", start+i, "error", fmt.Errorf("%w: %v", ErrEncodeFailure, err))
				row = make([]float64, dim)
			}
			vectors = append(vectors, row)
		}
	}
	return vectors, nil
}
