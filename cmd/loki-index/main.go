// Command loki-index builds the searchable index for a PDF library in two
// stages: per-document chunk shards, then the vector index directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikeplath/loki"
	"github.com/mikeplath/loki/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	input := flag.String("input", cfg.Paths.DatabaseDir, "library root containing PDFs")
	output := flag.String("output", cfg.Paths.IndexedDataDir, "output directory for chunk shards")
	dbDir := flag.String("db", cfg.Paths.VectorDBDir, "output directory for the vector index")
	stage := flag.String("stage", "all", "which stage to run: shard, build or all")
	ocr := flag.Bool("ocr", cfg.Indexing.OCR, "enable OCR for scanned documents")
	dpi := flag.Int("dpi", cfg.Indexing.OCRDPI, "DPI for OCR rasterisation")
	maxPages := flag.Int("max-pages", cfg.Indexing.MaxPages, "maximum pages per document")
	chunkSize := flag.Int("chunk-size", cfg.Indexing.ChunkSize, "maximum characters per chunk")
	chunkOverlap := flag.Int("chunk-overlap", cfg.Indexing.ChunkOverlap, "overlap between chunks in characters")
	minChars := flag.Int("min-chars-per-page", cfg.Indexing.MinCharsPerPage, "average chars/page below which OCR is used")
	workers := flag.Int("workers", 1, "number of concurrent document workers")
	test := flag.Bool("test", false, "test mode: process only 5 documents")
	resume := flag.Bool("resume", false, "skip documents whose shard already exists")
	batchSize := flag.Int("batch-size", cfg.Indexing.BatchSize, "embedding batch size")
	indexType := flag.String("index-type", cfg.Indexing.IndexType, "index type: Flat, IVF or Chromem")
	embedModel := flag.String("model", cfg.Embedding.Model, "embedding model")
	flag.Parse()

	core := loki.NewCoreContext(cfg)
	log := core.Logger

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *stage == "shard" || *stage == "all" {
		extractor := loki.NewExtractor(
			loki.WithOCR(*ocr),
			loki.WithOCRDPI(*dpi),
			loki.WithMaxPages(*maxPages),
			loki.WithMinCharsPerPage(*minChars),
		)
		chunker := loki.NewChunker(
			loki.ChunkSize(*chunkSize),
			loki.ChunkOverlap(*chunkOverlap),
			loki.MaxChunksPerDoc(cfg.Indexing.MaxChunksPerDoc),
		)
		opts := []loki.IndexerOption{
			loki.WithWorkers(*workers),
			loki.WithResume(*resume),
		}
		if *test {
			opts = append(opts, loki.WithLimit(5))
		}
		indexer := loki.NewIndexer(extractor, chunker, opts...)

		summary, err := indexer.Run(ctx, *input, *output)
		if err != nil {
			log.Error("indexing failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Sharded %d documents (%d failed, %d skipped, OCR on %d)\n",
			summary.Successful, summary.Failed, summary.Skipped, summary.OCRUsedCount)
	}

	if *stage == "build" || *stage == "all" {
		embedder, err := loki.NewEmbedder(
			loki.SetEmbedderProvider(cfg.Embedding.Provider),
			loki.SetEmbedderModel(*embedModel),
			loki.SetEmbedderOption("base_url", cfg.Embedding.BaseURL),
		)
		if err != nil {
			log.Error("cannot create embedder", "error", err)
			os.Exit(1)
		}
		builder := loki.NewBuilder(embedder,
			loki.WithBatchSize(*batchSize),
			loki.WithIndexType(*indexType),
		)
		manifest, err := builder.Build(ctx, *output, *dbDir)
		if err != nil {
			log.Error("vector index build failed", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Built %s index: %d chunks from %d documents (dim %d)\n",
			manifest.IndexType, manifest.NumChunks, manifest.NumDocuments, manifest.EmbeddingDim)
	}
}
