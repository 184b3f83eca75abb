package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Document processing statuses recorded in the indexing summary.
const (
	DocStatusSuccess = "success"
	DocStatusFailed  = "failed"
	DocStatusSkipped = "skipped"
)

// DocResult summarises the processing of one document.
type DocResult struct {
	FileName      string `json:"file_name"`
	FilePath      string `json:"file_path"`
	Status        string `json:"status"`
	ChunksCreated int    `json:"chunks_created,omitempty"`
	OCRUsed       bool   `json:"ocr_used,omitempty"`
	Error         string `json:"error,omitempty"`
	OutputFile    string `json:"output_file,omitempty"`
}

// IndexSummary is the aggregate outcome of an indexing run, persisted as
// indexing_summary.json next to the shards.
type IndexSummary struct {
	StartTime       string      `json:"start_time"`
	TotalFilesFound int         `json:"total_files_found"`
	Successful      int         `json:"successful_files"`
	Failed          int         `json:"failed_files"`
	Skipped         int         `json:"skipped_files"`
	OCRUsedCount    int         `json:"ocr_used_count"`
	Results         []DocResult `json:"results"`
}

// Indexer walks a PDF library and writes one shard per document. Failures
// are per-document: a broken PDF is logged and skipped, the run continues.
type Indexer struct {
	extractor *Extractor
	chunker   *TextChunker
	workers   int
	resume    bool
	limit     int
	logger    Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithWorkers bounds the number of documents processed concurrently.
func WithWorkers(n int) IndexerOption {
	return func(ix *Indexer) { ix.workers = n }
}

// WithResume skips documents whose shard already exists.
func WithResume(resume bool) IndexerOption {
	return func(ix *Indexer) { ix.resume = resume }
}

// WithLimit processes only the first n documents; useful for smoke runs.
func WithLimit(n int) IndexerOption {
	return func(ix *Indexer) { ix.limit = n }
}

// WithIndexerLogger sets the logger.
func WithIndexerLogger(l Logger) IndexerOption {
	return func(ix *Indexer) { ix.logger = l }
}

// NewIndexer creates an Indexer around an extractor and a chunker.
func NewIndexer(extractor *Extractor, chunker *TextChunker, options ...IndexerOption) *Indexer {
	ix := &Indexer{
		extractor: extractor,
		chunker:   chunker,
		workers:   1,
		logger:    GlobalLogger,
	}
	for _, option := range options {
		option(ix)
	}
	if ix.workers < 1 {
		ix.workers = 1
	}
	return ix
}

// FindPDFs returns every PDF under root, sorted by WalkDir order.
func FindPDFs(root string) ([]string, error) {
	var pdfs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".pdf") {
			pdfs = append(pdfs, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan library %s: %w", root, err)
	}
	return pdfs, nil
}

// Run processes every PDF under libraryRoot into shardDir and writes the
// indexing summary.
func (ix *Indexer) Run(ctx context.Context, libraryRoot, shardDir string) (IndexSummary, error) {
	pdfs, err := FindPDFs(libraryRoot)
	if err != nil {
		return IndexSummary{}, err
	}
	ix.logger.Info("library scan complete", "pdfs", len(pdfs), "root", libraryRoot)
	summary := IndexSummary{
		StartTime:       time.Now().Format(time.RFC3339),
		TotalFilesFound: len(pdfs),
	}
	if ix.limit > 0 && len(pdfs) > ix.limit {
		ix.logger.Info("limiting run", "limit", ix.limit)
		pdfs = pdfs[:ix.limit]
	}
	if err := os.MkdirAll(shardDir, 0o755); err != nil {
		return IndexSummary{}, fmt.Errorf("create shard dir: %w", err)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers)
	for _, pdf := range pdfs {
		pdf := pdf
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result := ix.processDocument(gctx, libraryRoot, shardDir, pdf)
			mu.Lock()
			summary.Results = append(summary.Results, result)
			switch result.Status {
			case DocStatusSuccess:
				summary.Successful++
			case DocStatusFailed:
				summary.Failed++
			case DocStatusSkipped:
				summary.Skipped++
			}
			if result.OCRUsed {
				summary.OCRUsedCount++
			}
			done := len(summary.Results)
			mu.Unlock()
			if done%10 == 0 {
				ix.logger.Info("indexing progress", "processed", done, "total", len(pdfs))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return summary, fmt.Errorf("encode summary: %w", err)
	}
	if err := os.WriteFile(filepath.Join(shardDir, shardSummaryName), data, 0o644); err != nil {
		return summary, fmt.Errorf("write summary: %w", err)
	}
	ix.logger.Info("indexing complete",
		"successful", summary.Successful, "failed", summary.Failed,
		"skipped", summary.Skipped, "ocr_used", summary.OCRUsedCount)
	return summary, nil
}

// processDocument extracts, chunks and shards a single PDF.
func (ix *Indexer) processDocument(ctx context.Context, libraryRoot, shardDir, pdfPath string) DocResult {
	fileName := filepath.Base(pdfPath)
	result := DocResult{FileName: fileName, FilePath: pdfPath}

	relPath, err := filepath.Rel(libraryRoot, pdfPath)
	if err != nil {
		relPath = fileName
	}
	relPath = filepath.ToSlash(relPath)

	shardPath := filepath.Join(shardDir, ShardFileName(relPath))
	if ix.resume {
		if _, err := os.Stat(shardPath); err == nil {
			ix.logger.Debug("shard exists, skipping", "path", pdfPath)
			result.Status = DocStatusSkipped
			result.OutputFile = shardPath
			return result
		}
	}

	info, err := os.Stat(pdfPath)
	if err != nil {
		result.Status = DocStatusFailed
		result.Error = err.Error()
		return result
	}

	extracted, err := ix.extractor.Extract(ctx, pdfPath)
	if err != nil {
		ix.logger.Error("document failed, skipping", "path", pdfPath, "error", err)
		result.Status = DocStatusFailed
		result.Error = err.Error()
		return result
	}

	meta := DocumentMeta{
		FileName:      fileName,
		FilePath:      pdfPath,
		RelativePath:  relPath,
		Category:      categoryOf(relPath),
		FileSizeMB:    float64(info.Size()) / (1024 * 1024),
		PageCount:     len(extracted.Pages),
		OCRUsed:       extracted.OCRUsed,
		ProcessedDate: time.Now().Format(time.RFC3339),
	}
	chunks := ix.chunker.Chunk(extracted.Text(), PageOffsets(extracted.Pages))
	if len(chunks) == 0 {
		result.Status = DocStatusFailed
		result.Error = "no text chunks produced"
		return result
	}

	written, err := WriteShard(shardDir, NewDocumentShard(meta, chunks))
	if err != nil {
		result.Status = DocStatusFailed
		result.Error = err.Error()
		return result
	}
	result.Status = DocStatusSuccess
	result.ChunksCreated = len(chunks)
	result.OCRUsed = extracted.OCRUsed
	result.OutputFile = written
	return result
}

// categoryOf derives a document's category from its relative path: the
// parent directory name with any "library-" prefix stripped.
func categoryOf(relPath string) string {
	dir := filepath.Dir(filepath.FromSlash(relPath))
	if dir == "." || dir == string(filepath.Separator) {
		return ""
	}
	return strings.TrimPrefix(filepath.Base(dir), "library-")
}
