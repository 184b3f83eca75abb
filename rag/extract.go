package rag

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extraction defaults. All are overridable through ExtractorOption values.
const (
	// DefaultMaxPages caps the number of pages read from a single document.
	DefaultMaxPages = 2000
	// DefaultMinCharsPerPage is the average character density below which a
	// document is treated as scan-only and routed to OCR.
	DefaultMinCharsPerPage = 50
	// DefaultOCRDPI is the rasterisation resolution for OCR.
	DefaultOCRDPI = 200
	// ocrBatchPages bounds peak memory while rasterising large documents.
	ocrBatchPages = 20
)

// ExtractResult carries the per-page text of one document and whether the
// text came from OCR.
type ExtractResult struct {
	// Pages holds the extracted text per page, 1-based ordinals at index+1.
	// A page with no recoverable text is an empty string.
	Pages []string
	// OCRUsed reports whether the pages were produced by OCR.
	OCRUsed bool
}

// Text joins the page texts with blank lines, the form consumed by the
// chunker.
func (r ExtractResult) Text() string {
	return strings.Join(r.Pages, "\n\n")
}

// nativeExtractFunc extracts embedded text from up to maxPages pages.
// Swappable so the OCR-decision logic can be tested without PDF fixtures.
type nativeExtractFunc func(path string, maxPages int) ([]string, error)

// Extractor turns a PDF into per-page text, deciding per document whether
// the native text layer suffices or rasterised OCR is required.
type Extractor struct {
	maxPages        int
	minCharsPerPage int
	dpi             int
	ocrLanguage     string
	ocrEnabled      bool

	ocr      OCR
	renderer pageRenderer
	native   nativeExtractFunc
	logger   Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithMaxPages caps the number of pages processed per document.
func WithMaxPages(n int) ExtractorOption {
	return func(e *Extractor) { e.maxPages = n }
}

// WithMinCharsPerPage sets the average character density below which the
// extractor falls back to OCR.
func WithMinCharsPerPage(n int) ExtractorOption {
	return func(e *Extractor) { e.minCharsPerPage = n }
}

// WithOCRDPI sets the rasterisation resolution used for OCR.
func WithOCRDPI(dpi int) ExtractorOption {
	return func(e *Extractor) { e.dpi = dpi }
}

// WithOCRLanguage sets the Tesseract language used for OCR.
func WithOCRLanguage(lang string) ExtractorOption {
	return func(e *Extractor) { e.ocrLanguage = lang }
}

// WithOCR enables or disables the OCR fallback.
func WithOCR(enabled bool) ExtractorOption {
	return func(e *Extractor) { e.ocrEnabled = enabled }
}

// WithOCREngine replaces the OCR engine, mainly for tests.
func WithOCREngine(ocr OCR) ExtractorOption {
	return func(e *Extractor) { e.ocr = ocr }
}

// WithExtractorLogger sets the logger used by the extractor.
func WithExtractorLogger(l Logger) ExtractorOption {
	return func(e *Extractor) { e.logger = l }
}

// NewExtractor creates an Extractor. When OCR is requested the local
// Tesseract installation is probed once; if it is missing, OCR is disabled
// with a warning and extraction proceeds native-only.
func NewExtractor(options ...ExtractorOption) *Extractor {
	e := &Extractor{
		maxPages:        DefaultMaxPages,
		minCharsPerPage: DefaultMinCharsPerPage,
		dpi:             DefaultOCRDPI,
		ocrLanguage:     "eng",
		renderer:        fitzRenderer{},
		native:          extractNativePages,
		logger:          GlobalLogger,
	}
	for _, option := range options {
		option(e)
	}
	if e.ocrEnabled && e.ocr == nil {
		ocr, err := NewTesseractOCR(e.ocrLanguage)
		if err != nil {
			e.logger.Warn("OCR requested but unavailable, continuing without it", "error", err)
			e.ocrEnabled = false
		} else {
			e.ocr = ocr
		}
	}
	return e
}

// OCREnabled reports whether the OCR fallback is active.
func (e *Extractor) OCREnabled() bool { return e.ocrEnabled }

// Extract obtains per-page text for the document at path. Native extraction
// runs first; when the average character density falls below the configured
// threshold the document is rasterised and OCRed instead. When OCR is
// disabled or fails, whatever native text exists is returned; if there is
// none, an ExtractError describes why.
func (e *Extractor) Extract(ctx context.Context, path string) (ExtractResult, error) {
	e.logger.Debug("extracting document", "path", path)

	pages, nativeErr := e.native(path, e.maxPages)
	if nativeErr != nil {
		e.logger.Error("native text extraction failed", "path", path, "error", nativeErr)
		if !e.ocrEnabled {
			return ExtractResult{}, &ExtractError{Kind: ExtractUnreadable, Path: path, Err: nativeErr}
		}
	} else {
		total := 0
		for _, p := range pages {
			total += len(p)
		}
		avg := float64(total) / float64(max(1, len(pages)))
		e.logger.Debug("native extraction done", "path", path, "chars", total, "avg_per_page", avg)

		if avg >= float64(e.minCharsPerPage) {
			return ExtractResult{Pages: pages}, nil
		}
		e.logger.Warn("low text density, document looks scan-only", "path", path, "avg_per_page", avg)
		if !e.ocrEnabled {
			if total == 0 {
				return ExtractResult{}, &ExtractError{Kind: ExtractOcrUnavailable, Path: path}
			}
			e.logger.Warn("OCR disabled, keeping sparse native text", "path", path)
			return ExtractResult{Pages: pages}, nil
		}
	}

	ocrPages, err := e.extractWithOCR(ctx, path)
	if err != nil {
		e.logger.Error("OCR processing failed", "path", path, "error", err)
		if hasText(pages) {
			return ExtractResult{Pages: pages}, nil
		}
		return ExtractResult{}, &ExtractError{Kind: ExtractTruncated, Path: path, Err: err}
	}
	return ExtractResult{Pages: ocrPages, OCRUsed: true}, nil
}

// extractWithOCR rasterises the document in bounded batches and runs OCR
// over each page image. Per-page OCR failures leave an empty page.
func (e *Extractor) extractWithOCR(ctx context.Context, path string) ([]string, error) {
	total, err := e.renderer.PageCount(path)
	if err != nil {
		return nil, err
	}
	if total > e.maxPages {
		e.logger.Warn("document exceeds page cap, truncating", "path", path, "pages", total, "cap", e.maxPages)
		total = e.maxPages
	}

	pages := make([]string, total)
	for start := 0; start < total; start += ocrBatchPages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+ocrBatchPages, total)
		e.logger.Info("OCR batch", "path", path, "pages", fmt.Sprintf("%d-%d/%d", start+1, end, total))

		images, err := e.renderer.Render(path, e.dpi, start, end)
		if err != nil {
			return nil, err
		}
		for i, img := range images {
			text, err := e.ocr.Recognize(ctx, img)
			if err != nil {
				e.logger.Error("OCR failed for page", "path", path, "page", start+i+1, "error", err)
				continue
			}
			pages[start+i] = text
		}
	}
	return pages, nil
}

// extractNativePages reads the embedded text layer page by page. A page
// that fails to decode contributes an empty string rather than aborting the
// document.
func extractNativePages(path string, maxPages int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	numPages := reader.NumPage()
	if numPages > maxPages {
		numPages = maxPages
	}
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, content)
	}
	return pages, nil
}

func hasText(pages []string) bool {
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			return true
		}
	}
	return false
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
