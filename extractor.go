package loki

import (
	"github.com/mikeplath/loki/rag"
)

// Extractor turns a PDF into per-page text, deciding per document whether
// the native text layer suffices or rasterised OCR is required.
type Extractor = rag.Extractor

// ExtractorOption configures an Extractor.
type ExtractorOption = rag.ExtractorOption

// ExtractResult carries the per-page text of one document and whether the
// text came from OCR.
type ExtractResult = rag.ExtractResult

// NewExtractor creates an Extractor. When OCR is enabled, the local
// Tesseract installation is probed once; a missing installation downgrades
// to native-only extraction with a warning.
func NewExtractor(options ...ExtractorOption) *Extractor {
	return rag.NewExtractor(options...)
}

// WithOCR enables the OCR fallback for scan-only documents.
func WithOCR(enabled bool) ExtractorOption {
	return rag.WithOCR(enabled)
}

// WithOCRDPI sets the rasterisation resolution for OCR.
func WithOCRDPI(dpi int) ExtractorOption {
	return rag.WithOCRDPI(dpi)
}

// WithMaxPages caps the number of pages processed per document.
func WithMaxPages(n int) ExtractorOption {
	return rag.WithMaxPages(n)
}

// WithMinCharsPerPage sets the average character density below which a
// document is treated as scan-only.
func WithMinCharsPerPage(n int) ExtractorOption {
	return rag.WithMinCharsPerPage(n)
}
