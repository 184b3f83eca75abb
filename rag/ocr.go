package rag

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"github.com/gen2brain/go-fitz"
	"github.com/otiai10/gosseract/v2"
)

// OCR converts a rendered page image into text. Implementations must be
// safe for sequential reuse; they are never called concurrently for the
// same document.
type OCR interface {
	// Recognize extracts text from a PNG-encoded page image.
	Recognize(ctx context.Context, img []byte) (string, error)
}

// TesseractOCR implements OCR on top of the local Tesseract installation.
type TesseractOCR struct {
	language string
}

// NewTesseractOCR probes the local Tesseract installation and returns an
// OCR engine for the given language ("eng" by default). It fails when
// Tesseract is not installed, allowing callers to downgrade to native-only
// extraction up front.
func NewTesseractOCR(language string) (*TesseractOCR, error) {
	if language == "" {
		language = "eng"
	}
	langs, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return nil, fmt.Errorf("tesseract not available: %w", err)
	}
	if len(langs) == 0 {
		return nil, fmt.Errorf("tesseract has no language data installed")
	}
	return &TesseractOCR{language: language}, nil
}

// Recognize runs Tesseract over a single page image. A fresh client is used
// per call; the Tesseract client is not safe for concurrent use.
func (t *TesseractOCR) Recognize(ctx context.Context, img []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.language); err != nil {
		return "", fmt.Errorf("set ocr language %q: %w", t.language, err)
	}
	if err := client.SetImageFromBytes(img); err != nil {
		return "", fmt.Errorf("load page image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr page: %w", err)
	}
	return text, nil
}

// pageRenderer rasterises a span of PDF pages to PNG images. Abstracted so
// extraction tests can run without MuPDF.
type pageRenderer interface {
	// PageCount returns the number of pages in the document.
	PageCount(path string) (int, error)
	// Render rasterises pages [first, last) at the given DPI.
	Render(path string, dpi int, first, last int) ([][]byte, error)
}

// fitzRenderer renders pages with MuPDF.
type fitzRenderer struct{}

func (fitzRenderer) PageCount(path string) (int, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

func (fitzRenderer) Render(path string, dpi int, first, last int) ([][]byte, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer doc.Close()

	if n := doc.NumPage(); last > n {
		last = n
	}
	images := make([][]byte, 0, last-first)
	for i := first; i < last; i++ {
		img, err := doc.ImageDPI(i, float64(dpi))
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", i+1, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode page %d: %w", i+1, err)
		}
		images = append(images, buf.Bytes())
	}
	return images, nil
}
