package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOCR recognises every page as a fixed string.
type fakeOCR struct {
	text  string
	err   error
	calls int
}

func (f *fakeOCR) Recognize(_ context.Context, _ []byte) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

// fakeRenderer pretends every document has n blank page images.
type fakeRenderer struct {
	pages int
	err   error
}

func (f fakeRenderer) PageCount(string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.pages, nil
}

func (f fakeRenderer) Render(_ string, _ int, first, last int) ([][]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	if last > f.pages {
		last = f.pages
	}
	images := make([][]byte, last-first)
	for i := range images {
		images[i] = []byte{0x89, 'P', 'N', 'G'}
	}
	return images, nil
}

func nativeReturning(pages []string) nativeExtractFunc {
	return func(string, int) ([]string, error) { return pages, nil }
}

func nativeFailing(err error) nativeExtractFunc {
	return func(string, int) ([]string, error) { return nil, err }
}

func densePages(n int) []string {
	pages := make([]string, n)
	for i := range pages {
		pages[i] = strings.Repeat("born digital text ", 10) // well over 50 chars
	}
	return pages
}

func TestExtractNativeSufficient(t *testing.T) {
	ocr := &fakeOCR{text: "should not run"}
	e := NewExtractor(WithOCR(true), WithOCREngine(ocr))
	e.native = nativeReturning(densePages(3))
	e.renderer = fakeRenderer{pages: 3}

	result, err := e.Extract(context.Background(), "/lib/doc.pdf")
	require.NoError(t, err)
	assert.False(t, result.OCRUsed)
	assert.Len(t, result.Pages, 3)
	assert.Equal(t, 0, ocr.calls, "dense native text must not trigger OCR")
}

func TestExtractFallsBackToOCR(t *testing.T) {
	ocr := &fakeOCR{text: "recovered by ocr"}
	e := NewExtractor(WithOCR(true), WithOCREngine(ocr))
	e.native = nativeReturning([]string{"", "x", ""}) // far below threshold
	e.renderer = fakeRenderer{pages: 3}

	result, err := e.Extract(context.Background(), "/lib/scan.pdf")
	require.NoError(t, err)
	assert.True(t, result.OCRUsed)
	require.Len(t, result.Pages, 3)
	for _, p := range result.Pages {
		assert.Equal(t, "recovered by ocr", p)
	}
	assert.Equal(t, 3, ocr.calls)
}

func TestExtractOCRBatches(t *testing.T) {
	ocr := &fakeOCR{text: "t"}
	e := NewExtractor(WithOCR(true), WithOCREngine(ocr))
	e.native = nativeReturning([]string{""})
	e.renderer = fakeRenderer{pages: 47}

	result, err := e.Extract(context.Background(), "/lib/big-scan.pdf")
	require.NoError(t, err)
	assert.Len(t, result.Pages, 47)
	assert.Equal(t, 47, ocr.calls)
}

func TestExtractOCRHonoursPageCap(t *testing.T) {
	ocr := &fakeOCR{text: "t"}
	e := NewExtractor(WithOCR(true), WithOCREngine(ocr), WithMaxPages(25))
	e.native = nativeReturning([]string{""})
	e.renderer = fakeRenderer{pages: 100}

	result, err := e.Extract(context.Background(), "/lib/huge.pdf")
	require.NoError(t, err)
	assert.Len(t, result.Pages, 25)
}

func TestExtractSparseTextOCRDisabled(t *testing.T) {
	e := NewExtractor()
	e.native = nativeReturning([]string{"tiny", ""})

	result, err := e.Extract(context.Background(), "/lib/sparse.pdf")
	require.NoError(t, err)
	assert.False(t, result.OCRUsed)
	assert.Equal(t, []string{"tiny", ""}, result.Pages)
}

func TestExtractNoTextOCRDisabled(t *testing.T) {
	e := NewExtractor()
	e.native = nativeReturning([]string{"", ""})

	_, err := e.Extract(context.Background(), "/lib/empty.pdf")
	var xerr *ExtractError
	require.ErrorAs(t, err, &xerr)
	assert.Equal(t, ExtractOcrUnavailable, xerr.Kind)
}

func TestExtractUnreadable(t *testing.T) {
	e := NewExtractor()
	e.native = nativeFailing(fmt.Errorf("garbled xref"))

	_, err := e.Extract(context.Background(), "/lib/broken.pdf")
	var xerr *ExtractError
	require.ErrorAs(t, err, &xerr)
	assert.Equal(t, ExtractUnreadable, xerr.Kind)
}

func TestExtractOCRFailureKeepsNativeText(t *testing.T) {
	ocr := &fakeOCR{err: errors.New("engine crashed")}
	e := NewExtractor(WithOCR(true), WithOCREngine(ocr))
	e.native = nativeReturning([]string{"some sparse text", ""})
	e.renderer = fakeRenderer{err: errors.New("render failed")}

	result, err := e.Extract(context.Background(), "/lib/tricky.pdf")
	require.NoError(t, err)
	assert.False(t, result.OCRUsed)
	assert.Equal(t, "some sparse text", result.Pages[0])
}

func TestExtractOCRFailureNoNativeText(t *testing.T) {
	e := NewExtractor(WithOCR(true), WithOCREngine(&fakeOCR{}))
	e.native = nativeReturning([]string{"", ""})
	e.renderer = fakeRenderer{err: errors.New("render failed")}

	_, err := e.Extract(context.Background(), "/lib/hopeless.pdf")
	var xerr *ExtractError
	require.ErrorAs(t, err, &xerr)
	assert.Equal(t, ExtractTruncated, xerr.Kind)
}

func TestExtractResultText(t *testing.T) {
	r := ExtractResult{Pages: []string{"page one", "page two"}}
	assert.Equal(t, "page one\n\npage two", r.Text())
}

func TestExtractPerPageOCRErrorLeavesEmptyPage(t *testing.T) {
	ocr := &flakyOCR{failOn: 2}
	e := NewExtractor(WithOCR(true), WithOCREngine(ocr))
	e.native = nativeReturning([]string{""})
	e.renderer = fakeRenderer{pages: 3}

	result, err := e.Extract(context.Background(), "/lib/flaky.pdf")
	require.NoError(t, err)
	require.Len(t, result.Pages, 3)
	assert.NotEmpty(t, result.Pages[0])
	assert.Empty(t, result.Pages[1], "the failed page stays empty")
	assert.NotEmpty(t, result.Pages[2])
}

// flakyOCR fails on its nth call.
type flakyOCR struct {
	calls  int
	failOn int
}

func (f *flakyOCR) Recognize(context.Context, []byte) (string, error) {
	f.calls++
	if f.calls == f.failOn {
		return "", errors.New("blurred page")
	}
	return "ocr text", nil
}
