package rag

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the pipeline. Callers match them with
// errors.Is; wrapped variants carry the failing path or query.
var (
	// ErrInvalidQuery is returned for empty or whitespace-only queries.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrCancelled marks a worker halted by a stop request.
	ErrCancelled = errors.New("cancelled")
	// ErrTimeout marks a worker halted by the wall-clock ceiling.
	ErrTimeout = errors.New("timeout")
	// ErrSourceNotFound is returned when a source document cannot be
	// located under the library root.
	ErrSourceNotFound = errors.New("source not found")
	// ErrModelLoadFailure is returned when the generation backend cannot
	// be reached or its model cannot be loaded.
	ErrModelLoadFailure = errors.New("model load failure")
	// ErrEncodeFailure is returned when a text cannot be embedded even
	// after a per-item retry.
	ErrEncodeFailure = errors.New("encode failure")
)

// ExtractErrorKind classifies text extraction failures.
type ExtractErrorKind int

const (
	// ExtractUnreadable means the PDF could not be opened or parsed at all.
	ExtractUnreadable ExtractErrorKind = iota
	// ExtractTruncated means extraction stopped before any usable text.
	ExtractTruncated
	// ExtractOcrUnavailable means the document needs OCR but OCR is
	// disabled or not installed.
	ExtractOcrUnavailable
)

func (k ExtractErrorKind) String() string {
	switch k {
	case ExtractUnreadable:
		return "unreadable"
	case ExtractTruncated:
		return "truncated"
	case ExtractOcrUnavailable:
		return "ocr unavailable"
	}
	return "unknown"
}

// ExtractError reports that no text could be obtained from a document.
type ExtractError struct {
	Kind ExtractErrorKind
	Path string
	Err  error
}

func (e *ExtractError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract %s: %s: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("extract %s: %s", e.Path, e.Kind)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// StoreErrorKind classifies vector store open failures.
type StoreErrorKind int

const (
	// StoreMissingArtifact means one of the index directory artifacts is
	// absent, including the manifest of an aborted build.
	StoreMissingArtifact StoreErrorKind = iota
	// StoreLengthMismatch means the index, chunk and metadata arrays
	// disagree in length.
	StoreLengthMismatch
	// StoreModelMismatch means the caller's embedding model differs from
	// the one recorded in the manifest.
	StoreModelMismatch
)

func (k StoreErrorKind) String() string {
	switch k {
	case StoreMissingArtifact:
		return "missing artifact"
	case StoreLengthMismatch:
		return "length mismatch"
	case StoreModelMismatch:
		return "model mismatch"
	}
	return "unknown"
}

// StoreError reports an invariant violation while opening an index directory.
type StoreError struct {
	Kind StoreErrorKind
	Dir  string
	Err  error
}

func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("open store %s: %s: %v", e.Dir, e.Kind, e.Err)
	}
	return fmt.Sprintf("open store %s: %s", e.Dir, e.Kind)
}

func (e *StoreError) Unwrap() error { return e.Err }
