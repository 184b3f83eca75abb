// Package loki is an offline retrieval-augmented question-answering engine
// over a static library of PDF documents. Given a natural-language query it
// returns the most relevant passages with provenance, or streams a
// generated answer grounded in those passages, citing each source by
// number. Everything runs on a single workstation: extraction, OCR,
// embedding, indexing, search and generation all use local resources.
//
// The package is a thin facade over the core implementation in the rag
// subpackage. Build-time indexing is driven by the Indexer and Builder;
// the query path is driven by the Engine.
package loki

import (
	"github.com/mikeplath/loki/config"
	"github.com/mikeplath/loki/rag"
)

// CoreContext carries the process-wide dependencies threaded through every
// constructor: configuration and logging. The UI shell owns it and hands
// it to workers; there are no configuration singletons in the core.
type CoreContext struct {
	Config *config.Config
	Logger rag.Logger
}

// NewCoreContext builds a CoreContext from a configuration, deriving the
// logger from the configured log level.
func NewCoreContext(cfg *config.Config) *CoreContext {
	var level rag.LogLevel
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = rag.LogLevelInfo
	}
	return &CoreContext{
		Config: cfg,
		Logger: rag.NewLogger(level),
	}
}

// Mode selects which query call a conversation turn maps to.
type Mode int

const (
	// ModeRetrieve returns ranked passages only.
	ModeRetrieve Mode = iota
	// ModeRetrieveAndGenerate grounds a generated answer in retrieved
	// passages.
	ModeRetrieveAndGenerate
	// ModeGenerateOnly skips retrieval and generates from the bare query.
	ModeGenerateOnly
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeRetrieve:
		return "Retrieve"
	case ModeRetrieveAndGenerate:
		return "RetrieveAndGenerate"
	case ModeGenerateOnly:
		return "GenerateOnly"
	}
	return "Unknown"
}
