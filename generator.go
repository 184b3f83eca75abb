package loki

import (
	"github.com/mikeplath/loki/rag"
)

// Generator drives a local language model backend and enforces the
// streaming contract: in-order whole-text tokens, terminated by stop
// sequences, the token budget, model end-of-stream or cancellation.
type Generator = rag.Generator

// GeneratorBackend is the pluggable language model runtime.
type GeneratorBackend = rag.GeneratorBackend

// GenerateOptions are the per-request generation knobs.
type GenerateOptions = rag.GenerateOptions

// GeneratorOption configures a Generator.
type GeneratorOption = rag.GeneratorOption

// NewGenerator wraps a backend with the driver defaults.
func NewGenerator(backend GeneratorBackend, options ...GeneratorOption) *Generator {
	return rag.NewGenerator(backend, options...)
}

// NewOllamaGenerator connects to a local Ollama daemon as the generation
// backend.
func NewOllamaGenerator(model, baseURL string, logger rag.Logger) (GeneratorBackend, error) {
	return rag.NewOllamaGenerator(model, baseURL, logger)
}

// WithTemperature sets the default sampling temperature.
func WithTemperature(t float64) GeneratorOption {
	return rag.WithTemperature(t)
}

// WithStopSequences replaces the default stop sequences.
func WithStopSequences(stops ...string) GeneratorOption {
	return rag.WithStopSequences(stops...)
}

// Composer assembles the grounded prompt from a query and its retrieved
// results.
type Composer = rag.Composer

// ComposerOption configures a Composer.
type ComposerOption = rag.ComposerOption

// NewComposer creates a Composer.
func NewComposer(options ...ComposerOption) *Composer {
	return rag.NewComposer(options...)
}
