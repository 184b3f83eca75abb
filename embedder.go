package loki

import (
	"github.com/mikeplath/loki/rag"
	"github.com/mikeplath/loki/rag/providers"
)

// Embedder converts passages and queries into dense vectors. Backends are
// registered by name; the built-in "ollama" provider talks to a local
// daemon.
type Embedder = providers.Embedder

// EmbedderOption configures embedder creation.
type EmbedderOption = rag.EmbedderOption

// NewEmbedder creates an Embedder through the provider registry.
func NewEmbedder(opts ...EmbedderOption) (Embedder, error) {
	return rag.NewEmbedder(opts...)
}

// SetEmbedderProvider selects the embedding backend (e.g. "ollama").
func SetEmbedderProvider(provider string) EmbedderOption {
	return rag.SetEmbedderProvider(provider)
}

// SetEmbedderModel selects the embedding model within the backend.
func SetEmbedderModel(model string) EmbedderOption {
	return rag.SetEmbedderModel(model)
}

// SetEmbedderOption sets a provider-specific option.
func SetEmbedderOption(key string, value interface{}) EmbedderOption {
	return rag.SetEmbedderOption(key, value)
}
