package rag

import (
	"fmt"

	"github.com/mikeplath/loki/rag/providers"
)

// EmbedderConfig holds the configuration for creating an Embedder.
type EmbedderConfig struct {
	// Provider names the embedding backend (e.g. "ollama").
	Provider string
	// Options carries provider-specific parameters.
	Options map[string]interface{}
}

// EmbedderOption configures an EmbedderConfig.
type EmbedderOption func(*EmbedderConfig)

// SetEmbedderProvider selects the embedding backend.
func SetEmbedderProvider(provider string) EmbedderOption {
	return func(c *EmbedderConfig) { c.Provider = provider }
}

// SetEmbedderModel selects the embedding model within the backend.
func SetEmbedderModel(model string) EmbedderOption {
	return func(c *EmbedderConfig) { c.Options["model"] = model }
}

// SetEmbedderOption sets a provider-specific option.
func SetEmbedderOption(key string, value interface{}) EmbedderOption {
	return func(c *EmbedderConfig) { c.Options[key] = value }
}

// NewEmbedder creates an Embedder through the provider registry.
func NewEmbedder(opts ...EmbedderOption) (providers.Embedder, error) {
	config := &EmbedderConfig{Options: make(map[string]interface{})}
	for _, opt := range opts {
		opt(config)
	}
	if config.Provider == "" {
		return nil, fmt.Errorf("embedder provider must be specified")
	}
	factory, err := providers.GetEmbedderFactory(config.Provider)
	if err != nil {
		return nil, err
	}
	return factory(config.Options)
}
