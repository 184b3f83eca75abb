// Package providers implements the registry of embedding backends. Each
// provider converts text into dense vectors behind a shared capability
// interface, so the index builder and the retriever never depend on a
// concrete model runtime.
package providers

import (
	"context"
	"fmt"
	"sync"
)

// Embedder is the capability set every embedding backend implements.
// Implementations need not normalise their output; callers L2-normalise
// before indexing or searching.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float64, error)
	// EmbedBatch generates embeddings for a batch of texts. The result has
	// one row per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
	// Dim returns the embedding dimension of the current model.
	Dim() int
	// ModelName returns the model identifier recorded in index manifests.
	ModelName() string
}

// EmbedderFactory creates a new Embedder from provider-specific options.
type EmbedderFactory func(config map[string]interface{}) (Embedder, error)

var (
	embedderFactories = make(map[string]EmbedderFactory)
	mu                sync.RWMutex
)

// RegisterEmbedder registers a new embedder factory under a provider name.
// Registering an existing name replaces the previous factory.
func RegisterEmbedder(name string, factory EmbedderFactory) {
	mu.Lock()
	defer mu.Unlock()
	embedderFactories[name] = factory
}

// GetEmbedderFactory returns the factory for the given provider name.
func GetEmbedderFactory(name string) (EmbedderFactory, error) {
	mu.RLock()
	defer mu.RUnlock()
	factory, ok := embedderFactories[name]
	if !ok {
		return nil, fmt.Errorf("embedder not found: %s", name)
	}
	return factory, nil
}

// List returns the names of all registered providers.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(embedderFactories))
	for name := range embedderFactories {
		names = append(names, name)
	}
	return names
}
