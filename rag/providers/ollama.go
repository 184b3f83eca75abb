package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
)

// Defaults for the Ollama embedding provider. The daemon runs on the local
// machine; no request ever leaves the workstation.
const (
	DefaultOllamaHost       = "http://127.0.0.1:11434"
	DefaultOllamaEmbedModel = "all-minilm"
)

// OllamaEmbedder generates embeddings through a local Ollama daemon.
type OllamaEmbedder struct {
	client *api.Client
	model  string
	dim    int
}

func init() {
	RegisterEmbedder("ollama", NewOllamaEmbedder)
}

// NewOllamaEmbedder creates an Ollama-backed embedder. Recognised options:
//   - "model":    embedding model name (default all-minilm)
//   - "base_url": daemon address (default http://127.0.0.1:11434)
//
// The model is probed once so the dimension is known up front; a failed
// probe surfaces configuration problems before any indexing work starts.
func NewOllamaEmbedder(config map[string]interface{}) (Embedder, error) {
	model := DefaultOllamaEmbedModel
	if m, ok := config["model"].(string); ok && m != "" {
		model = m
	}
	base := DefaultOllamaHost
	if b, ok := config["base_url"].(string); ok && b != "" {
		base = b
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base url %q: %w", base, err)
	}

	e := &OllamaEmbedder{
		client: api.NewClient(u, http.DefaultClient),
		model:  model,
	}
	probe, err := e.EmbedBatch(context.Background(), []string{"dimension probe"})
	if err != nil {
		return nil, fmt.Errorf("probe embedding model %q: %w", model, err)
	}
	e.dim = len(probe[0])
	return e, nil
}

// Embed generates the embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	rows, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return rows[0], nil
}

// EmbedBatch generates embeddings for a batch of texts in one request.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	resp, err := e.client.Embed(ctx, &api.EmbedRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}
	rows := make([][]float64, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		row := make([]float64, len(emb))
		for j, v := range emb {
			row[j] = float64(v)
		}
		rows[i] = row
	}
	return rows, nil
}

// Dim returns the embedding dimension of the probed model.
func (e *OllamaEmbedder) Dim() int { return e.dim }

// ModelName returns the model identifier.
func (e *OllamaEmbedder) ModelName() string { return e.model }
