package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Defaults for the OpenAI-compatible embedding provider. Local model
// servers (llama.cpp server, LM Studio, vLLM) expose this API on the
// workstation, so the engine stays offline.
const (
	DefaultCompatBaseURL = "http://127.0.0.1:8080/v1"
	compatTimeout        = 30 * time.Second
)

// CompatEmbedder generates embeddings through any server speaking the
// OpenAI embeddings API.
type CompatEmbedder struct {
	client *resty.Client
	model  string
	dim    int
}

func init() {
	RegisterEmbedder("openai-compat", NewCompatEmbedder)
}

// embeddingRequest is the request body of POST /embeddings.
type embeddingRequest struct {
	Model          string      `json:"model"`
	Input          interface{} `json:"input"`
	EncodingFormat string      `json:"encoding_format,omitempty"`
}

// embeddingData is a single embedding result.
type embeddingData struct {
	Object    string    `json:"object"`
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

// embeddingResponse is the complete embeddings API response.
type embeddingResponse struct {
	Object string          `json:"object"`
	Model  string          `json:"model"`
	Data   []embeddingData `json:"data"`
}

// NewCompatEmbedder creates an embedder against an OpenAI-compatible local
// server. Recognised options:
//   - "model":    model name passed through to the server
//   - "base_url": server address including the /v1 prefix
//   - "api_key":  bearer token, when the server requires one
//
// The model is probed once so the dimension is known up front.
func NewCompatEmbedder(config map[string]interface{}) (Embedder, error) {
	model, _ := config["model"].(string)
	if model == "" {
		return nil, fmt.Errorf("openai-compat embedder requires a model name")
	}
	base := DefaultCompatBaseURL
	if b, ok := config["base_url"].(string); ok && b != "" {
		base = b
	}

	client := resty.New().
		SetBaseURL(base).
		SetTimeout(compatTimeout).
		SetRetryCount(2)
	if key, ok := config["api_key"].(string); ok && key != "" {
		client.SetAuthToken(key)
	}

	e := &CompatEmbedder{client: client, model: model}
	probe, err := e.EmbedBatch(context.Background(), []string{"dimension probe"})
	if err != nil {
		return nil, fmt.Errorf("probe embedding model %q: %w", model, err)
	}
	e.dim = len(probe[0])
	return e, nil
}

// Embed generates the embedding for a single text.
func (e *CompatEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	rows, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return rows[0], nil
}

// EmbedBatch generates embeddings for a batch of texts in one call.
func (e *CompatEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	var result embeddingResponse
	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(embeddingRequest{
			Model:          e.model,
			Input:          texts,
			EncodingFormat: "float",
		}).
		SetResult(&result).
		Post("/embeddings")
	if err != nil {
		return nil, fmt.Errorf("embeddings request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("embeddings request: %s: %s", resp.Status(), resp.String())
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings request: got %d embeddings for %d inputs", len(result.Data), len(texts))
	}
	rows := make([][]float64, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(rows) {
			return nil, fmt.Errorf("embeddings request: index %d out of range", d.Index)
		}
		rows[d.Index] = d.Embedding
	}
	return rows, nil
}

// Dim returns the embedding dimension of the probed model.
func (e *CompatEmbedder) Dim() int { return e.dim }

// ModelName returns the model identifier.
func (e *CompatEmbedder) ModelName() string { return e.model }
