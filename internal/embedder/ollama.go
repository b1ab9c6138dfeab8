package embedder

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OllamaEmbedder calls the Ollama /api/embed endpoint, which accepts a batch
// of inputs in one request.
type OllamaEmbedder struct {
	endpoint string
	model    string
	client   *http.Client
}

func NewOllamaEmbedder(baseURL, model string, timeout time.Duration) *OllamaEmbedder {
	return &OllamaEmbedder{
		endpoint: strings.TrimRight(baseURL, "/") + "/api/embed",
		model:    model,
		client:   &http.Client{Timeout: timeout},
	}
}

func (e *OllamaEmbedder) Model() string { return e.model }

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns one vector per text, in input order.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp ollamaEmbedResponse
	if err := postJSON(ctx, e.client, e.endpoint, "", ollamaEmbedRequest{Model: e.model, Input: texts}, &resp); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: %d vectors for %d texts", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

func (e *OllamaEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return single(ctx, e, text)
}
