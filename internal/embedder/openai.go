package embedder

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"clinrag/internal/log"
)

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

// NewOpenAIEmbedder creates an embedder for baseURL, e.g.
// "https://api.openai.com/v1".
func NewOpenAIEmbedder(baseURL, apiKey, model string, timeout time.Duration) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		endpoint: strings.TrimRight(baseURL, "/") + "/embeddings",
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{Timeout: timeout},
	}
}

func (e *OpenAIEmbedder) Model() string { return e.model }

type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedding struct {
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type openAIEmbedResponse struct {
	Data []openAIEmbedding `json:"data"`
}

// Embed returns one embedding per text, ordered by the response's index
// field.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp openAIEmbedResponse
	if err := postJSON(ctx, e.client, e.endpoint, e.apiKey, openAIEmbedRequest{Model: e.model, Input: texts}, &resp); err != nil {
		return nil, fmt.Errorf("embedding api: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding api: %d vectors for %d texts", len(resp.Data), len(texts))
	}

	slices.SortStableFunc(resp.Data, func(a, b openAIEmbedding) int { return a.Index - b.Index })
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", i)
		}
		out[i] = d.Embedding
	}
	log.Debugf("embedded %d texts with %s, dimensions %d", len(texts), e.model, len(out[0]))
	return out, nil
}

func (e *OpenAIEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return single(ctx, e, text)
}
