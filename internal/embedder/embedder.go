// Package embedder turns text into embedding vectors via an external
// provider.
package embedder

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Embedder produces one vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// New builds the provider named by provider ("ollama" or "openai"). It
// returns nil, nil for "none" or "".
func New(provider, baseURL, apiKey, model string, timeout time.Duration) (Embedder, error) {
	switch provider {
	case "", "none":
		return nil, nil
	case "ollama":
		return NewOllamaEmbedder(baseURL, model, timeout), nil
	case "openai":
		return NewOpenAIEmbedder(baseURL, apiKey, model, timeout), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", provider)
	}
}

// Limited paces calls to an underlying Embedder so that at most one request
// starts per interval. It is safe for concurrent use.
type Limited struct {
	next    Embedder
	limiter *rate.Limiter
}

// NewLimited wraps e. A non-positive interval disables pacing.
func NewLimited(e Embedder, interval time.Duration) *Limited {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Limited{next: e, limiter: rate.NewLimiter(limit, 1)}
}

func (l *Limited) Model() string { return l.next.Model() }

func (l *Limited) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return l.next.Embed(ctx, texts)
}

func (l *Limited) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return l.next.EmbedSingle(ctx, text)
}

// single adapts a batch call for providers without a dedicated
// single-text path.
func single(ctx context.Context, e Embedder, text string) ([]float32, error) {
	results, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}
