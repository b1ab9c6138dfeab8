// Package llm talks to chat-completion providers.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Message represents a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer produces one completion for a system and user prompt.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// GenerationParams bounds a completion. Zero values are left to the
// provider's defaults.
type GenerationParams struct {
	MaxTokens   int
	Temperature float64
}

// New builds the provider named by provider ("ollama" or "openai"). It
// returns nil, nil for "none" or "".
func New(provider, baseURL, apiKey, model string, timeout time.Duration, gen GenerationParams) (Completer, error) {
	switch provider {
	case "", "none":
		return nil, nil
	case "ollama":
		return NewOllamaChat(baseURL, model, timeout, gen), nil
	case "openai":
		return NewOpenAIChat(baseURL, apiKey, model, timeout, gen), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}

func messages(system, user string) []Message {
	return []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
}
