package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenAIChat calls an OpenAI-compatible /chat/completions endpoint without
// streaming.
type OpenAIChat struct {
	baseURL string
	apiKey  string
	model   string
	gen     GenerationParams
	client  *http.Client
}

// NewOpenAIChat creates a client for baseURL, e.g. "https://api.openai.com/v1".
func NewOpenAIChat(baseURL, apiKey, model string, timeout time.Duration, gen GenerationParams) *OpenAIChat {
	return &OpenAIChat{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		gen:     gen,
		client:  &http.Client{Timeout: timeout},
	}
}

type openAIChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// ErrEmptyCompletion is returned when the provider answers with no choices.
var ErrEmptyCompletion = errors.New("completion returned no choices")

func (c *OpenAIChat) Complete(ctx context.Context, system, user string) (string, error) {
	reqBody := openAIChatRequest{
		Model:    c.model,
		Messages: messages(system, user),
	}
	if c.gen.Temperature != 0 {
		t := c.gen.Temperature
		reqBody.Temperature = &t
	}
	if c.gen.MaxTokens != 0 {
		m := c.gen.MaxTokens
		reqBody.MaxTokens = &m
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call chat api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("chat api returned %s: %s", resp.Status, string(bodyBytes))
	}

	var result openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return result.Choices[0].Message.Content, nil
}
