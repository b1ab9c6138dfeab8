package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaChat calls the Ollama /api/chat endpoint for generative responses.
type OllamaChat struct {
	baseURL string
	model   string
	gen     GenerationParams
	client  *http.Client
}

// NewOllamaChat creates a chat client targeting the given Ollama instance and model.
func NewOllamaChat(baseURL, model string, timeout time.Duration, gen GenerationParams) *OllamaChat {
	return &OllamaChat{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		gen:     gen,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  *ollamaOptions `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message Message `json:"message"`
}

// Complete sends the prompts to Ollama and returns the assistant's response.
func (c *OllamaChat) Complete(ctx context.Context, system, user string) (string, error) {
	reqBody := ollamaChatRequest{
		Model:    c.model,
		Messages: messages(system, user),
		Stream:   false,
	}
	if c.gen.Temperature != 0 || c.gen.MaxTokens != 0 {
		opts := &ollamaOptions{}
		if c.gen.Temperature != 0 {
			t := c.gen.Temperature
			opts.Temperature = &t
		}
		if c.gen.MaxTokens != 0 {
			n := c.gen.MaxTokens
			opts.NumPredict = &n
		}
		reqBody.Options = opts
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama chat returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}

	return result.Message.Content, nil
}
