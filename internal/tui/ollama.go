package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OllamaModel represents a model returned by /api/tags.
type OllamaModel struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type tagsResponse struct {
	Models []OllamaModel `json:"models"`
}

// ListModels queries the Ollama /api/tags endpoint and returns installed models.
func ListModels(ctx context.Context, baseURL string) ([]OllamaModel, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect to ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama /api/tags returned %d", resp.StatusCode)
	}

	var result tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode tags response: %w", err)
	}
	return result.Models, nil
}

// hasModel matches name against installed models, treating a missing tag as
// ":latest".
func hasModel(models []OllamaModel, name string) (OllamaModel, bool) {
	want := name
	if !strings.Contains(want, ":") {
		want += ":latest"
	}
	for _, m := range models {
		if m.Name == name || m.Name == want {
			return m, true
		}
	}
	return OllamaModel{}, false
}

// formatSize returns a human-readable size string.
func formatSize(bytes int64) string {
	const gb = 1024 * 1024 * 1024
	const mb = 1024 * 1024
	if bytes >= gb {
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	}
	return fmt.Sprintf("%.0f MB", float64(bytes)/float64(mb))
}
