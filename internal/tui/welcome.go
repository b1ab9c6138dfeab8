package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"clinrag/internal/retriever"
)

type corpusStatus int

const (
	corpusMissing corpusStatus = iota
	corpusReady
	corpusStale
)

type welcomeModel struct {
	status      corpusStatus
	documents   int
	strategy    retriever.Strategy
	staleReason string
	provider    string
	providerErr error
	ready       bool // true once the check has completed
}

// checkCorpusMsg is sent after checking corpus and provider status.
type checkCorpusMsg struct {
	status      corpusStatus
	documents   int
	staleReason string
	provider    string
	providerErr error
}

func checkCorpus(cfg SessionConfig) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		msg := checkCorpusMsg{status: corpusMissing}
		msg.provider, msg.providerErr = checkProvider(ctx, cfg)

		if cfg.Corpus == nil {
			return msg
		}
		docs, err := cfg.Corpus.Documents(ctx)
		if err != nil || len(docs) == 0 {
			return msg
		}
		msg.documents = len(docs)
		msg.status = corpusReady

		built, err := cfg.Corpus.GetMeta(ctx, "embedding_model")
		if err == nil && built != "" && cfg.EmbeddingModel != "" && built != cfg.EmbeddingModel {
			msg.status = corpusStale
			msg.staleReason = fmt.Sprintf("built with %s, querying with %s", built, cfg.EmbeddingModel)
		}
		return msg
	}
}

// checkProvider describes the completion provider. Only Ollama can be
// probed without spending tokens.
func checkProvider(ctx context.Context, cfg SessionConfig) (string, error) {
	switch cfg.LLMProvider {
	case "", "none":
		return "", fmt.Errorf("no completion provider configured")
	case "ollama":
		models, err := ListModels(ctx, cfg.LLMBaseURL)
		if err != nil {
			return "", err
		}
		m, ok := hasModel(models, cfg.LLMModel)
		if !ok {
			return "", fmt.Errorf("model %s is not installed", cfg.LLMModel)
		}
		return fmt.Sprintf("%s (%s)", m.Name, formatSize(m.Size)), nil
	default:
		return fmt.Sprintf("%s via %s", cfg.LLMModel, cfg.LLMProvider), nil
	}
}

func (m welcomeModel) Update(msg tea.Msg) (welcomeModel, tea.Cmd) {
	switch msg := msg.(type) {
	case checkCorpusMsg:
		m.status = msg.status
		m.documents = msg.documents
		m.staleReason = msg.staleReason
		m.provider = msg.provider
		m.providerErr = msg.providerErr
		m.ready = true
	}
	return m, nil
}

func (m welcomeModel) View(patient string, symptoms []string) string {
	s := "\n"
	s += titleStyle.Render("  ◆ clinrag") + "\n"
	s += subtitleStyle.Render("  Literature-grounded patient assessment") + "\n\n"

	if patient != "" {
		s += "  Patient: " + patient + "\n"
	}
	s += "  Symptoms: " + strings.Join(symptoms, ", ") + "\n\n"

	if !m.ready {
		s += dimStyle.Render("  Checking corpus...") + "\n"
		return s
	}

	switch m.status {
	case corpusReady:
		s += successStyle.Render(fmt.Sprintf("  ✓ Corpus ready: %d documents, %s retrieval", m.documents, m.strategy)) + "\n"
	case corpusMissing:
		s += warnStyle.Render("  ✗ No corpus found; answers will report insufficient evidence") + "\n"
	case corpusStale:
		s += warnStyle.Render(fmt.Sprintf("  ⚠ Corpus stale: %d documents", m.documents)) + "\n"
		s += dimStyle.Render("    "+m.staleReason) + "\n"
	}

	if m.providerErr != nil {
		s += warnStyle.Render("  ✗ "+UnavailableMessage) + "\n"
		s += dimStyle.Render("    "+m.providerErr.Error()) + "\n"
	} else {
		s += successStyle.Render("  ✓ "+m.provider) + "\n"
	}

	s += "\n"
	s += dimStyle.Render("  Press Enter to continue") + "\n"
	return s
}
