// Package tui holds the terminal interfaces: build progress, assessment
// reports and the interactive assessment session.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"clinrag/internal/clinical"
	"clinrag/internal/rag"
	"clinrag/internal/store"
)

// ViewState represents which screen is active.
type ViewState int

const (
	ViewWelcome ViewState = iota
	ViewSession
)

// SessionConfig holds what the interactive session needs from the CLI layer.
type SessionConfig struct {
	Engine      *rag.Engine
	Corpus      store.Reader // may be nil when no corpus is available
	Patient     clinical.Record
	PatientName string

	EmbeddingModel string
	LLMProvider    string
	LLMBaseURL     string
	LLMModel       string
}

// Model is the top-level Bubble Tea model.
type Model struct {
	state    ViewState
	config   SessionConfig
	symptoms []string
	width    int
	height   int

	welcome welcomeModel
	session sessionModel
}

// New creates a new TUI model with the given config.
func New(cfg SessionConfig) Model {
	return Model{
		state:    ViewWelcome,
		config:   cfg,
		symptoms: clinical.Infer(cfg.Patient).Symptoms,
		welcome:  welcomeModel{strategy: cfg.Engine.Strategy()},
		session:  newSessionModel(cfg.Engine, cfg.Patient),
	}
}

func (m Model) Init() tea.Cmd {
	return checkCorpus(m.config)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.state == ViewSession {
			var c tea.Cmd
			m.session, c = m.session.Update(msg)
			return m, c
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if m.state != ViewSession {
				return m, tea.Quit
			}
		}
	}

	var cmd tea.Cmd

	switch m.state {
	case ViewWelcome:
		m.welcome, cmd = m.welcome.Update(msg)
		if cmd != nil {
			return m, cmd
		}
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter && m.welcome.ready {
			m.state = ViewSession
			m.session.initViewport(m.width, m.height)
			return m, nil
		}

	case ViewSession:
		m.session, cmd = m.session.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	switch m.state {
	case ViewWelcome:
		return m.welcome.View(m.config.PatientName, m.symptoms)
	case ViewSession:
		return m.session.View()
	}
	return ""
}

// RunSession starts the interactive assessment program.
func RunSession(cfg SessionConfig) error {
	p := tea.NewProgram(New(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
