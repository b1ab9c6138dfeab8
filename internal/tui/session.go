package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"clinrag/internal/clinical"
	"clinrag/internal/rag"
)

type sessionModel struct {
	viewport    viewport.Model
	input       textinput.Model
	spinner     spinner.Model
	renderer    *glamour.TermRenderer
	entries     []entry
	engine      *rag.Engine
	patient     clinical.Record
	last        *rag.Result
	busy        bool
	width       int
	height      int
	initialized bool
}

type entry struct {
	kind    string // "question", "result", "error", "system"
	content string
	result  *rag.Result
}

// assessMsg is sent when an assessment completes.
type assessMsg struct {
	result *rag.Result
	err    error
}

func newSessionModel(engine *rag.Engine, patient clinical.Record) sessionModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedStyle

	ti := textinput.New()
	ti.Placeholder = "Ask about this patient, or press Enter for a general assessment..."
	ti.CharLimit = 2000
	ti.Focus()

	return sessionModel{
		spinner: sp,
		input:   ti,
		engine:  engine,
		patient: patient,
	}
}

func (m *sessionModel) initViewport(width, height int) {
	m.width = width
	m.height = height

	// Layout: viewport + status bar (1 line) + input (1 line) + gap (1 line).
	vpHeight := height - 3
	if vpHeight < 5 {
		vpHeight = 5
	}
	m.viewport = viewport.New(width, vpHeight)
	m.input.Width = width - 4
	m.renderer = newRenderer(width)
	m.initialized = true
	m.viewport.SetContent(m.renderEntries())
}

func assess(engine *rag.Engine, patient clinical.Record, question string) tea.Cmd {
	return func() tea.Msg {
		res, err := engine.Assess(context.Background(), patient, question)
		return assessMsg{result: res, err: err}
	}
}

func (m sessionModel) Update(msg tea.Msg) (sessionModel, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.initViewport(msg.Width, msg.Height)
		m.viewport.GotoBottom()
		return m, nil

	case assessMsg:
		m.busy = false
		if msg.err != nil {
			m.entries = append(m.entries, entry{kind: "error", content: msg.err.Error()})
		}
		if msg.result != nil {
			m.last = msg.result
			m.entries = append(m.entries, entry{kind: "result", result: msg.result})
		}
		m.viewport.SetContent(m.renderEntries())
		m.viewport.GotoBottom()
		return m, nil

	case spinner.TickMsg:
		if m.busy {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			m.viewport.SetContent(m.renderEntries())
			m.viewport.GotoBottom()
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		if m.busy {
			return m, nil
		}
		if msg.Type == tea.KeyEnter {
			question := strings.TrimSpace(m.input.Value())
			m.input.Reset()

			switch question {
			case "/exit", "/quit":
				return m, tea.Quit
			case "/clear":
				m.entries = nil
				m.viewport.SetContent(dimStyle.Render("Cleared."))
				return m, nil
			case "/help":
				help := "Commands:\n  /clear  - clear the screen\n  /exit   - quit\n  /help   - show this help\n\nAn empty question runs a general assessment."
				m.entries = append(m.entries, entry{kind: "system", content: help})
				m.viewport.SetContent(m.renderEntries())
				m.viewport.GotoBottom()
				return m, nil
			}

			label := question
			if label == "" {
				label = rag.DefaultQuestion
			}
			m.entries = append(m.entries, entry{kind: "question", content: label})
			m.busy = true
			m.viewport.SetContent(m.renderEntries())
			m.viewport.GotoBottom()

			return m, tea.Batch(m.spinner.Tick, assess(m.engine, m.patient, question))
		}
	}

	if !m.busy {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m sessionModel) renderEntries() string {
	if len(m.entries) == 0 && !m.busy {
		return dimStyle.Render("Ask a question about this patient. Commands: /help, /clear, /exit")
	}

	var sb strings.Builder
	for _, e := range m.entries {
		switch e.kind {
		case "question":
			sb.WriteString(userMsgStyle.Render("Q: ") + e.content + "\n")
		case "result":
			sb.WriteString(renderAssessment(e.result, m.renderer, false) + "\n")
		case "error":
			sb.WriteString(errorStyle.Render("Error: "+e.content) + "\n\n")
		case "system":
			sb.WriteString(dimStyle.Render(e.content) + "\n\n")
		}
	}
	if m.busy {
		sb.WriteString(m.spinner.View() + " " + dimStyle.Render("Retrieving evidence...") + "\n")
	}
	return sb.String()
}

func (m sessionModel) View() string {
	if !m.initialized {
		return ""
	}

	status := statusLine(m.last)
	if m.busy {
		status = "assessing..."
	}
	bar := statusBarStyle.
		Width(m.width).
		Render(fmt.Sprintf(" clinrag • %s retrieval • %s", m.engine.Strategy(), status))

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewport.View(),
		bar,
		m.input.View(),
	)
}
