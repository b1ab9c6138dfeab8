package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"clinrag/internal/ingest"
)

type buildModel struct {
	spinner   spinner.Model
	progress  progress.Model
	source    string
	phase     string
	processed int
	total     int
	done      bool
	stats     *ingest.Stats
	err       error
	cancel    context.CancelFunc
}

func newBuildModel(source string, cancel context.CancelFunc) buildModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedStyle
	return buildModel{
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		source:   source,
		phase:    "Scanning documents...",
		cancel:   cancel,
	}
}

// buildDoneMsg is sent when the pipeline returns.
type buildDoneMsg struct {
	stats *ingest.Stats
	err   error
}

// buildProgressMsg is sent by the pipeline after each document.
type buildProgressMsg struct {
	phase     string
	processed int
	total     int
}

func (m buildModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m buildModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if !m.done {
				m.cancel()
				m.phase = "Cancelling..."
				return m, nil
			}
			return m, tea.Quit
		case "enter":
			if m.done {
				return m, tea.Quit
			}
		}
	case buildDoneMsg:
		m.done = true
		m.stats = msg.stats
		m.err = msg.err
		return m, tea.Quit
	case buildProgressMsg:
		m.phase = msg.phase
		m.processed = msg.processed
		m.total = msg.total
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m buildModel) View() string {
	s := "\n"
	s += titleStyle.Render("  Building corpus") + "\n"
	s += subtitleStyle.Render("  "+m.source) + "\n\n"

	if m.done {
		if m.err != nil {
			s += errorStyle.Render(fmt.Sprintf("  Error: %v", m.err)) + "\n"
			return s
		}
		s += successStyle.Render("  ✓ Corpus built") + "\n\n"
		s += statsView(m.stats)
		return s
	}

	s += fmt.Sprintf("  %s %s\n", m.spinner.View(), m.phase)
	if m.total > 0 {
		// The total grows while the walk is still running.
		s += "  " + m.progress.ViewAs(float64(m.processed)/float64(m.total)) + "\n"
		s += fmt.Sprintf("  %d / %d documents\n", m.processed, m.total)
	}
	s += "\n"
	s += helpStyle.Render("  q to cancel") + "\n"
	return s
}

func statsView(st *ingest.Stats) string {
	if st == nil {
		return ""
	}
	s := fmt.Sprintf("  Documents: %d found, %d processed, %d skipped\n",
		st.DocumentsTotal, st.DocumentsIndexed, st.DocumentsSkipped)
	s += fmt.Sprintf("  Chunks: %d written, %d embedded\n", st.ChunksWritten, st.ChunksEmbedded)
	if st.EmbedFailures > 0 {
		s += warnStyle.Render(fmt.Sprintf("  %d chunks stored without embeddings", st.EmbedFailures)) + "\n"
	}
	return s
}

// RunBuild runs p over sourceDir behind a progress display and returns the
// pipeline's result. Pressing q cancels the build.
func RunBuild(ctx context.Context, p *ingest.Pipeline, sourceDir string) (*ingest.Stats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	prog := tea.NewProgram(newBuildModel(sourceDir, cancel))
	p.OnProgress = func(phase string, processed, total int) {
		prog.Send(buildProgressMsg{phase: phase, processed: processed, total: total})
	}

	done := make(chan buildDoneMsg, 1)
	go func() {
		stats, err := p.Build(ctx, sourceDir)
		res := buildDoneMsg{stats: stats, err: err}
		done <- res
		prog.Send(res)
	}()

	if _, err := prog.Run(); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("run progress display: %w", err)
	}
	res := <-done
	return res.stats, res.err
}
