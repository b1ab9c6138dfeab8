package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"clinrag/internal/rag"
)

// Messages shown in place of a narrative.
const (
	NoEvidenceMessage  = "insufficient evidence found"
	UnavailableMessage = "AI service unavailable"
)

// RenderAssessment formats res for a terminal of the given width. With plain
// set, no ANSI styling or markdown rendering is applied.
func RenderAssessment(res *rag.Result, width int, plain bool) string {
	if width <= 0 {
		width = 80
	}
	var r *glamour.TermRenderer
	if !plain {
		r = newRenderer(width)
	}
	return renderAssessment(res, r, plain)
}

func newRenderer(width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(max(width-2, 20)),
	)
	if err != nil {
		return nil
	}
	return r
}

func renderAssessment(res *rag.Result, r *glamour.TermRenderer, plain bool) string {
	style := func(s string, st interface{ Render(...string) string }) string {
		if plain {
			return s
		}
		return st.Render(s)
	}

	var sb strings.Builder

	sb.WriteString(style("Symptoms", sectionStyle) + "\n")
	if plain {
		sb.WriteString(strings.Join(res.Symptoms, ", ") + "\n")
	} else {
		tags := make([]string, len(res.Symptoms))
		for i, s := range res.Symptoms {
			tags[i] = tagStyle.Render(s)
		}
		sb.WriteString(strings.Join(tags, " ") + "\n")
	}

	if len(res.Diagnostics) > 0 {
		sb.WriteString(style("Diagnostic basis", sectionStyle) + "\n")
		for _, d := range res.Diagnostics {
			sb.WriteString(style("- "+d, diagnosticStyle) + "\n")
		}
	}

	sb.WriteString(style("Clinical summary", sectionStyle) + "\n")
	switch res.Stage {
	case rag.StageSynthesized:
		sb.WriteString(renderMarkdown(r, res.Narrative, plain) + "\n")
	case rag.StageSynthesisFailed:
		sb.WriteString(style(UnavailableMessage, warnStyle) + "\n")
	default:
		sb.WriteString(style(NoEvidenceMessage, dimStyle) + "\n")
	}

	if len(res.Citations) > 0 {
		sb.WriteString(style("Supporting evidence", sectionStyle) + "\n")
		for _, c := range res.Citations {
			sb.WriteString(style("• "+c.String(), citationStyle) + "\n")
		}
	}
	return sb.String()
}

func renderMarkdown(r *glamour.TermRenderer, content string, plain bool) string {
	if plain || r == nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return narrativeStyle.Render(content)
	}
	return strings.TrimRight(rendered, "\n")
}

// statusLine is a one-line summary for the session status bar.
func statusLine(res *rag.Result) string {
	if res == nil {
		return "idle"
	}
	return fmt.Sprintf("%s • %d citations", res.Stage, len(res.Citations))
}
