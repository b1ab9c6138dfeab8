package tui

import "github.com/charmbracelet/lipgloss"

const (
	colorAccent  = lipgloss.Color("212")
	colorInfo    = lipgloss.Color("111")
	colorOK      = lipgloss.Color("78")
	colorWarn    = lipgloss.Color("214")
	colorError   = lipgloss.Color("196")
	colorText    = lipgloss.Color("252")
	colorMuted   = lipgloss.Color("245")
	colorDim     = lipgloss.Color("241")
	colorBar     = lipgloss.Color("236")
	colorTagText = lipgloss.Color("230")
	colorTagBg   = lipgloss.Color("61")
)

func fg(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

var (
	titleStyle    = fg(colorAccent).Bold(true)
	selectedStyle = fg(colorAccent).Bold(true)
	subtitleStyle = fg(colorMuted)
	successStyle  = fg(colorOK)
	warnStyle     = fg(colorWarn)
	errorStyle    = fg(colorError)
	dimStyle      = fg(colorDim)
	helpStyle     = fg(colorDim)
	userMsgStyle  = fg(colorInfo).Bold(true)

	statusBarStyle = fg(colorDim).Background(colorBar).Padding(0, 1)

	// Assessment report.
	sectionStyle    = fg(colorInfo).Bold(true).MarginTop(1)
	tagStyle        = fg(colorTagText).Background(colorTagBg).Padding(0, 1)
	diagnosticStyle = fg(colorWarn).PaddingLeft(2)
	citationStyle   = fg(colorText).PaddingLeft(2)
	narrativeStyle  = fg(colorText)
)
