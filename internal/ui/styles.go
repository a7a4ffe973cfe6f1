package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

var (
	cPurple     = lipgloss.Color("99")
	cCyan       = lipgloss.Color("39")
	cNeonGreen  = lipgloss.Color("118")
	cRed        = lipgloss.Color("203")
	cGold       = lipgloss.Color("220")
	cGray       = lipgloss.Color("240")
	cBrightGray = lipgloss.Color("246")
	cWhite      = lipgloss.Color("255")
	cField      = lipgloss.Color("63")

	styleAppHeader = lipgloss.NewStyle().
			Foreground(cWhite).
			Background(cPurple).
			Bold(true).
			Padding(0, 1)

	styleStatsDim = lipgloss.NewStyle().Foreground(cBrightGray)
	styleVersion  = lipgloss.NewStyle().Foreground(cGold).Bold(true)
	styleUnknown  = lipgloss.NewStyle().Foreground(cRed)

	styleUpdateBadge = lipgloss.NewStyle().
				Foreground(cWhite).
				Background(lipgloss.Color("28")).
				Bold(true).
				Padding(0, 1)

	styleField = lipgloss.NewStyle().
			Foreground(cField).
			Bold(true).
			Width(16)

	styleVal = lipgloss.NewStyle().Foreground(cWhite)

	stylePane = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(cGray).
			Padding(0, 1)

	stylePanel = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(cPurple).
			Padding(1, 2)

	stylePanelTitle = lipgloss.NewStyle().
			Foreground(cGold).
			Bold(true)

	styleErrorText = lipgloss.NewStyle().Foreground(cRed)
	styleOKText    = lipgloss.NewStyle().Foreground(cNeonGreen)
	styleSpinner   = lipgloss.NewStyle().Foreground(cCyan)

	styleErrorToast = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(cRed).
			Foreground(cWhite).
			Padding(0, 1)

	styleSuccessToast = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#00FF00")).
				Foreground(cWhite).
				Padding(0, 1)

	styleKeyPill = lipgloss.NewStyle().
			Background(cPurple).
			Foreground(cWhite).
			Bold(true).
			Padding(0, 1)

	styleKeyDesc = lipgloss.NewStyle().Foreground(cBrightGray)
)

// buildMarkdownRenderer returns a release-notes renderer for the configured
// output format. "plain" and renderer failures fall back to word wrapping.
func buildMarkdownRenderer(format string, width int) func(string) string {
	fallback := func(input string) string {
		return wordwrap.String(input, width)
	}

	style := strings.ToLower(strings.TrimSpace(format))
	if style == "" || style == "rich" {
		style = "dark"
	}
	if style == "plain" {
		return fallback
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fallback
	}
	return func(input string) string {
		out, err := renderer.Render(input)
		if err != nil {
			return fallback(input)
		}
		return strings.TrimSpace(out)
	}
}
