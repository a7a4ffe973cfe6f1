package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"insdesk/internal/update"
)

func (m *App) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := m.renderHeader()
	footer := m.renderFooter()
	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer) - 2
	if bodyHeight < 3 {
		bodyHeight = 3
	}
	width := m.width - 2
	if width < 1 {
		width = 1
	}
	body := stylePane.Width(width).Height(bodyHeight).Render(m.renderStatusTable())
	base := lipgloss.JoinVertical(lipgloss.Left, header, body, footer)

	if !m.showPanel && !m.toastVisible() {
		return base
	}

	c := newCanvas(m.width, m.height)
	c.drawStringAt(0, 0, base)
	if m.showPanel {
		c.centerOverlay(m.renderPanel(), lipgloss.Height(header))
	}
	if m.toastVisible() {
		c.bottomRightOverlay(m.renderToast(), 1)
	}
	return c.render()
}

func (m *App) renderHeader() string {
	title := "INSDESK"
	if m.version != "" {
		title = fmt.Sprintf("INSDESK v%s", update.NormalizeVersion(m.version))
	}

	parts := []string{styleAppHeader.Render(title)}
	if m.hasStatus {
		parts = append(parts, styleStatsDim.Render("Backend ")+m.renderBackendVersion())
		if m.status.AppUpdateAvailable {
			parts = append(parts, styleUpdateBadge.Render("UPDATE "+m.status.LatestAppVersion))
		}
		parts = append(parts, styleStatsDim.Render("checked "+formatLastChecked(m.status.CheckedAt)))
	}
	if m.checkInFlight {
		parts = append(parts, m.spinner.View()+styleStatsDim.Render(" checking"))
	}
	return ansi.Truncate(strings.Join(parts, " "), m.width, "…")
}

func (m *App) renderBackendVersion() string {
	if !m.status.BackendReachable() {
		return styleUnknown.Render(update.UnknownVersion)
	}
	v := styleVersion.Render(m.status.CurrentBackendVersion)
	if m.status.CurrentBackendAPIVersion != "" {
		v += styleStatsDim.Render(" (api " + m.status.CurrentBackendAPIVersion + ")")
	}
	return v
}

func (m *App) renderStatusTable() string {
	if !m.hasStatus {
		if m.checkInFlight {
			return m.spinner.View() + " Checking for updates..."
		}
		return styleStatsDim.Render("No check has run yet. Press c to check now.")
	}

	row := func(label, value string) string {
		return styleField.Render(label) + styleVal.Render(value)
	}
	rows := []string{
		row("App", m.status.CurrentAppVersion),
		styleField.Render("Backend") + m.renderBackendVersion(),
	}

	switch {
	case m.state == stateError && m.errMsg != "":
		rows = append(rows, styleField.Render("Update")+styleErrorText.Render("check failed"))
	case m.status.AppUpdateAvailable:
		rows = append(rows, row("Update", m.status.LatestAppVersion+" available (press u)"))
	default:
		rows = append(rows, styleField.Render("Update")+styleOKText.Render("up to date"))
	}
	if m.status.LatestBackendVersion != "" {
		rows = append(rows, row("Latest backend", m.status.LatestBackendVersion))
	}
	rows = append(rows, row("Last checked", formatLastChecked(m.status.CheckedAt)))
	return strings.Join(rows, "\n")
}

func (m *App) renderPanel() string {
	var b strings.Builder
	b.WriteString(stylePanelTitle.Render("Application update"))
	b.WriteString("\n\n")

	current := m.status.CurrentAppVersion
	if current == "" {
		current = update.NormalizeVersion(m.version)
	}
	b.WriteString(styleField.Render("Current") + styleVal.Render(current) + "\n")

	switch m.state {
	case stateChecking:
		b.WriteString(m.spinner.View() + " Checking for updates...\n")
	case stateIdle:
		if m.status.AppUpdateAvailable {
			m.writeAvailable(&b)
		} else {
			b.WriteString(styleOKText.Render("You are running the latest version.") + "\n")
		}
	case stateAvailable:
		m.writeAvailable(&b)
	case stateDownloading:
		b.WriteString(styleField.Render("Installing") + styleVersion.Render(m.status.LatestAppVersion) + "\n\n")
		b.WriteString(m.renderDownload() + "\n")
	case stateError:
		b.WriteString("\n" + styleErrorText.Render("Error: "+m.errMsg) + "\n")
	}

	b.WriteString("\n" + styleStatsDim.Render(m.panelHint()))
	return stylePanel.Width(m.panelWidth()).Render(b.String())
}

func (m *App) writeAvailable(b *strings.Builder) {
	b.WriteString(styleField.Render("New version") + styleVersion.Render(m.status.LatestAppVersion) + "\n")
	if m.status.ReleaseDate != "" {
		b.WriteString(styleField.Render("Released") + styleVal.Render(m.status.ReleaseDate) + "\n")
	}
	if m.status.ReleaseNotes != "" {
		b.WriteString("\n" + m.viewport.View() + "\n")
	}
}

func (m *App) renderDownload() string {
	d := m.download
	if !d.HasTotal() {
		return fmt.Sprintf("%s Downloaded %s", m.spinner.View(), formatBytes(d.Downloaded))
	}
	return fmt.Sprintf("%s\n%d%%  %s / %s", m.progress.View(), d.Percentage,
		formatBytes(d.Downloaded), formatBytes(d.Total))
}

func (m *App) panelHint() string {
	switch m.state {
	case stateAvailable, stateError:
		return "enter install • esc close • ↑/↓ scroll notes"
	case stateDownloading:
		return "esc hide • the app restarts when the update is installed"
	default:
		return "c check now • esc close"
	}
}

func (m *App) renderToast() string {
	if m.toastIsError {
		return styleErrorToast.Render("⚠ " + m.toastText)
	}
	return styleSuccessToast.Render(m.toastText)
}

func (m *App) renderFooter() string {
	bindings := []struct {
		key, desc string
	}{
		{m.keys.Open.Help().Key, m.keys.Open.Help().Desc},
		{m.keys.Check.Help().Key, m.keys.Check.Help().Desc},
		{m.keys.Copy.Help().Key, m.keys.Copy.Help().Desc},
		{m.keys.Quit.Help().Key, m.keys.Quit.Help().Desc},
	}
	parts := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		parts = append(parts, styleKeyPill.Render(kb.key)+" "+styleKeyDesc.Render(kb.desc))
	}
	return ansi.Truncate(" "+strings.Join(parts, "  "), m.width, "…")
}

func formatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}
