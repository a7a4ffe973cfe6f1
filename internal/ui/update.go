package ui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"insdesk/internal/update"
)

func (m *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case checkTickMsg:
		next := scheduleCheck(m.checkInterval)
		return m, tea.Batch(m.startCheck(false), next)

	case reconcileDoneMsg:
		m.applyStatus(msg)
		var cmds []tea.Cmd
		if m.installQueued {
			m.installQueued = false
			if m.state == stateAvailable {
				cmds = append(cmds, m.startInstall())
			} else if m.state != stateError {
				m.showToast("No update available", false)
			}
		}
		if m.toastVisible() {
			cmds = append(cmds, scheduleToastTick())
		}
		return m, tea.Batch(cmds...)

	case installProgressMsg:
		m.download = update.DownloadProgress(msg)
		cmds := []tea.Cmd{waitForInstall(m.installCh)}
		if m.download.HasTotal() {
			cmds = append(cmds, m.progress.SetPercent(float64(m.download.Percentage)/100))
		}
		return m, tea.Batch(cmds...)

	case installDoneMsg:
		m.finishInstall(msg)
		if msg.err == nil && msg.installed {
			// main restarts into the new build once the terminal is released.
			return m, tea.Quit
		}
		return m, scheduleToastTick()

	case toastTickMsg:
		if m.toastVisible() {
			return m, scheduleToastTick()
		}
		m.toastText = ""
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		model, cmd := m.progress.Update(msg)
		m.progress = model.(progress.Model)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Open):
		m.showPanel = true
		return m, nil
	case key.Matches(msg, m.keys.Dismiss):
		if m.showPanel {
			m.showPanel = false
		} else if m.state == stateError {
			m.state = m.settled
			m.errMsg = ""
		}
		return m, nil
	case key.Matches(msg, m.keys.Check):
		return m, m.startCheck(true)
	case key.Matches(msg, m.keys.Copy):
		return m, m.copyReport()
	case key.Matches(msg, m.keys.Install):
		if !m.showPanel {
			return m, nil
		}
		if m.state != stateAvailable && m.state != stateError {
			return m, nil
		}
		if m.checkInFlight {
			m.installQueued = true
			m.showToast("Install starts after the running check", false)
			return m, scheduleToastTick()
		}
		return m, m.startInstall()
	}

	if m.showPanel {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}
