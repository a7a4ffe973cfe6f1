package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"insdesk/internal/update"
)

// checkTickMsg fires when the periodic check is due.
type checkTickMsg struct{}

type reconcileDoneMsg struct {
	status update.VersionStatus
	manual bool
}

type installProgressMsg update.DownloadProgress

type installDoneMsg struct {
	installed bool
	err       error
}

type toastTickMsg struct{}

func scheduleCheck(after time.Duration) tea.Cmd {
	if after <= 0 {
		return nil
	}
	return tea.Tick(after, func(time.Time) tea.Msg { return checkTickMsg{} })
}

func scheduleToastTick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return toastTickMsg{} })
}
