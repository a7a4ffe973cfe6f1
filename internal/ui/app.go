package ui

import (
	"context"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"insdesk/internal/debug"
	"insdesk/internal/update"
)

const (
	defaultInitialDelay  = 5 * time.Second
	defaultCheckInterval = time.Hour
	reconcileTimeout     = 30 * time.Second
	toastDuration        = 5 * time.Second
	minPanelWidth        = 40
	maxPanelWidth        = 90
)

var uiLog = debug.L("ui")

// writeClipboard is swapped out in tests.
var writeClipboard = clipboard.WriteAll

// Reconciler runs version checks and installs updates.
type Reconciler interface {
	Reconcile(ctx context.Context) update.VersionStatus
	InstallAndRelaunch(ctx context.Context, onProgress func(update.DownloadProgress)) (bool, error)
}

// Recorder stores completed passes.
type Recorder interface {
	Record(ctx context.Context, s update.VersionStatus) error
}

// Config configures the UI application.
type Config struct {
	Coordinator   Reconciler
	History       Recorder // optional
	Version       string
	InitialDelay  time.Duration
	CheckInterval time.Duration
	AutoCheck     bool
	OutputFormat  string
}

// panelState is what the update panel is currently showing.
type panelState int

const (
	stateIdle panelState = iota
	stateChecking
	stateAvailable
	stateDownloading
	stateError
)

func (s panelState) String() string {
	switch s {
	case stateChecking:
		return "checking"
	case stateAvailable:
		return "available"
	case stateDownloading:
		return "downloading"
	case stateError:
		return "error"
	default:
		return "idle"
	}
}

// App implements the Bubble Tea model for the version panel.
type App struct {
	coord   Reconciler
	history Recorder
	keys    KeyMap

	version       string
	initialDelay  time.Duration
	checkInterval time.Duration
	autoCheck     bool
	outputFormat  string

	status    update.VersionStatus
	hasStatus bool
	state     panelState
	// settled is the state to return to when a check finishes without news.
	settled       panelState
	checkInFlight bool
	installQueued bool
	errMsg        string

	showPanel   bool
	viewport    viewport.Model
	notesSource string
	renderNotes func(string) string

	spinner   spinner.Model
	progress  progress.Model
	download  update.DownloadProgress
	installCh chan tea.Msg

	toastText    string
	toastIsError bool
	toastExpires time.Time

	width  int
	height int
	ready  bool
}

// NewApp creates the UI model.
func NewApp(cfg Config) *App {
	if cfg.InitialDelay < 0 {
		cfg.InitialDelay = defaultInitialDelay
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = defaultCheckInterval
	}

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = styleSpinner

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	vp := viewport.New(maxPanelWidth-6, 10)

	return &App{
		coord:         cfg.Coordinator,
		history:       cfg.History,
		keys:          DefaultKeyMap(),
		version:       cfg.Version,
		initialDelay:  cfg.InitialDelay,
		checkInterval: cfg.CheckInterval,
		autoCheck:     cfg.AutoCheck,
		outputFormat:  cfg.OutputFormat,
		spinner:       s,
		progress:      p,
		viewport:      vp,
		renderNotes:   buildMarkdownRenderer(cfg.OutputFormat, maxPanelWidth-8),
	}
}

func (m *App) Init() tea.Cmd {
	if !m.autoCheck {
		return nil
	}
	if m.initialDelay == 0 {
		return func() tea.Msg { return checkTickMsg{} }
	}
	return scheduleCheck(m.initialDelay)
}

// busy reports whether an animated indicator should be running.
func (m *App) busy() bool {
	return m.checkInFlight || m.state == stateDownloading
}

// startCheck launches one reconcile pass unless one is already running.
func (m *App) startCheck(manual bool) tea.Cmd {
	if m.checkInFlight || m.state == stateDownloading || m.coord == nil {
		return nil
	}
	m.checkInFlight = true
	if manual {
		m.state = stateChecking
		m.errMsg = ""
	}
	return tea.Batch(m.spinner.Tick, reconcileCmd(m.coord, m.history, manual))
}

func reconcileCmd(coord Reconciler, history Recorder, manual bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
		defer cancel()

		status := coord.Reconcile(ctx)
		if history != nil {
			if err := history.Record(ctx, status); err != nil {
				uiLog.Logf("record history: %v", err)
			}
		}
		return reconcileDoneMsg{status: status, manual: manual}
	}
}

// applyStatus folds a finished pass into the model. Failures of passive
// checks keep the last known update information and stay silent.
func (m *App) applyStatus(msg reconcileDoneMsg) {
	m.checkInFlight = false
	s := msg.status

	if s.Error != "" {
		if msg.manual {
			m.status = s
			m.hasStatus = true
			m.state = stateError
			m.settled = stateIdle
			m.errMsg = s.Error
			m.showToast("Update check failed", true)
			return
		}
		uiLog.Logf("periodic check failed: %s", s.Error)
		prev := m.status
		m.status = s
		m.status.Error = ""
		m.status.LatestAppVersion = prev.LatestAppVersion
		m.status.AppUpdateAvailable = prev.AppUpdateAvailable
		m.status.ReleaseNotes = prev.ReleaseNotes
		m.status.ReleaseDate = prev.ReleaseDate
		m.hasStatus = true
		if m.state == stateChecking {
			m.state = m.settled
		}
		return
	}

	m.status = s
	m.hasStatus = true
	m.errMsg = ""
	if s.AppUpdateAvailable {
		m.state = stateAvailable
	} else {
		m.state = stateIdle
		if msg.manual {
			m.showToast("You are up to date", false)
		}
	}
	m.settled = m.state
	m.updateNotes()
}

func (m *App) startInstall() tea.Cmd {
	if m.coord == nil || m.state == stateDownloading || m.checkInFlight {
		return nil
	}
	m.state = stateDownloading
	m.errMsg = ""
	m.download = update.DownloadProgress{Total: -1}
	ch := make(chan tea.Msg, 16)
	m.installCh = ch
	return tea.Batch(m.spinner.Tick, m.progress.SetPercent(0), installCmd(m.coord, ch))
}

// installCmd runs the install in the background and relays its progress
// through ch, one message per Cmd.
func installCmd(coord Reconciler, ch chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		go func() {
			installed, err := coord.InstallAndRelaunch(context.Background(), func(p update.DownloadProgress) {
				ch <- installProgressMsg(p)
			})
			ch <- installDoneMsg{installed: installed, err: err}
			close(ch)
		}()
		return waitForInstall(ch)()
	}
}

func waitForInstall(ch chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func (m *App) finishInstall(msg installDoneMsg) {
	m.installCh = nil
	switch {
	case msg.err != nil:
		uiLog.Logf("install failed: %v", msg.err)
		m.state = stateError
		m.settled = stateIdle
		m.errMsg = msg.err.Error()
		m.showToast("Update failed", true)
	case !msg.installed:
		m.state = stateIdle
		m.settled = stateIdle
		m.status.AppUpdateAvailable = false
		m.status.LatestAppVersion = ""
		m.showToast("No update available", false)
	default:
		m.state = stateIdle
		m.settled = stateIdle
		m.showToast("Update installed, restarting", false)
	}
}

func (m *App) copyReport() tea.Cmd {
	if !m.hasStatus {
		m.showToast("Nothing to copy yet", true)
		return scheduleToastTick()
	}
	if err := writeClipboard(FormatStatusReport(m.status)); err != nil {
		uiLog.Logf("clipboard: %v", err)
		m.showToast("Clipboard unavailable", true)
		return scheduleToastTick()
	}
	m.showToast("Copied version report", false)
	return scheduleToastTick()
}

func (m *App) showToast(text string, isError bool) {
	m.toastText = text
	m.toastIsError = isError
	m.toastExpires = timeNow().Add(toastDuration)
}

func (m *App) toastVisible() bool {
	return m.toastText != "" && timeNow().Before(m.toastExpires)
}

func (m *App) panelWidth() int {
	w := m.width - 8
	if w > maxPanelWidth {
		w = maxPanelWidth
	}
	if w < minPanelWidth {
		w = minPanelWidth
	}
	return w
}

func (m *App) resize(width, height int) {
	m.width = width
	m.height = height
	m.ready = true

	inner := m.panelWidth() - 6
	m.progress.Width = inner
	m.viewport.Width = inner
	vh := height - 18
	if vh < 3 {
		vh = 3
	}
	m.viewport.Height = vh
	m.renderNotes = buildMarkdownRenderer(m.outputFormat, inner)
	m.notesSource = ""
	m.updateNotes()
}

// updateNotes re-renders release notes into the viewport when they change.
func (m *App) updateNotes() {
	notes := m.status.ReleaseNotes
	if notes == m.notesSource {
		return
	}
	m.notesSource = notes
	if notes == "" {
		m.viewport.SetContent("")
		return
	}
	m.viewport.SetContent(m.renderNotes(notes))
	m.viewport.GotoTop()
}
