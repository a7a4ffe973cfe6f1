package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"insdesk/internal/config"
	"insdesk/internal/debug"
	"insdesk/internal/history"
	"insdesk/internal/ui"
	"insdesk/internal/update"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	checkTimeout   = 30 * time.Second
	historyTimeout = 5 * time.Second
)

func main() {
	code, relaunch := run()
	if relaunch {
		// Runs after the terminal is restored and run's deferred cleanup.
		if err := update.Relaunch(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: update installed but restart failed: %v\n", err)
			os.Exit(1)
		}
	}
	os.Exit(code)
}

// run executes the selected mode and reports the exit code, and whether an
// installed update is waiting to be started.
func run() (int, bool) {
	if err := config.Initialize(); err != nil {
		fmt.Printf("Error initializing config: %v\n", err)
		return 1, false
	}

	versionFlag := flag.Bool("version", false, "Print version information and exit")
	debugFlag := flag.Bool("debug", false, "Write a diagnostic log to ~/.insdesk/debug.log")
	checkFlag := flag.Bool("check", false, "Run one version check, print the report and exit")
	updateFlag := flag.Bool("update", false, "Install the available update and restart")
	historyFlag := flag.Int("history", 0, "Print the last N recorded checks and exit")
	backendURLFlag := flag.String("backend-url", config.GetString(config.KeyBackendURL), "Base URL of the backend service")
	manifestURLFlag := flag.String("manifest-url", config.GetString(config.KeyManifestURL), "URL of the update manifest")
	skipUpdateFlag := flag.Bool("skip-update-check", config.GetBool(config.KeySkipUpdate), "Disable periodic update checks (or set INS_UPDATE_SKIP_CHECK=true)")
	checkIntervalFlag := flag.Duration("check-interval", config.GetDuration(config.KeyCheckInterval), "Interval between periodic update checks")
	flag.Parse()

	if *versionFlag {
		printVersion(os.Stdout)
		return 0, false
	}

	if err := debug.Init(*debugFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: debug log unavailable: %v\n", err)
	}
	defer debug.Close()

	visited := map[string]struct{}{}
	flag.CommandLine.Visit(func(f *flag.Flag) {
		visited[f.Name] = struct{}{}
	})
	if err := config.ApplyOverrides(collectOverrides(runtimeFlags{
		backendURL:    backendURLFlag,
		manifestURL:   manifestURLFlag,
		skipUpdate:    skipUpdateFlag,
		checkInterval: checkIntervalFlag,
	}, visited)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1, false
	}
	runtime := computeRuntimeOptions()

	var store *history.Store
	if runtime.historyEnabled {
		ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
		s, err := history.Open(ctx, runtime.historyPath)
		cancel()
		if err != nil {
			debug.Logf("history disabled: %v", err)
			if *historyFlag > 0 {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return 1, false
			}
		} else {
			store = s
			defer func() { _ = store.Close() }()
		}
	}

	pending := &relaunchLatch{}
	coord := buildCoordinator(runtime, resolveAppVersion(), pending.request)

	switch {
	case *historyFlag > 0:
		if store == nil {
			fmt.Fprintln(os.Stderr, "Error: check history is disabled")
			return 1, false
		}
		ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
		err := printHistory(ctx, os.Stdout, store, *historyFlag)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1, false
		}
		return 0, false
	case *checkFlag:
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		code := runCheck(ctx, os.Stdout, coord, recorderOrNil(store))
		cancel()
		return code, false
	case *updateFlag:
		if err := runUpdate(context.Background(), os.Stdout, coord); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1, false
		}
		return 0, pending.requested()
	}

	appCfg := ui.Config{
		Coordinator:   coord,
		History:       recorderOrNil(store),
		Version:       Version,
		InitialDelay:  runtime.initialDelay,
		CheckInterval: runtime.checkInterval,
		AutoCheck:     !runtime.skipUpdateCheck,
		OutputFormat:  runtime.outputFormat,
	}
	if err := runProgram(appCfg, func(app *ui.App) programRunner {
		return tea.NewProgram(app, tea.WithAltScreen())
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1, false
	}
	return 0, pending.requested()
}

// relaunchLatch stands in for the provider's relaunch step. The restart is
// deferred until main has released the terminal and closed its resources.
type relaunchLatch struct {
	flag atomic.Bool
}

func (l *relaunchLatch) request() error {
	l.flag.Store(true)
	return nil
}

func (l *relaunchLatch) requested() bool {
	return l.flag.Load()
}

type programRunner interface {
	Run() (tea.Model, error)
}

type programFactory func(*ui.App) programRunner

func runProgram(cfg ui.Config, factory programFactory) error {
	if factory == nil {
		return fmt.Errorf("program factory is nil")
	}
	prog := factory(ui.NewApp(cfg))
	if prog == nil {
		return fmt.Errorf("program is nil")
	}
	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("run UI: %w", err)
	}
	return nil
}

// recorderOrNil keeps a nil *history.Store from becoming a non-nil interface.
func recorderOrNil(s *history.Store) ui.Recorder {
	if s == nil {
		return nil
	}
	return s
}

type runtimeFlags struct {
	backendURL    *string
	manifestURL   *string
	skipUpdate    *bool
	checkInterval *time.Duration
}

type runtimeOptions struct {
	backendURL      string
	backendTimeout  time.Duration
	manifestURL     string
	publicKey       string
	checkInterval   time.Duration
	initialDelay    time.Duration
	skipUpdateCheck bool
	releaseFeed     bool
	repoOwner       string
	repoName        string
	githubToken     string
	historyEnabled  bool
	historyPath     string
	outputFormat    string
}

// collectOverrides maps explicitly set flags onto config keys.
func collectOverrides(flags runtimeFlags, visited map[string]struct{}) map[string]any {
	overrides := map[string]any{}
	if flagWasExplicitlySet("backend-url", visited) {
		overrides[config.KeyBackendURL] = strings.TrimSpace(*flags.backendURL)
	}
	if flagWasExplicitlySet("manifest-url", visited) {
		overrides[config.KeyManifestURL] = strings.TrimSpace(*flags.manifestURL)
	}
	if flagWasExplicitlySet("skip-update-check", visited) {
		overrides[config.KeySkipUpdate] = *flags.skipUpdate
	}
	if flagWasExplicitlySet("check-interval", visited) {
		overrides[config.KeyCheckInterval] = flags.checkInterval.String()
	}
	return overrides
}

func computeRuntimeOptions() runtimeOptions {
	opts := runtimeOptions{
		backendURL:      strings.TrimSpace(config.GetString(config.KeyBackendURL)),
		backendTimeout:  config.GetDuration(config.KeyBackendTimeout),
		manifestURL:     strings.TrimSpace(config.GetString(config.KeyManifestURL)),
		publicKey:       strings.TrimSpace(config.GetString(config.KeyPublicKey)),
		checkInterval:   config.GetDuration(config.KeyCheckInterval),
		initialDelay:    config.GetDuration(config.KeyInitialDelay),
		skipUpdateCheck: config.GetBool(config.KeySkipUpdate),
		releaseFeed:     config.GetBool(config.KeyReleaseFeed),
		repoOwner:       strings.TrimSpace(config.GetString(config.KeyRepoOwner)),
		repoName:        strings.TrimSpace(config.GetString(config.KeyRepoName)),
		githubToken:     strings.TrimSpace(config.GetString(config.KeyGitHubToken)),
		historyEnabled:  config.GetBool(config.KeyHistoryEnabled),
		outputFormat:    strings.TrimSpace(config.GetString(config.KeyOutputFormat)),
	}
	if opts.checkInterval <= 0 {
		opts.checkInterval = config.DefaultCheckInterval
	}
	if opts.initialDelay < 0 {
		opts.initialDelay = 0
	}
	if opts.historyEnabled {
		path, err := config.HistoryPath()
		if err != nil {
			debug.Logf("history disabled: %v", err)
			opts.historyEnabled = false
		}
		opts.historyPath = path
	}
	return opts
}

// buildCoordinator wires the provider and the coordinator to the same
// resolved app version so the check and the status agree.
func buildCoordinator(opts runtimeOptions, current string, relaunch func() error) *update.Coordinator {
	var providerOpts []update.ManifestOption
	if relaunch != nil {
		providerOpts = append(providerOpts, update.WithRelauncher(relaunch))
	}
	provider := update.NewManifestProvider(opts.manifestURL, opts.publicKey, current, providerOpts...)
	backend := update.NewBackendClient(opts.backendURL, update.WithBackendTimeout(opts.backendTimeout))

	coordOpts := []update.CoordinatorOption{
		update.WithAppVersion(func() (string, error) { return current, nil }),
	}
	if opts.releaseFeed && opts.repoOwner != "" && opts.repoName != "" {
		feedOpts := []update.FeedOption{}
		if opts.githubToken != "" {
			feedOpts = append(feedOpts, update.WithFeedToken(opts.githubToken))
		}
		coordOpts = append(coordOpts, update.WithReleaseFeed(update.NewReleaseFeed(opts.repoOwner, opts.repoName, feedOpts...)))
	}
	return update.NewCoordinator(provider, backend, coordOpts...)
}

func flagWasExplicitlySet(name string, visited map[string]struct{}) bool {
	if _, ok := visited[name]; ok {
		return true
	}
	f := flag.CommandLine.Lookup(name)
	if f == nil {
		return false
	}
	return f.Value.String() != f.DefValue
}

// exitCode is what --check exits with for a given status.
func exitCode(s update.VersionStatus) int {
	if s.Error != "" {
		return 1
	}
	return 0
}

func writeLine(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format+"\n", args...)
}
