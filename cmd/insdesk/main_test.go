package main

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	goruntime "runtime"
	"testing"
	"time"

	"insdesk/internal/config"
	"insdesk/internal/ui"
	"insdesk/internal/update"

	tea "github.com/charmbracelet/bubbletea"
)

type noopProgram struct {
	err error
}

func (p noopProgram) Run() (tea.Model, error) {
	return nil, p.err
}

func TestRunProgram(t *testing.T) {
	var gotApp *ui.App
	err := runProgram(ui.Config{Version: "0.2.0"}, func(app *ui.App) programRunner {
		gotApp = app
		return noopProgram{}
	})
	if err != nil {
		t.Fatalf("runProgram returned error: %v", err)
	}
	if gotApp == nil {
		t.Fatal("expected factory to receive the app")
	}
}

func TestRunProgramErrors(t *testing.T) {
	if err := runProgram(ui.Config{}, nil); err == nil {
		t.Error("expected error for nil factory")
	}
	if err := runProgram(ui.Config{}, func(*ui.App) programRunner { return nil }); err == nil {
		t.Error("expected error for nil program")
	}
	runErr := errors.New("tty unavailable")
	err := runProgram(ui.Config{}, func(*ui.App) programRunner { return noopProgram{err: runErr} })
	if !errors.Is(err, runErr) {
		t.Errorf("expected wrapped run error, got %v", err)
	}
}

func TestCollectOverrides(t *testing.T) {
	backend := "http://127.0.0.1:9000 "
	manifest := "https://example.test/latest.json"
	skip := true
	interval := 15 * time.Minute
	flags := runtimeFlags{
		backendURL:    &backend,
		manifestURL:   &manifest,
		skipUpdate:    &skip,
		checkInterval: &interval,
	}

	got := collectOverrides(flags, map[string]struct{}{})
	if len(got) != 0 {
		t.Fatalf("expected no overrides for unset flags, got %v", got)
	}

	visited := map[string]struct{}{
		"backend-url":       {},
		"skip-update-check": {},
		"check-interval":    {},
	}
	got = collectOverrides(flags, visited)
	if got[config.KeyBackendURL] != "http://127.0.0.1:9000" {
		t.Errorf("backend url override = %v", got[config.KeyBackendURL])
	}
	if got[config.KeySkipUpdate] != true {
		t.Errorf("skip override = %v", got[config.KeySkipUpdate])
	}
	if got[config.KeyCheckInterval] != "15m0s" {
		t.Errorf("interval override = %v", got[config.KeyCheckInterval])
	}
	if _, ok := got[config.KeyManifestURL]; ok {
		t.Error("manifest url was not set and should not be overridden")
	}
}

func TestComputeRuntimeOptions(t *testing.T) {
	cleanup := config.ResetForTesting(t)
	defer cleanup()

	histPath := t.TempDir() + "/history.db"
	if err := config.ApplyOverrides(map[string]any{
		config.KeyBackendURL:    "http://127.0.0.1:9000",
		config.KeyCheckInterval: "0s",
		config.KeyInitialDelay:  "-5s",
		config.KeyHistoryPath:   histPath,
		config.KeySkipUpdate:    true,
	}); err != nil {
		t.Fatalf("ApplyOverrides: %v", err)
	}

	opts := computeRuntimeOptions()
	if opts.backendURL != "http://127.0.0.1:9000" {
		t.Errorf("backendURL = %q", opts.backendURL)
	}
	if opts.checkInterval != config.DefaultCheckInterval {
		t.Errorf("checkInterval = %v, want default for non-positive values", opts.checkInterval)
	}
	if opts.initialDelay != 0 {
		t.Errorf("initialDelay = %v, want 0 for negative values", opts.initialDelay)
	}
	if !opts.skipUpdateCheck {
		t.Error("skipUpdateCheck override lost")
	}
	if !opts.historyEnabled || opts.historyPath != histPath {
		t.Errorf("history = %v %q", opts.historyEnabled, opts.historyPath)
	}
	if opts.backendTimeout != 3*time.Second {
		t.Errorf("backendTimeout = %v, want 3s default", opts.backendTimeout)
	}
	if opts.repoOwner != "QHanh" || !opts.releaseFeed {
		t.Errorf("release feed defaults = %q %v", opts.repoOwner, opts.releaseFeed)
	}
}

func TestBuildCoordinator(t *testing.T) {
	opts := runtimeOptions{
		backendURL:  "http://127.0.0.1:1",
		manifestURL: "",
		releaseFeed: false,
	}
	if buildCoordinator(opts, "0.2.0", nil) == nil {
		t.Fatal("expected a coordinator")
	}
}

func TestExitCode(t *testing.T) {
	if got := exitCode(update.VersionStatus{}); got != 0 {
		t.Errorf("exitCode(ok) = %d", got)
	}
	if got := exitCode(update.VersionStatus{Error: "boom"}); got != 1 {
		t.Errorf("exitCode(failed) = %d", got)
	}
}

func TestRelaunchLatch(t *testing.T) {
	l := &relaunchLatch{}
	if l.requested() {
		t.Fatal("latch should start clear")
	}
	if err := l.request(); err != nil {
		t.Fatalf("request() error = %v", err)
	}
	if !l.requested() {
		t.Error("latch should be set after request")
	}
}

func TestResolveAppVersion(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()

	Version = "dev"
	if got := resolveAppVersion(); got != update.FallbackAppVersion {
		t.Errorf("resolveAppVersion() = %q, want %q", got, update.FallbackAppVersion)
	}
	Version = "0.3.0"
	if got := resolveAppVersion(); got != "0.3.0" {
		t.Errorf("resolveAppVersion() = %q, want 0.3.0", got)
	}
}

func TestBuildCoordinatorComparesAgainstResolvedVersion(t *testing.T) {
	platform := update.PlatformKey(goruntime.GOOS, goruntime.GOARCH)
	if platform == "" {
		t.Skipf("no release platform for %s/%s", goruntime.GOOS, goruntime.GOARCH)
	}
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	tests := []struct {
		name          string
		offered       string
		wantAvailable bool
	}{
		{"older than fallback", "0.0.5", false},
		{"equal to fallback", update.FallbackAppVersion, false},
		{"newer than fallback", "0.2.0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(update.Manifest{
					Version: tt.offered,
					Platforms: map[string]update.ManifestPlatform{
						platform: {URL: "http://" + r.Host + "/artifact", Signature: base64.StdEncoding.EncodeToString(make([]byte, ed25519.SignatureSize))},
					},
				})
			}))
			defer server.Close()

			opts := runtimeOptions{
				backendURL:     "http://127.0.0.1:1",
				backendTimeout: 100 * time.Millisecond,
				manifestURL:    server.URL,
				publicKey:      base64.StdEncoding.EncodeToString(pub),
			}
			orig := Version
			Version = "dev"
			defer func() { Version = orig }()

			coord := buildCoordinator(opts, resolveAppVersion(), nil)
			s := coord.Reconcile(context.Background())

			if s.CurrentAppVersion != update.FallbackAppVersion {
				t.Errorf("CurrentAppVersion = %q, want %q", s.CurrentAppVersion, update.FallbackAppVersion)
			}
			if s.AppUpdateAvailable != tt.wantAvailable {
				t.Errorf("AppUpdateAvailable = %v, want %v (status %+v)", s.AppUpdateAvailable, tt.wantAvailable, s)
			}
			if s.AppUpdateAvailable && update.Compare(s.LatestAppVersion, s.CurrentAppVersion) <= 0 {
				t.Errorf("offered %q is not newer than current %q", s.LatestAppVersion, s.CurrentAppVersion)
			}
		})
	}
}
