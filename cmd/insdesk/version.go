package main

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"strings"

	"insdesk/internal/update"
)

// Version information - injected at build time via ldflags
var (
	Version   = "dev"
	Build     = "unknown"
	BuildTime = ""
)

// appVersion reports the running build's version to the update coordinator.
// Development builds have no comparable version.
func appVersion() (string, error) {
	v := strings.TrimSpace(Version)
	if v == "" || v == "dev" {
		return "", fmt.Errorf("development build has no release version")
	}
	return v, nil
}

// resolveAppVersion is the version both the update check and the reported
// status compare against.
func resolveAppVersion() string {
	v, err := appVersion()
	if err != nil {
		return update.FallbackAppVersion
	}
	return v
}

// printVersion prints the version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "insdesk version %s", Version)

	if Build != "unknown" && Build != "" {
		fmt.Fprintf(w, " (build: %s)", Build)
	}

	if BuildTime != "" {
		fmt.Fprintf(w, " [%s]", BuildTime)
	}

	fmt.Fprintln(w)

	fmt.Fprintf(w, "Go version: %s\n", runtime.Version())
	fmt.Fprintf(w, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	if Version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range info.Settings {
				if setting.Key == "vcs.revision" && len(setting.Value) > 7 {
					fmt.Fprintf(w, "Commit: %s\n", setting.Value[:7])
					break
				}
			}
		}
	}
}
