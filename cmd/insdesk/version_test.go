package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintVersion(t *testing.T) {
	tests := []struct {
		name          string
		version       string
		build         string
		buildTime     string
		expectContain []string
		expectMissing []string
	}{
		{
			name:          "dev build",
			version:       "dev",
			build:         "unknown",
			expectContain: []string{"insdesk version dev", "Go version:", "OS/Arch:"},
			expectMissing: []string{"(build:"},
		},
		{
			name:          "release build with commit",
			version:       "0.3.0",
			build:         "abc1234",
			buildTime:     "2026-09-01_12:00:00",
			expectContain: []string{"insdesk version 0.3.0", "(build: abc1234)", "[2026-09-01_12:00:00]"},
		},
		{
			name:          "release build without buildtime",
			version:       "1.0.0",
			build:         "def5678",
			expectContain: []string{"insdesk version 1.0.0", "(build: def5678)"},
			expectMissing: []string{"["},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			origVersion, origBuild, origBuildTime := Version, Build, BuildTime
			defer func() {
				Version, Build, BuildTime = origVersion, origBuild, origBuildTime
			}()
			Version, Build, BuildTime = tt.version, tt.build, tt.buildTime

			var buf bytes.Buffer
			printVersion(&buf)
			output := buf.String()

			for _, want := range tt.expectContain {
				if !strings.Contains(output, want) {
					t.Errorf("expected output to contain %q, got:\n%s", want, output)
				}
			}
			for _, missing := range tt.expectMissing {
				if strings.Contains(output, missing) {
					t.Errorf("expected output to omit %q, got:\n%s", missing, output)
				}
			}
		})
	}
}

func TestAppVersion(t *testing.T) {
	orig := Version
	defer func() { Version = orig }()

	Version = "dev"
	if _, err := appVersion(); err == nil {
		t.Error("dev build should not report a release version")
	}

	Version = " 0.3.0 "
	v, err := appVersion()
	if err != nil {
		t.Fatalf("appVersion() error = %v", err)
	}
	if v != "0.3.0" {
		t.Errorf("appVersion() = %q, want 0.3.0", v)
	}
}
