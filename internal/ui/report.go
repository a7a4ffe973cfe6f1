package ui

import (
	"fmt"
	"strings"
	"time"

	"insdesk/internal/update"
)

// FormatStatusReport renders a status as plain text, for the clipboard and
// for non-interactive output.
func FormatStatusReport(s update.VersionStatus) string {
	var b strings.Builder
	line := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&b, "%-18s %s\n", label+":", value)
	}

	line("App version", s.CurrentAppVersion)
	backend := s.CurrentBackendVersion
	if s.CurrentBackendAPIVersion != "" {
		backend = fmt.Sprintf("%s (api %s)", backend, s.CurrentBackendAPIVersion)
	}
	line("Backend version", backend)

	switch {
	case s.Error != "":
		line("Update check", "failed: "+s.Error)
	case s.AppUpdateAvailable:
		line("Update available", s.LatestAppVersion)
		line("Released", s.ReleaseDate)
	default:
		line("Update check", "up to date")
	}
	line("Latest backend", s.LatestBackendVersion)
	if !s.CheckedAt.IsZero() {
		line("Checked at", s.CheckedAt.Local().Format(time.RFC3339))
	}
	return b.String()
}
