package ui

import (
	"fmt"
	"time"
)

var timeNow = time.Now

// formatLastChecked describes how long ago a check completed, compactly enough
// for the header.
func formatLastChecked(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	now := timeNow()
	if t.After(now) {
		return t.In(now.Location()).Format("15:04")
	}

	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff/time.Minute))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff/time.Hour))
	default:
		return t.In(now.Location()).Format("Jan 2 15:04")
	}
}
