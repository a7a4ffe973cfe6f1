package ui

import (
	"testing"
	"time"
)

func TestFormatLastChecked(t *testing.T) {
	fixedNow := time.Date(2026, time.October, 18, 12, 0, 0, 0, time.UTC)
	orig := timeNow
	timeNow = func() time.Time { return fixedNow }
	defer func() { timeNow = orig }()

	tests := []struct {
		name string
		ts   time.Time
		want string
	}{
		{name: "zero time", ts: time.Time{}, want: "never"},
		{name: "future", ts: fixedNow.Add(2 * time.Hour), want: "14:00"},
		{name: "seconds ago", ts: fixedNow.Add(-30 * time.Second), want: "just now"},
		{name: "minutes", ts: fixedNow.Add(-61 * time.Second), want: "1m ago"},
		{name: "hours", ts: fixedNow.Add(-23 * time.Hour), want: "23h ago"},
		{name: "days", ts: fixedNow.Add(-48 * time.Hour), want: "Oct 16 12:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatLastChecked(tt.ts); got != tt.want {
				t.Fatalf("formatLastChecked(%v) = %q, want %q", tt.ts, got, tt.want)
			}
		})
	}
}
