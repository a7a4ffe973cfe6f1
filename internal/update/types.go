package update

import (
	"context"
	"time"
)

const (
	// UnknownVersion is reported when the backend cannot be reached.
	UnknownVersion = "Unknown"
	// FallbackAppVersion is used when the running build cannot report its version.
	FallbackAppVersion = "0.1.0"
)

// VersionStatus is the result of one reconciliation pass.
// Empty strings mean "absent".
type VersionStatus struct {
	CurrentAppVersion        string
	CurrentBackendVersion    string // resolved value or UnknownVersion
	CurrentBackendAPIVersion string
	LatestAppVersion         string
	LatestBackendVersion     string // best-effort, from release notes
	AppUpdateAvailable       bool
	BackendUpdateAvailable   bool // reserved; there is no authoritative source yet
	ReleaseNotes             string
	ReleaseDate              string
	Error                    string // update check failure only
	CheckedAt                time.Time
}

// UpdateAvailable reports whether any component has a pending update.
func (s VersionStatus) UpdateAvailable() bool {
	return s.AppUpdateAvailable || s.BackendUpdateAvailable
}

// BackendReachable reports whether the backend answered this pass.
func (s VersionStatus) BackendReachable() bool {
	return s.CurrentBackendVersion != "" && s.CurrentBackendVersion != UnknownVersion
}

// Handle identifies one downloadable update returned by Provider.Check.
// The download details are private to the provider that produced it.
type Handle struct {
	Version string
	Notes   string
	Date    string

	artifact artifact
}

type artifact struct {
	url       string
	signature string
}

// DownloadProgress is a snapshot of an in-flight download.
// Total is negative when the size is unknown.
type DownloadProgress struct {
	Downloaded int64
	Total      int64
	Percentage uint8
}

// HasTotal reports whether the download size is known.
func (p DownloadProgress) HasTotal() bool {
	return p.Total > 0
}

// Event is emitted by Provider.DownloadAndApply.
type Event interface {
	isEvent()
}

// EventStarted opens the stream. ContentLength is -1 when unknown.
type EventStarted struct {
	ContentLength int64
}

// EventProgress reports one received chunk.
type EventProgress struct {
	ChunkLength int64
}

// EventFinished may close the stream; callers must not depend on it.
type EventFinished struct{}

func (EventStarted) isEvent()  {}
func (EventProgress) isEvent() {}
func (EventFinished) isEvent() {}

// Provider abstracts the platform update mechanism.
type Provider interface {
	// Check returns (nil, nil) when no update exists and an error when the
	// answer could not be determined.
	Check(ctx context.Context) (*Handle, error)

	// DownloadAndApply downloads and installs the update described by h, then
	// relaunches the process. On success it does not return in production.
	DownloadAndApply(ctx context.Context, h *Handle, onEvent func(Event)) error
}

// BackendVersionInfo is the body of the backend's version endpoint.
type BackendVersionInfo struct {
	BackendVersion string `json:"backend_version"`
	APIVersion     string `json:"api_version"`
}
