package update

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"insdesk/internal/debug"
)

var coordLog = debug.L("update")

// BackendSource reports the version of the co-located backend service.
// A nil result means the backend could not be reached.
type BackendSource interface {
	GetBackendVersion(ctx context.Context) *BackendVersionInfo
}

// ReleaseSource returns the latest published release.
type ReleaseSource interface {
	Latest(ctx context.Context) (*ReleaseInfo, error)
}

// Coordinator merges the app update check, the backend version lookup and
// the release feed into one VersionStatus, and drives installs of the update
// it last saw.
//
// The cached handle is guarded for memory safety only. Concurrent Reconcile
// calls are not coalesced; whichever check finishes last wins the slot.
type Coordinator struct {
	provider   Provider
	backend    BackendSource
	feed       ReleaseSource
	appVersion func() (string, error)
	now        func() time.Time

	mu     sync.Mutex
	cached *Handle
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithAppVersion sets how the running app version is resolved.
// Errors and empty results fall back to FallbackAppVersion.
func WithAppVersion(fn func() (string, error)) CoordinatorOption {
	return func(c *Coordinator) {
		c.appVersion = fn
	}
}

// WithReleaseFeed enables the best-effort latest backend version lookup.
func WithReleaseFeed(feed ReleaseSource) CoordinatorOption {
	return func(c *Coordinator) {
		c.feed = feed
	}
}

// WithClock overrides the time source used for CheckedAt.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		c.now = now
	}
}

// NewCoordinator creates a coordinator. backend may be nil, in which case the
// backend version is always reported as UnknownVersion.
func NewCoordinator(provider Provider, backend BackendSource, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		provider: provider,
		backend:  backend,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reconcile runs one check pass. It never fails: an update check failure is
// reported in VersionStatus.Error, and the other sources degrade silently.
func (c *Coordinator) Reconcile(ctx context.Context) VersionStatus {
	var (
		g        errgroup.Group
		backend  *BackendVersionInfo
		handle   *Handle
		checkErr error
		release  *ReleaseInfo
	)

	// Branches record their own outcome and never fail the group, so one slow
	// or broken source cannot cancel or hide the others.
	if c.backend != nil {
		g.Go(func() error {
			backend = c.backend.GetBackendVersion(ctx)
			return nil
		})
	}
	g.Go(func() error {
		handle, checkErr = c.provider.Check(ctx)
		return nil
	})
	if c.feed != nil {
		g.Go(func() error {
			r, err := c.feed.Latest(ctx)
			if err != nil {
				coordLog.Logf("release feed unavailable: %v", err)
				return nil
			}
			release = r
			return nil
		})
	}

	current := c.currentAppVersion()
	_ = g.Wait()

	status := VersionStatus{
		CurrentAppVersion:     current,
		CurrentBackendVersion: UnknownVersion,
		CheckedAt:             c.now(),
	}
	if backend != nil {
		status.CurrentBackendVersion = backend.BackendVersion
		status.CurrentBackendAPIVersion = backend.APIVersion
	}

	if checkErr != nil {
		coordLog.Logf("update check failed: %v", checkErr)
		status.Error = checkErr.Error()
	} else {
		c.setCached(handle)
		if handle != nil {
			status.AppUpdateAvailable = true
			status.LatestAppVersion = handle.Version
			status.ReleaseNotes = handle.Notes
			status.ReleaseDate = handle.Date
		}
	}

	if release != nil {
		if v, ok := release.BackendVersion(); ok {
			status.LatestBackendVersion = v
		}
	}

	coordLog.Logf("reconciled: app=%s backend=%s latest=%s available=%v",
		status.CurrentAppVersion, status.CurrentBackendVersion, status.LatestAppVersion, status.AppUpdateAvailable)
	return status
}

// InstallAndRelaunch installs the cached update, checking first when nothing
// is cached. It returns (false, nil) when there is nothing to install. On
// success the process is relaunched, so (true, nil) is only observed when the
// provider's relaunch returns.
//
// onProgress is called once per received chunk and never after this method
// returns.
func (c *Coordinator) InstallAndRelaunch(ctx context.Context, onProgress func(DownloadProgress)) (bool, error) {
	h := c.Pending()
	if h == nil {
		fresh, err := c.provider.Check(ctx)
		if err != nil {
			return false, err
		}
		if fresh == nil {
			coordLog.Logf("install requested but no update is available")
			return false, nil
		}
		c.setCached(fresh)
		h = fresh
	}

	coordLog.Logf("installing %s", h.Version)
	tracker := newProgressTracker(onProgress)
	err := c.provider.DownloadAndApply(ctx, h, tracker.handle)
	tracker.settle()

	if err != nil {
		coordLog.Logf("install of %s failed: %v", h.Version, err)
		c.invalidate(h)
		return false, err
	}
	return true, nil
}

// Pending returns the update handle from the most recent successful check.
func (c *Coordinator) Pending() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cached
}

func (c *Coordinator) setCached(h *Handle) {
	c.mu.Lock()
	c.cached = h
	c.mu.Unlock()
}

// invalidate clears the slot only if it still holds h.
func (c *Coordinator) invalidate(h *Handle) {
	c.mu.Lock()
	if c.cached == h {
		c.cached = nil
	}
	c.mu.Unlock()
}

func (c *Coordinator) currentAppVersion() string {
	if c.appVersion == nil {
		return FallbackAppVersion
	}
	v, err := c.appVersion()
	if err != nil {
		coordLog.Logf("app version unavailable: %v", err)
		return FallbackAppVersion
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return FallbackAppVersion
	}
	return v
}
