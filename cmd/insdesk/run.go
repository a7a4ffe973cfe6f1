package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"insdesk/internal/debug"
	"insdesk/internal/history"
	"insdesk/internal/ui"
	"insdesk/internal/update"
)

const defaultFrameInterval = 120 * time.Millisecond

// runCheck performs one reconcile pass and prints the report. The returned
// value is the process exit code.
func runCheck(ctx context.Context, w io.Writer, coord ui.Reconciler, rec ui.Recorder) int {
	status := coord.Reconcile(ctx)
	if rec != nil {
		if err := rec.Record(ctx, status); err != nil {
			debug.Logf("record history: %v", err)
		}
	}
	_, _ = io.WriteString(w, ui.FormatStatusReport(status))
	return exitCode(status)
}

// runUpdate installs the pending update, drawing download progress on w.
func runUpdate(ctx context.Context, w io.Writer, coord ui.Reconciler) error {
	printer := newDownloadPrinter(w, defaultFrameInterval)
	installed, err := coord.InstallAndRelaunch(ctx, printer.Report)
	printer.Stop()
	if err != nil {
		return fmt.Errorf("install update: %w", err)
	}
	if !installed {
		writeLine(w, "No update available.")
		return nil
	}
	writeLine(w, "Update installed.")
	return nil
}

// printHistory writes the newest limit recorded passes as a table.
func printHistory(ctx context.Context, w io.Writer, store *history.Store, limit int) error {
	entries, err := store.List(ctx, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		writeLine(w, "No checks recorded yet.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "CHECKED\tAPP\tBACKEND\tLATEST\tRESULT")
	for _, e := range entries {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.CheckedAt.Local().Format("2006-01-02 15:04:05"),
			e.CurrentAppVersion,
			e.CurrentBackendVersion,
			dashIfEmpty(e.LatestAppVersion),
			historyResult(e.VersionStatus))
	}
	return tw.Flush()
}

func historyResult(s update.VersionStatus) string {
	switch {
	case s.Error != "":
		return "failed: " + s.Error
	case s.AppUpdateAvailable:
		return "update available"
	default:
		return "up to date"
	}
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// downloadPrinter redraws a single status line while an install runs.
type downloadPrinter struct {
	writer        io.Writer
	frameInterval time.Duration
	frames        []rune

	notify chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once

	mu       sync.Mutex
	latest   update.DownloadProgress
	reported bool
	frameIdx int
}

func newDownloadPrinter(w io.Writer, frameInterval time.Duration) *downloadPrinter {
	if w == nil {
		w = io.Discard
	}
	p := &downloadPrinter{
		writer:        w,
		frameInterval: frameInterval,
		frames:        []rune{'|', '/', '-', '\\'},
		notify:        make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
	go p.loop()
	return p
}

// Report records the latest snapshot and wakes the drawing loop.
func (p *downloadPrinter) Report(dp update.DownloadProgress) {
	p.mu.Lock()
	p.latest = dp
	p.reported = true
	p.mu.Unlock()
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Stop draws the last snapshot and ends the line.
func (p *downloadPrinter) Stop() {
	p.once.Do(func() {
		close(p.stopCh)
		<-p.doneCh
	})
}

func (p *downloadPrinter) snapshot() (update.DownloadProgress, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest, p.reported
}

func (p *downloadPrinter) loop() {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			if dp, ok := p.snapshot(); ok {
				p.render(dp)
				_, _ = fmt.Fprintln(p.writer)
			}
			return
		case <-p.notify:
			if dp, ok := p.snapshot(); ok {
				p.render(dp)
			}
		case <-ticker.C:
			if dp, ok := p.snapshot(); ok {
				p.render(dp)
			}
		}
	}
}

func (p *downloadPrinter) render(dp update.DownloadProgress) {
	_, _ = fmt.Fprintf(p.writer, "\r\033[2K%c %s", p.nextFrame(), formatDownload(dp))
}

func (p *downloadPrinter) nextFrame() rune {
	p.mu.Lock()
	defer p.mu.Unlock()
	frame := p.frames[p.frameIdx%len(p.frames)]
	p.frameIdx++
	return frame
}

func formatDownload(dp update.DownloadProgress) string {
	if !dp.HasTotal() {
		return fmt.Sprintf("Downloading update... %s", humanize.IBytes(uint64(max(dp.Downloaded, 0))))
	}
	return fmt.Sprintf("Downloading update... %3d%% (%s / %s)", dp.Percentage,
		humanize.IBytes(uint64(max(dp.Downloaded, 0))), humanize.IBytes(uint64(dp.Total)))
}
