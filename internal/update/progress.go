package update

import "sync"

// percentage rounds half up and caps at 100. Unknown totals report 0.
func percentage(downloaded, total int64) uint8 {
	if total <= 0 || downloaded <= 0 {
		return 0
	}
	if downloaded >= total {
		return 100
	}
	return uint8((downloaded*100 + total/2) / total)
}

// progressTracker folds provider events into DownloadProgress snapshots.
// Once settled it drops late events so callbacks never outlive the install
// call that registered them.
type progressTracker struct {
	mu         sync.Mutex
	downloaded int64
	total      int64
	settled    bool
	onProgress func(DownloadProgress)
}

func newProgressTracker(onProgress func(DownloadProgress)) *progressTracker {
	return &progressTracker{total: -1, onProgress: onProgress}
}

func (t *progressTracker) handle(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.settled {
		return
	}

	switch e := ev.(type) {
	case EventStarted:
		if e.ContentLength > 0 {
			t.total = e.ContentLength
		} else {
			t.total = -1
		}
	case EventProgress:
		if e.ChunkLength <= 0 {
			return
		}
		t.downloaded += e.ChunkLength
		if t.onProgress != nil {
			t.onProgress(t.snapshotLocked())
		}
	case EventFinished:
	}
}

func (t *progressTracker) snapshotLocked() DownloadProgress {
	return DownloadProgress{
		Downloaded: t.downloaded,
		Total:      t.total,
		Percentage: percentage(t.downloaded, t.total),
	}
}

func (t *progressTracker) snapshot() DownloadProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// settle stops further callbacks.
func (t *progressTracker) settle() {
	t.mu.Lock()
	t.settled = true
	t.mu.Unlock()
}
