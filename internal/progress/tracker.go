package progress

import (
	"fmt"
	"sync"
	"time"
)

// WorkerStats holds per-worker counters for the final report.
type WorkerStats struct {
	Processed  int64 `json:"processed"`
	Successful int64 `json:"successful"`
	Failed     int64 `json:"failed"`
	Duplicates int64 `json:"duplicates"`
}

// Snapshot is a consistent view of the counters at one instant. Rates and
// estimates are derived from the snapshot fields on demand rather than
// cached on the tracker.
type Snapshot struct {
	Total      int64
	Processed  int64
	Successful int64
	Failed     int64
	Duplicates int64
	Bytes      int64
	Elapsed    time.Duration
}

// Tracker accumulates upload counters across all workers
type Tracker struct {
	mu         sync.RWMutex
	total      int64
	processed  int64
	successful int64
	failed     int64
	duplicates int64
	bytes      int64
	startTime  time.Time
	workers    []WorkerStats
}

// NewTracker creates a tracker for total records spread over workers slots
func NewTracker(total int64, workers int) *Tracker {
	if workers < 0 {
		workers = 0
	}
	return &Tracker{
		total:     total,
		startTime: time.Now(),
		workers:   make([]WorkerStats, workers),
	}
}

// AddSuccess records one uploaded record and its payload size
func (t *Tracker) AddSuccess(workerID int, bytes int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.processed++
	t.successful++
	t.bytes += bytes
	if w := t.worker(workerID); w != nil {
		w.Processed++
		w.Successful++
	}
}

// AddFailed records one record that gave up
func (t *Tracker) AddFailed(workerID int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.processed++
	t.failed++
	if w := t.worker(workerID); w != nil {
		w.Processed++
		w.Failed++
	}
}

// AddDuplicate records one record skipped by dedup
func (t *Tracker) AddDuplicate(workerID int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.processed++
	t.duplicates++
	if w := t.worker(workerID); w != nil {
		w.Processed++
		w.Duplicates++
	}
}

// worker must be called with the lock held
func (t *Tracker) worker(id int) *WorkerStats {
	if id < 0 || id >= len(t.workers) {
		return nil
	}
	return &t.workers[id]
}

// Snapshot returns a consistent copy of the current counters (thread-safe)
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return Snapshot{
		Total:      t.total,
		Processed:  t.processed,
		Successful: t.successful,
		Failed:     t.failed,
		Duplicates: t.duplicates,
		Bytes:      t.bytes,
		Elapsed:    time.Since(t.startTime),
	}
}

// WorkerStats returns a copy of the per-worker counters (thread-safe)
func (t *Tracker) WorkerStats() []WorkerStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]WorkerStats, len(t.workers))
	copy(out, t.workers)
	return out
}

// Percent returns the share of total records processed, 0-100
func (s Snapshot) Percent() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Processed) / float64(s.Total) * 100
}

// Throughput returns processed records per second so far
func (s Snapshot) Throughput() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Processed) / s.Elapsed.Seconds()
}

// ETA extrapolates the remaining time from the average pace so far. It
// returns zero while nothing has been processed yet.
func (s Snapshot) ETA() time.Duration {
	if s.Processed == 0 || s.Elapsed <= 0 || s.Processed >= s.Total {
		return 0
	}
	perRecord := s.Elapsed / time.Duration(s.Processed)
	return time.Duration(s.Total-s.Processed) * perRecord
}

// FormatSpeed formats speed in human readable format
func FormatSpeed(bytesPerSecond float64) string {
	if bytesPerSecond < 1024 {
		return fmt.Sprintf("%.1f B/s", bytesPerSecond)
	} else if bytesPerSecond < 1024*1024 {
		return fmt.Sprintf("%.1f KB/s", bytesPerSecond/1024)
	} else if bytesPerSecond < 1024*1024*1024 {
		return fmt.Sprintf("%.1f MB/s", bytesPerSecond/(1024*1024))
	} else {
		return fmt.Sprintf("%.1f GB/s", bytesPerSecond/(1024*1024*1024))
	}
}

// FormatBytes formats bytes in human readable format
func FormatBytes(bytes int64) string {
	if bytes < 1024 {
		return fmt.Sprintf("%d B", bytes)
	} else if bytes < 1024*1024 {
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	} else if bytes < 1024*1024*1024 {
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	} else {
		return fmt.Sprintf("%.1f GB", float64(bytes)/(1024*1024*1024))
	}
}

// FormatDuration formats duration in human readable format
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "n/a"
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	} else {
		return fmt.Sprintf("%ds", seconds)
	}
}
