package progress

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Reporter logs progress snapshots at a fixed interval until stopped.
type Reporter struct {
	tracker  *Tracker
	interval time.Duration
	logger   *zap.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewReporter creates a reporter that logs a snapshot every interval.
func NewReporter(tracker *Tracker, interval time.Duration, logger *zap.Logger) *Reporter {
	return &Reporter{
		tracker:  tracker,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start starts the reporting loop.
func (r *Reporter) Start() {
	go r.reportLoop()
}

// Stop logs one final snapshot and waits for the loop to exit. Safe to call
// more than once.
func (r *Reporter) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	<-r.doneCh
}

func (r *Reporter) reportLoop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.log("Upload progress")
		case <-r.stopCh:
			r.log("Upload finished")
			return
		}
	}
}

func (r *Reporter) log(msg string) {
	snap := r.tracker.Snapshot()

	var speed float64
	if snap.Elapsed > 0 {
		speed = float64(snap.Bytes) / snap.Elapsed.Seconds()
	}

	r.logger.Info(msg,
		zap.Int64("processed", snap.Processed),
		zap.Int64("total", snap.Total),
		zap.Float64("percent", snap.Percent()),
		zap.Int64("successful", snap.Successful),
		zap.Int64("failed", snap.Failed),
		zap.Int64("duplicates", snap.Duplicates),
		zap.String("uploaded", FormatBytes(snap.Bytes)),
		zap.String("speed", FormatSpeed(speed)),
		zap.String("elapsed", FormatDuration(snap.Elapsed)),
		zap.String("eta", FormatDuration(snap.ETA())),
	)
}
