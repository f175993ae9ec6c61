package uploader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mail2mem/internal/metrics"
	"mail2mem/internal/progress"
	"mail2mem/internal/store"
)

// Pipeline uploads records to a store with bounded concurrency. Records are
// cut into batches; at most MaxConcurrentBatches batches run at once, and
// within a batch at most MaxWorkers records are in flight.
type Pipeline struct {
	cfg     Config
	client  store.Client
	metrics *metrics.Collector
	logger  *zap.Logger
}

// New creates a pipeline. The collector and client are required; a nil
// logger falls back to a no-op one.
func New(cfg Config, client store.Client, collector *metrics.Collector, logger *zap.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("store client is required")
	}
	if collector == nil {
		return nil, fmt.Errorf("metrics collector is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pipeline{
		cfg:     cfg,
		client:  client,
		metrics: collector,
		logger:  logger,
	}, nil
}

type batchResult struct {
	index    int
	outcomes []Outcome
}

// Upload runs the whole pipeline over records and blocks until every claimed
// batch has finished. Cancellation stops new batches from being claimed;
// whether already claimed batches finish their records depends on
// DrainOnCancel. The returned report is complete even for cancelled runs.
func (p *Pipeline) Upload(ctx context.Context, records []Record) (*Report, error) {
	start := time.Now()
	batches := splitBatches(records, p.cfg.BatchSize)

	p.logger.Info("Starting upload",
		zap.Int("records", len(records)),
		zap.Int("batches", len(batches)),
		zap.Int("batch_size", p.cfg.BatchSize),
		zap.Int("max_workers", p.cfg.MaxWorkers),
		zap.Int("max_concurrent_batches", p.cfg.MaxConcurrentBatches),
	)

	tracker := progress.NewTracker(int64(len(records)), p.cfg.MaxWorkers)
	reporter := progress.NewReporter(tracker, p.cfg.ProgressInterval, p.logger)
	reporter.Start()

	dedup := newDedupTracker(p.cfg.DedupEnabled, len(records))

	// Buffered to batch count so workers never block on the send.
	results := make(chan batchResult, len(batches))
	batchGate := make(chan struct{}, p.cfg.MaxConcurrentBatches)

	var wg sync.WaitGroup
	cancelled := false

	for i := range batches {
		select {
		case batchGate <- struct{}{}:
		case <-ctx.Done():
			cancelled = true
		}
		if cancelled {
			break
		}
		// The gate send can win the race against a cancelled context, so
		// check again before dispatching.
		if ctx.Err() != nil {
			<-batchGate
			cancelled = true
			break
		}

		wg.Add(1)
		go func(index int, recs []Record) {
			defer wg.Done()
			defer func() { <-batchGate }()

			results <- batchResult{index: index, outcomes: p.processBatch(ctx, index, recs, dedup, tracker)}
		}(i, batches[i])
	}

	wg.Wait()
	close(results)
	if ctx.Err() != nil {
		cancelled = true
	}
	reporter.Stop()

	// Reassemble per-batch outcomes in submission order. Batches that were
	// never claimed leave a nil slot.
	outcomes := make([][]Outcome, len(batches))
	for res := range results {
		outcomes[res.index] = res.outcomes
	}

	snap := tracker.Snapshot()
	report := &Report{
		RunID:       uuid.NewString(),
		Total:       len(records),
		Processed:   snap.Processed,
		Successful:  snap.Successful,
		Failed:      snap.Failed,
		Duplicates:  snap.Duplicates,
		Batches:     len(batches),
		Cancelled:   cancelled,
		StartedAt:   start,
		Elapsed:     time.Since(start),
		WorkerStats: tracker.WorkerStats(),
	}
	for _, batch := range outcomes {
		for _, o := range batch {
			if o.Status == StatusFailed {
				report.FailedRecords = append(report.FailedRecords, FailedRecord{
					Record:   o.Record,
					Attempts: o.Attempts,
					Error:    o.Err.Error(),
				})
			}
		}
	}

	return report, nil
}

// processBatch uploads one batch's records with at most MaxWorkers in
// flight and returns their outcomes in batch order.
func (p *Pipeline) processBatch(ctx context.Context, index int, recs []Record, dedup *dedupTracker, tracker *progress.Tracker) []Outcome {
	workerID := index % p.cfg.MaxWorkers
	logger := p.logger.With(zap.Int("worker_id", workerID), zap.Int("batch_index", index))
	logger.Debug("Batch started", zap.Int("records", len(recs)))

	if p.cfg.DrainOnCancel {
		// Records in a claimed batch run to completion after cancellation;
		// only the claiming of new batches stops.
		ctx = context.WithoutCancel(ctx)
	}

	exec := p.newExecutor(logger)
	outcomes := make([]Outcome, len(recs))
	itemGate := make(chan struct{}, p.cfg.MaxWorkers)

	var wg sync.WaitGroup
	for slot := range recs {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()

			itemGate <- struct{}{}
			defer func() { <-itemGate }()

			outcome := p.processRecord(ctx, exec, dedup, recs[slot])
			outcomes[slot] = outcome
			p.observe(tracker, workerID, outcome)

			if outcome.Status == StatusFailed {
				logger.Error("Record upload failed",
					zap.String("record_id", outcome.Record.ID),
					zap.Int("attempts", outcome.Attempts),
					zap.Error(outcome.Err),
				)
			}
		}(slot)
	}
	wg.Wait()

	logger.Debug("Batch finished")
	return outcomes
}

// processRecord runs dedup and the retry loop for a single record.
func (p *Pipeline) processRecord(ctx context.Context, exec *retryExecutor, dedup *dedupTracker, rec Record) Outcome {
	if !dedup.checkAndMark(rec.Fingerprint()) {
		return Outcome{Record: rec, Status: StatusDuplicate}
	}

	p.metrics.IncInflight()
	defer p.metrics.DecInflight()

	start := time.Now()
	outcome := exec.attempt(ctx, rec)
	p.metrics.ObserveDuration(time.Since(start))
	p.metrics.ObserveAttempts(outcome.Attempts)

	return outcome
}

func (p *Pipeline) observe(tracker *progress.Tracker, workerID int, outcome Outcome) {
	switch outcome.Status {
	case StatusSuccess:
		tracker.AddSuccess(workerID, int64(len(outcome.Record.Payload)))
		p.metrics.IncSuccess()
		p.metrics.AddBytes(int64(len(outcome.Record.Payload)))
	case StatusDuplicate:
		tracker.AddDuplicate(workerID)
		p.metrics.IncDuplicate()
	case StatusFailed:
		tracker.AddFailed(workerID)
		p.metrics.IncFailed()
	}
}
