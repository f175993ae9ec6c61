package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"mail2mem/internal/config"
	"mail2mem/internal/journal"
	"mail2mem/internal/metrics"
	"mail2mem/internal/progress"
	"mail2mem/internal/store"
	"mail2mem/internal/uploader"

	"go.uber.org/zap"
)

// App wires the input source, pipeline, journal and metrics together for
// one upload run.
type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	client   store.Client
	journal  journal.Store
	metrics  *metrics.Collector
	pipeline *uploader.Pipeline
}

// New creates a new app instance
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	// Create store client
	client, err := newStoreClient(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to create store client: %w", err)
	}

	// Create journal store if configured
	var journalStore journal.Store
	if cfg.Upload.Journal != "" {
		journalStore, err = journal.NewSQLiteStore(cfg.Upload.Journal)
		if err != nil {
			return nil, fmt.Errorf("failed to create journal store: %w", err)
		}
	}

	// Create metrics collector
	metricsCollector := metrics.New()

	// Create upload pipeline
	pipeline, err := uploader.New(pipelineConfig(cfg), client, metricsCollector, logger)
	if err != nil {
		if journalStore != nil {
			journalStore.Close()
		}
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	return &App{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		journal:  journalStore,
		metrics:  metricsCollector,
		pipeline: pipeline,
	}, nil
}

// Run executes the upload process
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Starting upload run",
		zap.String("store", a.cfg.Store.Backend),
		zap.String("input", a.cfg.Upload.Input),
		zap.String("retry_failed", a.cfg.Upload.RetryFailed),
		zap.Int("max_workers", a.cfg.Upload.MaxWorkers),
		zap.Int("batch_size", a.cfg.Upload.BatchSize),
		zap.Bool("dry_run", a.cfg.Upload.DryRun),
	)

	// Start metrics server in a goroutine when an address is configured
	if addr := a.cfg.Upload.MetricsAddr; addr != "" {
		go func() {
			if err := a.metrics.StartServer(addr); err != nil {
				a.logger.Error("Failed to start metrics server", zap.Error(err))
			}
		}()
	}

	records, err := a.loadRecords()
	if err != nil {
		return fmt.Errorf("failed to load records: %w", err)
	}

	var totalBytes int64
	for _, rec := range records {
		totalBytes += int64(len(rec.Payload))
	}
	a.logger.Info("Records loaded",
		zap.Int("records", len(records)),
		zap.String("total_size", progress.FormatBytes(totalBytes)),
	)

	if a.cfg.Upload.DryRun {
		for _, rec := range records {
			a.logger.Debug("Would upload record",
				zap.String("record_id", rec.ID),
				zap.Int("size", len(rec.Payload)),
			)
		}
		a.logger.Info("Dry run finished - nothing uploaded", zap.Int("records", len(records)))
		return nil
	}

	report, err := a.pipeline.Upload(ctx, records)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	a.logSummary(report)
	a.saveRun(report)

	if a.cfg.Upload.Report != "" {
		if err := a.writeReport(report, a.cfg.Upload.Report); err != nil {
			return err
		}
	}

	return nil
}

func (a *App) loadRecords() ([]uploader.Record, error) {
	if a.cfg.Upload.RetryFailed != "" {
		return a.loadJournaledFailures(a.cfg.Upload.RetryFailed)
	}
	return ReadRecords(a.cfg.Upload.Input)
}

// loadJournaledFailures rebuilds upload records from a previous run's
// journaled failures. The run id "last" selects the most recent run.
func (a *App) loadJournaledFailures(runID string) ([]uploader.Record, error) {
	if a.journal == nil {
		return nil, fmt.Errorf("retry-failed requires a journal file")
	}

	if runID == "last" {
		latest, err := a.journal.LatestRunID()
		if err != nil {
			return nil, fmt.Errorf("failed to find latest run: %w", err)
		}
		if latest == "" {
			return nil, fmt.Errorf("journal has no recorded runs")
		}
		runID = latest
	}

	run, err := a.journal.GetRun(runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	if run == nil {
		return nil, fmt.Errorf("run %s not found in journal", runID)
	}

	a.logger.Info("Retrying failed records from previous run",
		zap.String("run_id", runID),
		zap.Int64("failed", run.Failed),
		zap.Time("started_at", run.StartedAt),
	)

	failures, err := a.journal.ListFailures(runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list failures for run %s: %w", runID, err)
	}

	records := make([]uploader.Record, 0, len(failures))
	for _, f := range failures {
		records = append(records, uploader.Record{
			ID:       f.RecordID,
			Payload:  f.Payload,
			Metadata: f.Metadata,
		})
	}
	return records, nil
}

func (a *App) logSummary(report *uploader.Report) {
	a.logger.Info("Upload run completed",
		zap.String("run_id", report.RunID),
		zap.Int("total", report.Total),
		zap.Int64("processed", report.Processed),
		zap.Int64("successful", report.Successful),
		zap.Int64("failed", report.Failed),
		zap.Int64("duplicates", report.Duplicates),
		zap.Int("batches", report.Batches),
		zap.Float64("success_rate", report.SuccessRate()),
		zap.String("elapsed", progress.FormatDuration(report.Elapsed)),
	)

	if report.Cancelled {
		a.logger.Warn("Run was cancelled before all records were processed",
			zap.Int64("processed", report.Processed),
			zap.Int("total", report.Total),
		)
	}
	if report.Failed > 0 {
		a.logger.Warn("Some records failed to upload", zap.Int64("failed", report.Failed))
	}
}

// saveRun persists the run to the journal. Journal problems are logged but
// never fail a finished upload.
func (a *App) saveRun(report *uploader.Report) {
	if a.journal == nil {
		return
	}

	run := &journal.RunRecord{
		RunID:      report.RunID,
		StartedAt:  report.StartedAt,
		Elapsed:    report.Elapsed,
		Total:      int64(report.Total),
		Processed:  report.Processed,
		Successful: report.Successful,
		Failed:     report.Failed,
		Duplicates: report.Duplicates,
		Cancelled:  report.Cancelled,
	}

	failures := make([]journal.FailureRecord, 0, len(report.FailedRecords))
	for _, f := range report.FailedRecords {
		failures = append(failures, journal.FailureRecord{
			RunID:     report.RunID,
			RecordID:  f.Record.ID,
			Payload:   f.Record.Payload,
			Metadata:  f.Record.Metadata,
			Attempts:  f.Attempts,
			LastError: f.Error,
		})
	}

	if err := a.journal.SaveRun(run, failures); err != nil {
		a.logger.Error("Failed to save run to journal",
			zap.String("run_id", report.RunID),
			zap.Error(err),
		)
		return
	}

	a.logger.Info("Run saved to journal",
		zap.String("run_id", report.RunID),
		zap.Int("failures", len(failures)),
	)
}

func (a *App) writeReport(report *uploader.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	a.logger.Info("Report written", zap.String("path", path))
	return nil
}

// Close cleans up resources
func (a *App) Close() error {
	if a.journal != nil {
		return a.journal.Close()
	}
	return nil
}

func newStoreClient(cfg config.Store) (store.Client, error) {
	switch cfg.Backend {
	case "memory":
		return store.NewMemoryClient(store.MemoryConfig{
			Endpoint: cfg.Endpoint,
			APIKey:   cfg.APIKey,
		})
	case "s3":
		return store.NewS3Client(store.S3Config{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Secure:    cfg.Secure,
			Bucket:    cfg.Bucket,
			Prefix:    cfg.Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func pipelineConfig(cfg *config.Config) uploader.Config {
	return uploader.Config{
		MaxWorkers:           cfg.Upload.MaxWorkers,
		BatchSize:            cfg.Upload.BatchSize,
		MaxConcurrentBatches: cfg.Upload.MaxConcurrentBatches,
		RetryAttempts:        cfg.Upload.RetryAttempts,
		RetryDelay:           time.Duration(cfg.Upload.RetryDelayMs) * time.Millisecond,
		MaxRetryDelay:        time.Duration(cfg.Upload.MaxRetryDelayMs) * time.Millisecond,
		TimeoutPerItem:       time.Duration(cfg.Upload.TimeoutPerItemMs) * time.Millisecond,
		DedupEnabled:         cfg.Upload.DedupEnabled,
		ProgressInterval:     time.Duration(cfg.Upload.ProgressIntervalMs) * time.Millisecond,
		RetryUnknown:         cfg.Upload.RetryUnknown,
		DrainOnCancel:        cfg.Upload.DrainOnCancel,
	}
}
