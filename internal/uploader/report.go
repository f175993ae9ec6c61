package uploader

import (
	"time"

	"mail2mem/internal/progress"
)

// FailedRecord pairs a record with the reason its upload gave up, so the
// caller can journal it and retry in a later run.
type FailedRecord struct {
	Record   Record `json:"record"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error"`
}

// Report summarises one pipeline run. Records from batches that never
// started before cancellation appear in no bucket; a cancelled run with
// Processed below Total is how callers detect that.
type Report struct {
	RunID         string                 `json:"run_id"`
	Total         int                    `json:"total"`
	Processed     int64                  `json:"processed"`
	Successful    int64                  `json:"successful"`
	Failed        int64                  `json:"failed"`
	Duplicates    int64                  `json:"duplicates"`
	Batches       int                    `json:"batches"`
	Cancelled     bool                   `json:"cancelled"`
	StartedAt     time.Time              `json:"started_at"`
	Elapsed       time.Duration          `json:"elapsed_ns"`
	FailedRecords []FailedRecord         `json:"failed_records,omitempty"`
	WorkerStats   []progress.WorkerStats `json:"worker_stats"`
}

// SuccessRate is the fraction of processed records that uploaded.
func (r *Report) SuccessRate() float64 {
	if r.Processed == 0 {
		return 0
	}
	return float64(r.Successful) / float64(r.Processed)
}

// Throughput is processed records per second.
func (r *Report) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Processed) / r.Elapsed.Seconds()
}
