package journal

import (
	"time"
)

// RunRecord summarises one completed upload run in the journal.
type RunRecord struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	Elapsed    time.Duration `json:"elapsed"`
	Total      int64         `json:"total"`
	Processed  int64         `json:"processed"`
	Successful int64         `json:"successful"`
	Failed     int64         `json:"failed"`
	Duplicates int64         `json:"duplicates"`
	Cancelled  bool          `json:"cancelled"`
	CreatedAt  time.Time     `json:"created_at"`
}

// FailureRecord keeps a failed record's full content so a later run can
// retry it without re-reading the original input.
type FailureRecord struct {
	RunID     string            `json:"run_id"`
	RecordID  string            `json:"record_id"`
	Payload   []byte            `json:"payload,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Attempts  int               `json:"attempts"`
	LastError string            `json:"last_error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Store defines the interface for journal persistence
type Store interface {
	// Run operations
	SaveRun(run *RunRecord, failures []FailureRecord) error
	GetRun(runID string) (*RunRecord, error)
	LatestRunID() (string, error)
	ListFailures(runID string) ([]FailureRecord, error)

	// Cleanup
	Close() error
}
