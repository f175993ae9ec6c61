package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db      *sql.DB
	closed  bool
	writeMu sync.Mutex
}

// NewSQLiteStore creates a new SQLite journal store
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Configure SQLite for concurrent access. The driver takes pragmas in
	// _pragma=name(value) form.
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(60000)&_pragma=foreign_keys(1)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(10 * time.Minute)

	store := &SQLiteStore{
		db:     db,
		closed: false,
	}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		total INTEGER NOT NULL,
		processed INTEGER NOT NULL,
		successful INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		duplicates INTEGER NOT NULL,
		cancelled INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS failures (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		record_id TEXT NOT NULL,
		payload BLOB,
		metadata TEXT,
		attempts INTEGER NOT NULL,
		last_error TEXT,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_failures_run_id ON failures(run_id);
	`

	_, err := s.db.Exec(query)
	return err
}

// SaveRun saves a run summary and its failed records with retry mechanism.
// Re-saving the same run id replaces its failure list.
func (s *SQLiteStore) SaveRun(run *RunRecord, failures []FailureRecord) error {
	if s.closed {
		return fmt.Errorf("journal store is closed")
	}
	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("database connection is not available: %w", err)
	}

	// Serialize writes to avoid SQLITE_BUSY from multiple concurrent writers
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.retryOnBusy(func() error {
		return s.saveRunWithTransaction(run, failures)
	})
}

// saveRunWithTransaction performs the actual save operation in a transaction
func (s *SQLiteStore) saveRunWithTransaction(run *RunRecord, failures []FailureRecord) error {
	run.CreatedAt = time.Now()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // This will be ignored if Commit() succeeds

	query := `
	INSERT INTO runs
	(run_id, started_at, elapsed_ms, total, processed, successful, failed, duplicates, cancelled, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id) DO UPDATE SET
		started_at = excluded.started_at,
		elapsed_ms = excluded.elapsed_ms,
		total = excluded.total,
		processed = excluded.processed,
		successful = excluded.successful,
		failed = excluded.failed,
		duplicates = excluded.duplicates,
		cancelled = excluded.cancelled,
		created_at = excluded.created_at
	`

	_, err = tx.Exec(query,
		run.RunID,
		run.StartedAt,
		run.Elapsed.Milliseconds(),
		run.Total,
		run.Processed,
		run.Successful,
		run.Failed,
		run.Duplicates,
		run.Cancelled,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM failures WHERE run_id = ?`, run.RunID); err != nil {
		return fmt.Errorf("failed to clear old failures: %w", err)
	}

	stmt, err := tx.Prepare(`
	INSERT INTO failures (run_id, seq, record_id, payload, metadata, attempts, last_error, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare failure insert: %w", err)
	}
	defer stmt.Close()

	for i, f := range failures {
		meta, err := encodeMetadata(f.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", f.RecordID, err)
		}
		if _, err := stmt.Exec(run.RunID, i, f.RecordID, f.Payload, meta, f.Attempts, f.LastError, run.CreatedAt); err != nil {
			return fmt.Errorf("failed to save failure %s: %w", f.RecordID, err)
		}
	}

	return tx.Commit()
}

// GetRun retrieves a run summary with retry mechanism. Returns nil without
// error when the run id is unknown.
func (s *SQLiteStore) GetRun(runID string) (*RunRecord, error) {
	if s.closed {
		return nil, fmt.Errorf("journal store is closed")
	}
	if err := s.db.Ping(); err != nil {
		return nil, fmt.Errorf("database connection is not available: %w", err)
	}

	var result *RunRecord
	err := s.retryOnBusy(func() error {
		var err error
		result, err = s.getRunInternal(runID)
		return err
	})
	return result, err
}

// getRunInternal performs the actual get operation
func (s *SQLiteStore) getRunInternal(runID string) (*RunRecord, error) {
	query := `
	SELECT run_id, started_at, elapsed_ms, total, processed, successful, failed, duplicates, cancelled, created_at
	FROM runs WHERE run_id = ?
	`

	row := s.db.QueryRow(query, runID)

	var record RunRecord
	var elapsedMs int64

	err := row.Scan(
		&record.RunID,
		&record.StartedAt,
		&elapsedMs,
		&record.Total,
		&record.Processed,
		&record.Successful,
		&record.Failed,
		&record.Duplicates,
		&record.Cancelled,
		&record.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	record.Elapsed = time.Duration(elapsedMs) * time.Millisecond
	return &record, nil
}

// LatestRunID returns the most recently saved run id, or an empty string
// when the journal has no runs yet.
func (s *SQLiteStore) LatestRunID() (string, error) {
	if s.closed {
		return "", fmt.Errorf("journal store is closed")
	}
	if err := s.db.Ping(); err != nil {
		return "", fmt.Errorf("database connection is not available: %w", err)
	}

	var runID string
	err := s.retryOnBusy(func() error {
		row := s.db.QueryRow(`SELECT run_id FROM runs ORDER BY created_at DESC, rowid DESC LIMIT 1`)
		err := row.Scan(&runID)
		if err == sql.ErrNoRows {
			runID = ""
			return nil
		}
		return err
	})
	return runID, err
}

// ListFailures returns the failed records of a run in the order they were
// reported.
func (s *SQLiteStore) ListFailures(runID string) ([]FailureRecord, error) {
	if s.closed {
		return nil, fmt.Errorf("journal store is closed")
	}
	if err := s.db.Ping(); err != nil {
		return nil, fmt.Errorf("database connection is not available: %w", err)
	}

	query := `
	SELECT run_id, record_id, payload, metadata, attempts, last_error, created_at
	FROM failures WHERE run_id = ?
	ORDER BY seq ASC
	`

	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []FailureRecord

	for rows.Next() {
		var record FailureRecord
		var metadata sql.NullString
		var lastError sql.NullString

		err := rows.Scan(
			&record.RunID,
			&record.RecordID,
			&record.Payload,
			&metadata,
			&record.Attempts,
			&lastError,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		record.Metadata, err = decodeMetadata(metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to decode metadata for %s: %w", record.RecordID, err)
		}
		if lastError.Valid {
			record.LastError = lastError.String
		}

		records = append(records, record)
	}

	return records, rows.Err()
}

func encodeMetadata(metadata map[string]string) (any, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func decodeMetadata(metadata sql.NullString) (map[string]string, error) {
	if !metadata.Valid || metadata.String == "" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(metadata.String), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// retryOnBusy retries the operation if SQLite is busy
func (s *SQLiteStore) retryOnBusy(operation func() error) error {
	maxRetries := 10
	baseDelay := 50 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		if isSQLiteBusyError(err) {
			if attempt < maxRetries-1 {
				// Wait with exponential backoff + jitter
				delay := baseDelay * time.Duration(1<<uint(attempt))
				jitter := time.Duration(attempt*10) * time.Millisecond
				time.Sleep(delay + jitter)
				continue
			}
		}

		// Return the error if it's not a busy error or we've exhausted retries
		return err
	}

	return nil
}

// isSQLiteBusyError checks if the error is a SQLite busy error
func isSQLiteBusyError(err error) bool {
	if err == nil {
		return false
	}
	errorStr := err.Error()
	return strings.Contains(errorStr, "database is locked") ||
		strings.Contains(errorStr, "SQLITE_BUSY")
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.closed = true
	return s.db.Close()
}
