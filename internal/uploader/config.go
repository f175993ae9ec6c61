package uploader

import (
	"fmt"
	"time"
)

// Config controls batching, concurrency and retry behaviour of the pipeline.
type Config struct {
	// MaxWorkers caps concurrent record uploads within one batch.
	MaxWorkers int
	// BatchSize is the number of records per batch; the final batch may be
	// smaller.
	BatchSize int
	// MaxConcurrentBatches caps how many batches run at the same time.
	MaxConcurrentBatches int
	// RetryAttempts is the total number of store calls per record,
	// including the first one.
	RetryAttempts int
	// RetryDelay is the backoff base after the first failed attempt.
	RetryDelay time.Duration
	// MaxRetryDelay caps the exponential backoff.
	MaxRetryDelay time.Duration
	// TimeoutPerItem bounds a single store call, not the whole retry loop.
	TimeoutPerItem time.Duration
	// DedupEnabled skips records already seen in this run.
	DedupEnabled bool
	// ProgressInterval is how often the reporter logs a snapshot.
	ProgressInterval time.Duration
	// RetryUnknown treats unclassified store errors as retryable.
	RetryUnknown bool
	// DrainOnCancel lets batches that already hold a slot finish their
	// records after cancellation instead of abandoning them.
	DrainOnCancel bool
}

// DefaultConfig returns the settings used when the caller does not override
// them.
func DefaultConfig() Config {
	return Config{
		MaxWorkers:           5,
		BatchSize:            100,
		MaxConcurrentBatches: 4,
		RetryAttempts:        3,
		RetryDelay:           500 * time.Millisecond,
		MaxRetryDelay:        30 * time.Second,
		TimeoutPerItem:       30 * time.Second,
		DedupEnabled:         true,
		ProgressInterval:     30 * time.Second,
		RetryUnknown:         false,
		DrainOnCancel:        true,
	}
}

// Validate checks that all limits are usable.
func (c Config) Validate() error {
	if c.MaxWorkers <= 0 {
		return fmt.Errorf("max workers must be positive, got %d", c.MaxWorkers)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.MaxConcurrentBatches <= 0 {
		return fmt.Errorf("max concurrent batches must be positive, got %d", c.MaxConcurrentBatches)
	}
	if c.RetryAttempts <= 0 {
		return fmt.Errorf("retry attempts must be positive, got %d", c.RetryAttempts)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay must not be negative, got %s", c.RetryDelay)
	}
	if c.MaxRetryDelay < 0 {
		return fmt.Errorf("max retry delay must not be negative, got %s", c.MaxRetryDelay)
	}
	if c.TimeoutPerItem <= 0 {
		return fmt.Errorf("timeout per item must be positive, got %s", c.TimeoutPerItem)
	}
	if c.ProgressInterval <= 0 {
		return fmt.Errorf("progress interval must be positive, got %s", c.ProgressInterval)
	}
	return nil
}
