package uploader

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mail2mem/internal/store"
)

// retryExecutor runs the per-record retry loop against the store client.
type retryExecutor struct {
	client       store.Client
	backoff      Backoff
	maxAttempts  int
	timeout      time.Duration
	retryUnknown bool
	logger       *zap.Logger
}

func (p *Pipeline) newExecutor(logger *zap.Logger) *retryExecutor {
	return &retryExecutor{
		client: p.client,
		backoff: ExponentialBackoff{
			Base:   p.cfg.RetryDelay,
			Max:    p.cfg.MaxRetryDelay,
			Jitter: true,
		},
		maxAttempts:  p.cfg.RetryAttempts,
		timeout:      p.cfg.TimeoutPerItem,
		retryUnknown: p.cfg.RetryUnknown,
		logger:       logger,
	}
}

// attempt uploads one record, retrying transient failures with backoff until
// the attempt budget runs out or the context is cancelled.
func (e *retryExecutor) attempt(ctx context.Context, rec Record) Outcome {
	var lastErr error

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return Outcome{
				Record:   rec,
				Status:   StatusFailed,
				Attempts: attempt - 1,
				Err:      fmt.Errorf("upload cancelled: %w", ctx.Err()),
			}
		}

		err := e.put(ctx, rec)
		if err == nil {
			return Outcome{Record: rec, Status: StatusSuccess, Attempts: attempt}
		}
		lastErr = err

		if !e.retryable(err) {
			return Outcome{Record: rec, Status: StatusFailed, Attempts: attempt, Err: err}
		}

		e.logger.Warn("Record upload attempt failed",
			zap.String("record_id", rec.ID),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", e.maxAttempts),
			zap.Error(err))

		if attempt < e.maxAttempts {
			if err := e.sleep(ctx, e.backoff.Delay(attempt)); err != nil {
				return Outcome{
					Record:   rec,
					Status:   StatusFailed,
					Attempts: attempt,
					Err:      fmt.Errorf("upload cancelled: %w", err),
				}
			}
		}
	}

	return Outcome{
		Record:   rec,
		Status:   StatusFailed,
		Attempts: e.maxAttempts,
		Err:      fmt.Errorf("retries exhausted after %d attempts: %w", e.maxAttempts, lastErr),
	}
}

// put makes a single store call. Each attempt gets the full timeout; the
// deadline never spans the whole retry loop. A panicking client is treated
// as a failed attempt rather than tearing down the worker.
func (e *retryExecutor) put(ctx context.Context, rec Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("store client panic: %v", r)
		}
	}()

	attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	return e.client.Put(attemptCtx, rec.ID, rec.Payload, rec.Metadata)
}

func (e *retryExecutor) retryable(err error) bool {
	if store.Retryable(err) {
		return true
	}
	return e.retryUnknown && store.KindOf(err) == store.KindUnknown
}

func (e *retryExecutor) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
