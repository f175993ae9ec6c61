package store

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a store failure for retry decisions.
type Kind string

const (
	// KindTimeout covers deadlines and transient transport failures.
	KindTimeout Kind = "timeout"
	// KindRateLimited means the store asked us to slow down.
	KindRateLimited Kind = "rate_limited"
	// KindValidation means the record itself was rejected.
	KindValidation Kind = "validation"
	// KindAuth means credentials were missing or rejected.
	KindAuth Kind = "auth"
	// KindUnknown is everything a client could not classify.
	KindUnknown Kind = "unknown"
)

// Error wraps a store failure with its classification and the operation that
// produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the classification from err. Deadline and network errors
// without an explicit classification count as timeouts; anything else is
// unknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return KindTimeout
	}
	return KindUnknown
}

// Retryable reports whether the failure is worth another attempt. Timeouts
// and rate limits are transient; validation, auth and unknown failures are
// not retried by default.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindRateLimited:
		return true
	default:
		return false
	}
}
