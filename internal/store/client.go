package store

import "context"

// Client writes one record to a backing store. Implementations must be safe
// for concurrent use and should classify failures with this package's Error
// type so the caller can decide whether to retry.
type Client interface {
	Put(ctx context.Context, id string, payload []byte, metadata map[string]string) error
}
