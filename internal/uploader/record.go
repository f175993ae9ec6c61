package uploader

import "crypto/sha256"

// Record is one unit of work submitted for upload. The payload is opaque to
// the pipeline; records are treated as immutable once submitted.
type Record struct {
	ID       string            `json:"id"`
	Payload  []byte            `json:"payload,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Fingerprint identifies a record within a single run for duplicate
// detection. It is never persisted across runs.
type Fingerprint [sha256.Size]byte

// Fingerprint hashes the record id and payload. A record resubmitted with a
// changed payload therefore counts as new work, not as a duplicate.
// Metadata is excluded; it carries routing hints, not identity.
func (r Record) Fingerprint() Fingerprint {
	h := sha256.New()
	h.Write([]byte(r.ID))
	h.Write([]byte{0})
	h.Write(r.Payload)

	var fp Fingerprint
	h.Sum(fp[:0])
	return fp
}

// Status classifies the outcome of processing one record.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusDuplicate Status = "duplicate"
	StatusFailed    Status = "failed"
)

// Outcome is the per-record result. Callers branch on Status; Attempts
// counts store calls made, and Err is set only when Status is failed.
type Outcome struct {
	Record   Record
	Status   Status
	Attempts int
	Err      error
}
