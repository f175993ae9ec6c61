package uploader

import "sync"

// dedupTracker records fingerprints seen during one run. It is shared by all
// batch workers, so checkAndMark must stay atomic: two concurrent calls with
// the same fingerprint yield exactly one true.
type dedupTracker struct {
	enabled bool

	mu   sync.Mutex
	seen map[Fingerprint]struct{}
}

func newDedupTracker(enabled bool, sizeHint int) *dedupTracker {
	t := &dedupTracker{enabled: enabled}
	if enabled {
		t.seen = make(map[Fingerprint]struct{}, sizeHint)
	}
	return t
}

// checkAndMark reports whether fp is new and marks it as seen. When dedup is
// disabled every record counts as new.
func (t *dedupTracker) checkAndMark(fp Fingerprint) bool {
	if !t.enabled {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.seen[fp]; ok {
		return false
	}
	t.seen[fp] = struct{}{}
	return true
}
