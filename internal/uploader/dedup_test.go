package uploader

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFingerprint_SensitiveToIDAndPayload(t *testing.T) {
	base := Record{ID: "a", Payload: []byte("data")}

	same := Record{ID: "a", Payload: []byte("data")}
	require.Equal(t, base.Fingerprint(), same.Fingerprint())

	changedPayload := Record{ID: "a", Payload: []byte("data2")}
	require.NotEqual(t, base.Fingerprint(), changedPayload.Fingerprint())

	changedID := Record{ID: "b", Payload: []byte("data")}
	require.NotEqual(t, base.Fingerprint(), changedID.Fingerprint())

	// The separator keeps id and payload bytes from shifting into each other.
	left := Record{ID: "ab", Payload: []byte("c")}
	right := Record{ID: "a", Payload: []byte("bc")}
	require.NotEqual(t, left.Fingerprint(), right.Fingerprint())
}

func TestDedupTracker_FirstMarkWins(t *testing.T) {
	tracker := newDedupTracker(true, 4)
	fp := Record{ID: "a", Payload: []byte("x")}.Fingerprint()

	require.True(t, tracker.checkAndMark(fp))
	require.False(t, tracker.checkAndMark(fp))
	require.False(t, tracker.checkAndMark(fp))
}

func TestDedupTracker_DisabledNeverMarks(t *testing.T) {
	tracker := newDedupTracker(false, 0)
	fp := Record{ID: "a", Payload: []byte("x")}.Fingerprint()

	require.True(t, tracker.checkAndMark(fp))
	require.True(t, tracker.checkAndMark(fp))
}

func TestDedupTracker_ConcurrentMarkIsExclusive(t *testing.T) {
	tracker := newDedupTracker(true, 1)
	fp := Record{ID: "a", Payload: []byte("x")}.Fingerprint()

	var wg sync.WaitGroup
	var wins int64
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tracker.checkAndMark(fp) {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, wins)
}
