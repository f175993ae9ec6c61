package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testRun(runID string) *RunRecord {
	return &RunRecord{
		RunID:      runID,
		StartedAt:  time.Now().Add(-time.Minute),
		Elapsed:    42 * time.Second,
		Total:      100,
		Processed:  100,
		Successful: 90,
		Failed:     8,
		Duplicates: 2,
	}
}

func TestSQLiteStore_SaveAndGetRun(t *testing.T) {
	store := newTestStore(t)

	run := testRun("run-1")
	failures := []FailureRecord{
		{RunID: "run-1", RecordID: "msg-001", Payload: []byte(`{"subject":"a"}`), Metadata: map[string]string{"folder": "inbox"}, Attempts: 3, LastError: "retries exhausted"},
		{RunID: "run-1", RecordID: "msg-002", Attempts: 1, LastError: "validation failed"},
	}
	require.NoError(t, store.SaveRun(run, failures))

	got, err := store.GetRun("run-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "run-1", got.RunID)
	require.Equal(t, 42*time.Second, got.Elapsed)
	require.EqualValues(t, 100, got.Total)
	require.EqualValues(t, 100, got.Processed)
	require.EqualValues(t, 90, got.Successful)
	require.EqualValues(t, 8, got.Failed)
	require.EqualValues(t, 2, got.Duplicates)
	require.False(t, got.Cancelled)
	require.WithinDuration(t, run.StartedAt, got.StartedAt, time.Second)
	require.WithinDuration(t, time.Now(), got.CreatedAt, 5*time.Second)
}

func TestSQLiteStore_GetRunMissing(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetRun("nope")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSQLiteStore_LatestRunID(t *testing.T) {
	store := newTestStore(t)

	id, err := store.LatestRunID()
	require.NoError(t, err)
	require.Empty(t, id)

	require.NoError(t, store.SaveRun(testRun("run-1"), nil))
	require.NoError(t, store.SaveRun(testRun("run-2"), nil))

	id, err = store.LatestRunID()
	require.NoError(t, err)
	require.Equal(t, "run-2", id)
}

func TestSQLiteStore_ListFailures(t *testing.T) {
	store := newTestStore(t)

	failures := []FailureRecord{
		{RecordID: "msg-003", Payload: []byte("x"), Metadata: map[string]string{"a": "1"}, Attempts: 3, LastError: "timeout"},
		{RecordID: "msg-001", Attempts: 1, LastError: "rejected"},
		{RecordID: "msg-002", Attempts: 2},
	}
	require.NoError(t, store.SaveRun(testRun("run-1"), failures))

	got, err := store.ListFailures("run-1")
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Insertion order is preserved.
	require.Equal(t, "msg-003", got[0].RecordID)
	require.Equal(t, "msg-001", got[1].RecordID)
	require.Equal(t, "msg-002", got[2].RecordID)

	require.Equal(t, []byte("x"), got[0].Payload)
	require.Equal(t, map[string]string{"a": "1"}, got[0].Metadata)
	require.Equal(t, 3, got[0].Attempts)
	require.Equal(t, "timeout", got[0].LastError)

	// Absent metadata and error stay empty.
	require.Nil(t, got[2].Metadata)
	require.Empty(t, got[2].LastError)
}

func TestSQLiteStore_ListFailuresUnknownRun(t *testing.T) {
	store := newTestStore(t)

	got, err := store.ListFailures("nope")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestSQLiteStore_ResaveReplacesFailures(t *testing.T) {
	store := newTestStore(t)

	run := testRun("run-1")
	first := []FailureRecord{
		{RecordID: "msg-001", Attempts: 3, LastError: "timeout"},
		{RecordID: "msg-002", Attempts: 3, LastError: "timeout"},
	}
	require.NoError(t, store.SaveRun(run, first))

	second := []FailureRecord{{RecordID: "msg-002", Attempts: 1, LastError: "rejected"}}
	require.NoError(t, store.SaveRun(run, second))

	got, err := store.ListFailures("run-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "msg-002", got[0].RecordID)
	require.Equal(t, "rejected", got[0].LastError)
}

func TestSQLiteStore_ClosedStoreErrors(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Close())

	err := store.SaveRun(testRun("run-1"), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "closed")

	_, err = store.GetRun("run-1")
	require.Error(t, err)

	_, err = store.LatestRunID()
	require.Error(t, err)

	_, err = store.ListFailures("run-1")
	require.Error(t, err)
}
