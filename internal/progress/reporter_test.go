package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestReporter_LogsProgressAndFinalSnapshot(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	tracker := NewTracker(10, 1)
	tracker.AddSuccess(0, 100)

	reporter := NewReporter(tracker, 10*time.Millisecond, logger)
	reporter.Start()
	time.Sleep(50 * time.Millisecond)
	reporter.Stop()

	require.NotZero(t, logs.FilterMessage("Upload progress").Len())
	require.Equal(t, 1, logs.FilterMessage("Upload finished").Len())

	entry := logs.FilterMessage("Upload finished").All()[0]
	fields := entry.ContextMap()
	require.EqualValues(t, 1, fields["processed"])
	require.EqualValues(t, 10, fields["total"])
}

func TestReporter_StopWithoutTick(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	reporter := NewReporter(NewTracker(5, 1), time.Hour, logger)
	reporter.Start()
	reporter.Stop()

	require.Zero(t, logs.FilterMessage("Upload progress").Len())
	require.Equal(t, 1, logs.FilterMessage("Upload finished").Len())
}

func TestReporter_StopIsIdempotent(t *testing.T) {
	core, _ := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	reporter := NewReporter(NewTracker(1, 1), time.Hour, logger)
	reporter.Start()
	reporter.Stop()
	reporter.Stop()
}
