package uploader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReport_SuccessRate(t *testing.T) {
	report := &Report{Processed: 100, Successful: 75}
	require.Equal(t, 0.75, report.SuccessRate())

	empty := &Report{}
	require.Zero(t, empty.SuccessRate())
}

func TestReport_Throughput(t *testing.T) {
	report := &Report{Processed: 100, Elapsed: 4 * time.Second}
	require.Equal(t, 25.0, report.Throughput())

	instant := &Report{Processed: 100}
	require.Zero(t, instant.Throughput())
}
