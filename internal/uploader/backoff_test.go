package uploader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExponentialBackoff_DoublesPerAttempt(t *testing.T) {
	b := ExponentialBackoff{Base: 100 * time.Millisecond, Max: 10 * time.Second}

	require.Equal(t, 100*time.Millisecond, b.Delay(1))
	require.Equal(t, 200*time.Millisecond, b.Delay(2))
	require.Equal(t, 400*time.Millisecond, b.Delay(3))
	require.Equal(t, 800*time.Millisecond, b.Delay(4))
}

func TestExponentialBackoff_CapsAtMax(t *testing.T) {
	b := ExponentialBackoff{Base: 100 * time.Millisecond, Max: 250 * time.Millisecond}

	require.Equal(t, 100*time.Millisecond, b.Delay(1))
	require.Equal(t, 200*time.Millisecond, b.Delay(2))
	require.Equal(t, 250*time.Millisecond, b.Delay(3))
	require.Equal(t, 250*time.Millisecond, b.Delay(10))
	// Large attempt numbers stay capped instead of overflowing.
	require.Equal(t, 250*time.Millisecond, b.Delay(64))
}

func TestExponentialBackoff_ZeroBase(t *testing.T) {
	b := ExponentialBackoff{Max: time.Second}

	require.Zero(t, b.Delay(1))
	require.Zero(t, b.Delay(5))
}

func TestExponentialBackoff_JitterStaysBounded(t *testing.T) {
	b := ExponentialBackoff{Base: 100 * time.Millisecond, Max: 10 * time.Second, Jitter: true}

	for i := 0; i < 200; i++ {
		d := b.Delay(2)
		require.GreaterOrEqual(t, d, 200*time.Millisecond)
		require.Less(t, d, 250*time.Millisecond)
	}
}
