package uploader

import (
	"math/rand"
	"time"
)

// Backoff computes the pause before retrying a failed attempt. Attempt is
// 1-based: Delay(1) is the pause after the first failure.
type Backoff interface {
	Delay(attempt int) time.Duration
}

// ExponentialBackoff doubles the base delay per attempt up to Max. With
// Jitter enabled, up to 25% of the computed delay is added to spread out
// retries from concurrent workers.
type ExponentialBackoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter bool
}

func (b ExponentialBackoff) Delay(attempt int) time.Duration {
	if b.Base <= 0 {
		return 0
	}

	delay := b.Base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if b.Max > 0 && delay >= b.Max {
			delay = b.Max
			break
		}
	}
	if b.Max > 0 && delay > b.Max {
		delay = b.Max
	}

	if b.Jitter {
		if extra := int64(delay / 4); extra > 0 {
			delay += time.Duration(rand.Int63n(extra))
		}
	}
	return delay
}
