package retry

import (
	"math"
	"time"
)

// ExponentialBackoff computes the wait before each retry.
type ExponentialBackoff struct {
	// initialDelay is the wait before the first retry
	initialDelay time.Duration

	// maxDelay caps the wait; zero means unbounded
	maxDelay time.Duration

	// multiplier is the growth factor between retries
	multiplier float64
}

// BackoffOption is a functional option for configuring ExponentialBackoff.
type BackoffOption func(*ExponentialBackoff)

// WithMaxDelay caps the delay between retries. Zero leaves it unbounded.
func WithMaxDelay(d time.Duration) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.maxDelay = d
	}
}

// WithMultiplier sets the factor by which the delay grows between retries.
func WithMultiplier(m float64) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.multiplier = m
	}
}

// NewExponentialBackoff creates a doubling backoff starting at initialDelay,
// with no cap unless WithMaxDelay is given.
func NewExponentialBackoff(initialDelay time.Duration, opts ...BackoffOption) *ExponentialBackoff {
	b := &ExponentialBackoff{
		initialDelay: initialDelay,
		multiplier:   2.0,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NextDelay returns the wait before retry number retry (0-based).
func (b *ExponentialBackoff) NextDelay(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}

	delay := float64(b.initialDelay) * math.Pow(b.multiplier, float64(retry))
	if b.maxDelay > 0 && delay > float64(b.maxDelay) {
		return b.maxDelay
	}
	if delay >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}
