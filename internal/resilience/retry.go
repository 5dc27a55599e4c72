package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryConfig controls exponential backoff with jitter.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Jitter     bool
}

// DefaultRetryConfig matches the synthesizer's retry budget from the
// pipeline orchestrator's component design (max 3, base 100ms, max 2s).
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   2 * time.Second,
		Jitter:     true,
	}
}

// Retry runs fn, retrying only on a RetryableError, with exponential backoff
// delay = min(base*2^n, max) plus up to 10% jitter. Any non-retryable error,
// or the final attempt's error, is returned as-is.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxRetries {
			return lastErr
		}

		delay := time.Duration(math.Min(
			float64(cfg.BaseDelay)*math.Pow(2, float64(attempt)),
			float64(cfg.MaxDelay),
		))
		if cfg.Jitter {
			delay += time.Duration(rand.Float64() * 0.1 * float64(delay))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}
