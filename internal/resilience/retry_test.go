package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryReturnsImmediatelyOnSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), DefaultRetryConfig(), func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Fatalf("calls=%d err=%v, want 1,nil", calls, err)
	}
}

func TestRetryDoesNotRetryNonRetryableError(t *testing.T) {
	calls := 0
	plain := errors.New("permanent")
	err := Retry(context.Background(), DefaultRetryConfig(), func(ctx context.Context) error {
		calls++
		return plain
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retries for a non-retryable error)", calls)
	}
	if err != plain {
		t.Errorf("err = %v, want the original error", err)
	}
}

func TestRetryRetriesUntilSuccess(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Jitter: false}
	calls := 0
	err := Retry(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errors.New("transient"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryExhaustsBudgetAndReturnsLastError(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Jitter: false}
	calls := 0
	err := Retry(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		return Retryable(errors.New("always fails"))
	})
	if calls != 3 { // initial attempt + 2 retries
		t.Errorf("calls = %d, want 3", calls)
	}
	if err == nil {
		t.Errorf("expected a non-nil error after exhausting retries")
	}
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 5, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second, Jitter: false}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- Retry(ctx, cfg, func(ctx context.Context) error {
			calls++
			return Retryable(errors.New("still failing"))
		})
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	err := <-done
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
