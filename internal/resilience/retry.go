package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Policy controls Do and DoVal.
type Policy struct {
	// Attempts is the total number of tries including the first. Default 3.
	Attempts int

	Backoff Backoff

	// ShouldRetry overrides IsTransient when set.
	ShouldRetry func(err error) bool

	// OnRetry runs before each backoff sleep.
	OnRetry func(attempt int, err error)
}

// DefaultPolicy retries transient failures three times with a short backoff.
func DefaultPolicy() Policy {
	return Policy{
		Attempts: 3,
		Backoff:  Backoff{Base: 500 * time.Millisecond, Max: 10 * time.Second, Multiplier: 2, Jitter: 0.25},
	}
}

// Do runs fn until it succeeds, fails permanently, or attempts run out.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for functions returning a value.
func DoVal[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	shouldRetry := p.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !shouldRetry(err) || attempt == p.Attempts-1 {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err)
		}
		if Sleep(ctx, p.Backoff.Delay(attempt)) != nil {
			break
		}
	}
	return zero, lastErr
}

// RetryLogger returns an OnRetry callback that logs at warn level.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
