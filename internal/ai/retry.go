package ai

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = time.Second
)

// RetryConfig controls the retry policy for completion-backed calls.
type RetryConfig struct {
	MaxRetries int           // attempts beyond the first (default 3)
	BaseDelay  time.Duration // delay before the first retry (default 1s)

	// Sleep waits for the given duration or until the context is done.
	// Tests inject a no-op to avoid real delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.BaseDelay == 0 {
		c.BaseDelay = defaultBaseDelay
	}
	if c.Sleep == nil {
		c.Sleep = sleepCtx
	}
	return c
}

// Retry runs fn, retrying with exponential backoff (base * 2^attempt) after
// each failure. Every failure triggers a full re-invocation of fn: JSON
// parsing and schema validation errors inside fn are retried exactly like
// transport errors. The last error is returned unchanged once attempts are
// exhausted.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	var zero T
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == cfg.MaxRetries {
			break
		}

		delay := cfg.BaseDelay << attempt
		slog.Warn("completion call failed, retrying",
			"attempt", attempt+1,
			"max_retries", cfg.MaxRetries,
			"delay", delay,
			"error", err,
		)
		if err := cfg.Sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NoSleep is a RetryConfig.Sleep that returns immediately; for tests.
func NoSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
