// Package gen contains the generation pipeline: the backoff retrier, the
// sequential request queue that paces every call to the generative backend,
// and the per-story page generation controller.
package gen

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"storybook/internal/domain"
)

const (
	defaultMaxRetries   = 3
	defaultInitialDelay = 2 * time.Second
)

// RetryConfig bounds the exponential backoff applied to transient-capacity
// failures. The delay sequence is D, 2D, 4D, ... with no jitter.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	Logger       zerolog.Logger

	// Sleep is injectable for tests; nil means a context-aware timer wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = defaultInitialDelay
	}
	if c.Sleep == nil {
		c.Sleep = sleepCtx
	}
	return c
}

// Retry executes op, retrying transient-capacity failures with exponential
// backoff. The operation runs at most MaxRetries+1 times. Any other error,
// or the last transient error once retries are exhausted, propagates as a
// domain.GenerationError carrying the original cause.
func Retry[T any](ctx context.Context, cfg RetryConfig, op string, fn func(context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	var zero T
	delay := cfg.InitialDelay
	retries := cfg.MaxRetries
	for {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		if !domain.IsTransientCapacity(err) {
			return zero, wrapGeneration(op, err)
		}
		if retries == 0 {
			return zero, wrapGeneration(op, err)
		}
		cfg.Logger.Warn().
			Str("op", op).
			Dur("delay", delay).
			Int("retries_left", retries).
			Err(err).
			Msg("backend over capacity, retrying")
		if serr := cfg.Sleep(ctx, delay); serr != nil {
			return zero, wrapGeneration(op, serr)
		}
		retries--
		delay *= 2
	}
}

func wrapGeneration(op string, err error) error {
	var genErr *domain.GenerationError
	if errors.As(err, &genErr) {
		return err
	}
	if domain.IsTransientCapacity(err) {
		return domain.NewTransientError(op, err)
	}
	return domain.NewFatalError(op, err)
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
