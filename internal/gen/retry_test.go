package gen

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"storybook/internal/domain"
)

func noSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestRetryBackoffIsMonotonicDoubling(t *testing.T) {
	var delays []time.Duration
	cfg := RetryConfig{
		MaxRetries:   3,
		InitialDelay: 2 * time.Second,
		Logger:       zerolog.Nop(),
		Sleep:        noSleep(&delays),
	}

	attempts := 0
	_, err := Retry(context.Background(), cfg, "image", func(context.Context) ([]byte, error) {
		attempts++
		return nil, domain.NewTransientError("image", errors.New("RESOURCE_EXHAUSTED"))
	})
	if err == nil {
		t.Fatalf("expected final failure")
	}
	if attempts != 4 {
		t.Fatalf("attempts = %d, want MaxRetries+1 = 4", attempts)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v, want %v", delays, want)
	}
	for i := range want {
		if delays[i] != want[i] {
			t.Fatalf("delay %d = %v, want %v", i, delays[i], want[i])
		}
	}
}

func TestRetryDoesNotRetryFatalErrors(t *testing.T) {
	var delays []time.Duration
	cfg := RetryConfig{Logger: zerolog.Nop(), Sleep: noSleep(&delays)}

	attempts := 0
	_, err := Retry(context.Background(), cfg, "story", func(context.Context) (string, error) {
		attempts++
		return "", errors.New("malformed response")
	})
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
	if len(delays) != 0 {
		t.Fatalf("no sleep expected, got %v", delays)
	}
	var genErr *domain.GenerationError
	if !errors.As(err, &genErr) || genErr.Kind != domain.KindFatal {
		t.Fatalf("err = %v, want fatal GenerationError", err)
	}
}

func TestRetryClassifiesForeignErrorsByMessage(t *testing.T) {
	var delays []time.Duration
	cfg := RetryConfig{MaxRetries: 1, InitialDelay: time.Second, Logger: zerolog.Nop(), Sleep: noSleep(&delays)}

	for _, msg := range []string{"http status 429", "daily quota exceeded", "error: RESOURCE_EXHAUSTED"} {
		delays = delays[:0]
		attempts := 0
		_, _ = Retry(context.Background(), cfg, "speech", func(context.Context) (int, error) {
			attempts++
			return 0, errors.New(msg)
		})
		if attempts != 2 {
			t.Fatalf("%q: attempts = %d, want 2", msg, attempts)
		}
	}

	// Case-sensitive contract: lower-case variant is not transient.
	attempts := 0
	_, _ = Retry(context.Background(), cfg, "speech", func(context.Context) (int, error) {
		attempts++
		return 0, errors.New("resource_exhausted")
	})
	if attempts != 1 {
		t.Fatalf("lower-case marker should not retry, attempts = %d", attempts)
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	var delays []time.Duration
	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Second, Logger: zerolog.Nop(), Sleep: noSleep(&delays)}

	attempts := 0
	out, err := Retry(context.Background(), cfg, "image", func(context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", domain.NewTransientError("image", errors.New("429"))
		}
		return "payload", nil
	})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if out != "payload" || attempts != 3 {
		t.Fatalf("out=%q attempts=%d", out, attempts)
	}
}

func TestRetryExhaustedKeepsTransientTag(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 1, InitialDelay: time.Second, Logger: zerolog.Nop(),
		Sleep: func(context.Context, time.Duration) error { return nil }}

	_, err := Retry(context.Background(), cfg, "image", func(context.Context) (int, error) {
		return 0, domain.NewTransientError("image", errors.New("429"))
	})
	var genErr *domain.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("err = %v, want GenerationError", err)
	}
	if genErr.Kind != domain.KindTransientCapacity {
		t.Fatalf("kind = %s, want transient", genErr.Kind)
	}
}
