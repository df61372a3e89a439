// Package retry runs a call with bounded exponential backoff.
//
// Which failures are retried is decided by Config.RetryableFunc. The probe
// executor scopes it to rate-limit classifications only, so a retry never
// masks a discovery.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Config configures retry behavior.
type Config struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	MaxAttempts int

	// InitialBackoff is the delay before the second attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration

	// BackoffFactor is the multiplier applied to backoff after each attempt.
	BackoffFactor float64

	// Jitter is the random jitter factor (0.0-1.0).
	Jitter float64

	// RetryableFunc decides whether an error is retried. When nil, errors
	// exposing Retryable() bool are asked; anything else is final.
	RetryableFunc func(error) bool

	// OnRetry is called before each backoff sleep with the 1-based number
	// of the attempt that failed.
	OnRetry func(attempt int, delay time.Duration, err error)

	// Sleep waits between attempts. Nil uses a timer; tests swap it out.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Default is the standard configuration: three attempts, doubling from one
// second, capped at thirty.
var Default = Config{
	MaxAttempts:    3,
	InitialBackoff: 1 * time.Second,
	MaxBackoff:     30 * time.Second,
	BackoffFactor:  2.0,
}

// None disables retries.
var None = Config{
	MaxAttempts: 1,
}

// ExhaustedError is returned when every attempt failed with a retryable error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap returns the last attempt's error.
func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Result contains the outcome of a retried call.
type Result[T any] struct {
	// Value is the result of the last attempt. It is kept on failure too, so
	// callers can inspect the final response.
	Value T

	// Err is the final error, nil on success.
	Err error

	// Attempts is the number of attempts made.
	Attempts int

	// Duration is the total time spent, including backoff.
	Duration time.Duration
}

// Do calls fn until it succeeds, returns a non-retryable error, the attempt
// budget runs out, or ctx is done.
func Do[T any](ctx context.Context, cfg Config, fn func(context.Context) (T, error)) Result[T] {
	start := time.Now()
	backoff := cfg.InitialBackoff
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	isRetryable := cfg.RetryableFunc
	if isRetryable == nil {
		isRetryable = defaultRetryable
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = timerSleep
	}

	var last T
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result[T]{Value: last, Err: err, Attempts: attempt - 1, Duration: time.Since(start)}
		}

		value, err := fn(ctx)
		last = value
		if err == nil {
			return Result[T]{Value: value, Attempts: attempt, Duration: time.Since(start)}
		}

		if !isRetryable(err) {
			return Result[T]{Value: value, Err: err, Attempts: attempt, Duration: time.Since(start)}
		}

		if attempt == maxAttempts {
			return Result[T]{
				Value:    value,
				Err:      &ExhaustedError{Attempts: attempt, Err: err},
				Attempts: attempt,
				Duration: time.Since(start),
			}
		}

		delay := calculateBackoff(backoff, cfg.Jitter)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, delay, err)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return Result[T]{Value: value, Err: serr, Attempts: attempt, Duration: time.Since(start)}
		}

		backoff = nextBackoff(backoff, cfg.BackoffFactor, cfg.MaxBackoff)
	}

	// unreachable: the loop always returns on the last attempt
	return Result[T]{Value: last, Attempts: maxAttempts, Duration: time.Since(start)}
}

func defaultRetryable(err error) bool {
	var r interface{ Retryable() bool }
	return errors.As(err, &r) && r.Retryable()
}

func timerSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func nextBackoff(cur time.Duration, factor float64, ceiling time.Duration) time.Duration {
	if factor <= 1 {
		factor = 2
	}
	next := time.Duration(float64(cur) * factor)
	if ceiling > 0 && next > ceiling {
		next = ceiling
	}
	return next
}

// calculateBackoff returns the backoff duration with jitter applied.
func calculateBackoff(base time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return base
	}
	jitterAmount := float64(base) * jitter * (rand.Float64()*2 - 1)
	return time.Duration(float64(base) + jitterAmount)
}

// Option configures retry behavior.
type Option func(*Config)

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(n int) Option {
	return func(cfg *Config) {
		cfg.MaxAttempts = n
	}
}

// WithInitialBackoff sets the initial backoff duration.
func WithInitialBackoff(d time.Duration) Option {
	return func(cfg *Config) {
		cfg.InitialBackoff = d
	}
}

// WithMaxBackoff sets the maximum backoff duration.
func WithMaxBackoff(d time.Duration) Option {
	return func(cfg *Config) {
		cfg.MaxBackoff = d
	}
}

// WithBackoffFactor sets the backoff multiplier.
func WithBackoffFactor(f float64) Option {
	return func(cfg *Config) {
		cfg.BackoffFactor = f
	}
}

// WithJitter sets the jitter factor.
func WithJitter(j float64) Option {
	return func(cfg *Config) {
		cfg.Jitter = j
	}
}

// WithRetryableFunc sets a custom retryability check.
func WithRetryableFunc(fn func(error) bool) Option {
	return func(cfg *Config) {
		cfg.RetryableFunc = fn
	}
}

// WithOnRetry sets the hook called before each backoff sleep.
func WithOnRetry(fn func(attempt int, delay time.Duration, err error)) Option {
	return func(cfg *Config) {
		cfg.OnRetry = fn
	}
}

// NewConfig starts from Default and applies opts.
func NewConfig(opts ...Option) Config {
	cfg := Default
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
