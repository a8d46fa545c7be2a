package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Operation is a unit of work that can be retried.
type Operation func(ctx context.Context) error

// Config holds retry configuration.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// Option is a functional option for retry configuration.
type Option func(*Config)

func defaultConfig() *Config {
	return &Config{
		MaxRetries:   5,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// next returns the delay following d, capped at MaxDelay.
func (c *Config) next(d time.Duration) time.Duration {
	d = time.Duration(float64(d) * c.Multiplier)
	if d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}

// WithExponentialBackoff runs operation until it succeeds, up to MaxRetries
// additional attempts, doubling the pause between attempts by default.
// Errors marked with Fatal end the loop at once.
func WithExponentialBackoff(ctx context.Context, operation Operation, opts ...Option) error {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	delay := cfg.InitialDelay
	attempts := 0
	for {
		err := operation(ctx)
		attempts++
		switch {
		case err == nil:
			return nil
		case IsFatal(err):
			return fmt.Errorf("not retrying: %w", err)
		case attempts > cfg.MaxRetries:
			return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
		}

		if err := sleep(ctx, delay); err != nil {
			return fmt.Errorf("cancelled after %d attempts: %w", attempts, err)
		}
		delay = cfg.next(delay)
	}
}

// Poll runs the operation immediately and then every interval until it
// succeeds, returns a fatal error, or ctx is done. On context expiry the last
// operation error is reported alongside the context error.
func Poll(ctx context.Context, interval time.Duration, operation Operation) error {
	if interval <= 0 {
		return errors.New("poll interval must be positive")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		err := operation(ctx)
		if err == nil || IsFatal(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		case <-ticker.C:
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WithMaxRetries sets how many attempts follow the first one.
func WithMaxRetries(n int) Option {
	return func(c *Config) { c.MaxRetries = n }
}

// WithInitialDelay sets the pause after the first failure.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) { c.InitialDelay = d }
}

// WithMaxDelay caps the pause between attempts.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) { c.MaxDelay = d }
}

// FatalError marks an error that retrying cannot fix, such as a node process
// that already exited.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }

func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err so retry loops stop on it. Fatal(nil) is nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err or anything it wraps came from Fatal.
func IsFatal(err error) bool {
	var fatalErr *FatalError
	return errors.As(err, &fatalErr)
}
