// Package retry runs backend operations with classified, exponentially
// backed-off retries.
package retry

import (
	"context"
	"log"
	"strconv"
	"time"

	"portal-rest-api/internal/failure"
	"portal-rest-api/internal/metrics"
)

// Defaults for the backend read path.
const (
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 10 * time.Second
)

// Config configures an Executor.
type Config struct {
	// MaxAttempts is the maximum number of attempts including the first.
	// Default: 4
	MaxAttempts int

	// BaseDelay is the delay after the first failure. Each further failure
	// doubles it.
	// Default: 1s
	BaseDelay time.Duration

	// MaxDelay caps a single delay.
	// Default: 10s
	MaxDelay time.Duration

	// Name is used as the log prefix.
	Name string

	// Classify overrides failure.Classify. Used by tests.
	Classify func(error) *failure.ClassifiedError

	// Sleep overrides the context-aware timer wait. Used by tests.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnRetry is called before each delay.
	OnRetry func(attempt int, err *failure.ClassifiedError, delay time.Duration)
}

// Executor retries operations whose failures classify as retryable.
type Executor struct {
	config Config
}

// New creates an executor, applying defaults for zero fields.
func New(config Config) *Executor {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = DefaultBaseDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = DefaultMaxDelay
	}
	if config.Name == "" {
		config.Name = "Retry"
	}
	if config.Classify == nil {
		config.Classify = failure.Classify
	}
	if config.Sleep == nil {
		config.Sleep = sleep
	}
	return &Executor{config: config}
}

// Config returns the executor configuration.
func (e *Executor) Config() Config {
	return e.config
}

// Delay returns the wait after the failure with the given zero-based index:
// min(BaseDelay * 2^index, MaxDelay).
func (e *Executor) Delay(index int) time.Duration {
	delay := e.config.BaseDelay
	for i := 0; i < index; i++ {
		delay *= 2
		if delay >= e.config.MaxDelay {
			return e.config.MaxDelay
		}
	}
	if delay > e.config.MaxDelay {
		return e.config.MaxDelay
	}
	return delay
}

// Execute runs op until it succeeds, fails with a non-retryable error, the
// attempt bound is reached or ctx is done. The returned error is the last
// failure, classified, even when ctx ends during a delay.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	_, err := Run(ctx, e, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Run is Execute for operations that produce a value.
func Run[T any](ctx context.Context, e *Executor, op func(context.Context) (T, error)) (T, error) {
	var zero T
	cfg := e.config

	for index := 0; ; index++ {
		value, err := op(ctx)
		if err == nil {
			return value, nil
		}

		classified := cfg.Classify(err)
		last := index+1 >= cfg.MaxAttempts
		retry := classified.Retryable && !last && ctx.Err() == nil
		metrics.RetryAttempts.WithLabelValues(string(classified.Category), strconv.FormatBool(retry)).Inc()

		if !retry {
			if classified.Retryable && last {
				log.Printf("[%s] Giving up after %d attempts: %v", cfg.Name, index+1, err)
			}
			return zero, classified
		}

		delay := e.Delay(index)
		if cfg.OnRetry != nil {
			cfg.OnRetry(index+1, classified, delay)
		}
		log.Printf("[%s] Attempt %d failed (%s), retrying in %v", cfg.Name, index+1, classified.Category, delay)

		if err := cfg.Sleep(ctx, delay); err != nil {
			return zero, classified
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
