package providers

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig bounds the backoff used around a backend call
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// RetryConfigFrom derives the retry policy from a provider config
func RetryConfigFrom(cfg ProviderConfig) RetryConfig {
	return RetryConfig{
		MaxRetries:      cfg.MaxRetries,
		InitialInterval: cfg.RetryDelay,
		MaxInterval:     10 * cfg.RetryDelay,
	}
}

// Retry runs fn until it succeeds, returns a non-retryable error, the
// retry budget is spent or ctx is done. Only retryable ProviderErrors are
// retried.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T

	b := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		b.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		b.MaxInterval = cfg.MaxInterval
	}
	b.MaxElapsedTime = 0

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	operation := func() error {
		var err error
		result, err = fn(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxRetries)), ctx))
	return result, err
}
