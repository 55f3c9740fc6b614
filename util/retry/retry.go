// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

// Package retry wraps fallible calls at the process boundary. Nothing in the
// verification core retries; only the API client opts into this.
package retry

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "retry")

// Config bounds how often a call is attempted again after failing.
type Config struct {
	MaxRetries int
	Delay      time.Duration
	// Retryable decides whether an error is worth another attempt. Nil means
	// every error is retried.
	Retryable func(error) bool
}

// Times calls fn until it succeeds, the retry budget is spent, or the context
// is cancelled. The last error is returned when the budget runs out.
func Times[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return zeroVal[T](), ctx.Err()
		}
		got, err := fn()
		if err == nil {
			return got, nil
		}
		lastErr = err
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return zeroVal[T](), err
		}
		if attempt == cfg.MaxRetries {
			break
		}
		log.WithError(err).WithField("attempt", attempt+1).Warn("Call failed, retrying")
		select {
		case <-ctx.Done():
			return zeroVal[T](), ctx.Err()
		case <-time.After(cfg.Delay):
		}
	}
	return zeroVal[T](), lastErr
}

func zeroVal[T any]() T {
	var result T
	return result
}
