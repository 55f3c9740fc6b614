// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

package retry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func TestTimes(t *testing.T) {
	ctx := context.Background()
	t.Run("succeeds first try", func(t *testing.T) {
		got, err := Times(ctx, Config{}, func() (string, error) {
			return "hello", nil
		})
		require.NoError(t, err)
		require.Equal(t, "hello", got)
	})
	t.Run("no retries by default", func(t *testing.T) {
		calls := 0
		_, err := Times(ctx, Config{}, func() (string, error) {
			calls++
			return "", errFlaky
		})
		require.ErrorIs(t, err, errFlaky)
		require.Equal(t, 1, calls)
	})
	t.Run("succeeds after retries", func(t *testing.T) {
		calls := 0
		got, err := Times(ctx, Config{MaxRetries: 3}, func() (int, error) {
			calls++
			if calls < 3 {
				return 0, errFlaky
			}
			return calls, nil
		})
		require.NoError(t, err)
		require.Equal(t, 3, got)
	})
	t.Run("budget exhausted", func(t *testing.T) {
		calls := 0
		_, err := Times(ctx, Config{MaxRetries: 2}, func() (int, error) {
			calls++
			return 0, errFlaky
		})
		require.ErrorIs(t, err, errFlaky)
		require.Equal(t, 3, calls)
	})
	t.Run("non retryable stops early", func(t *testing.T) {
		calls := 0
		_, err := Times(ctx, Config{MaxRetries: 5, Retryable: func(error) bool { return false }}, func() (int, error) {
			calls++
			return 0, errFlaky
		})
		require.ErrorIs(t, err, errFlaky)
		require.Equal(t, 1, calls)
	})
	t.Run("cancelled context", func(t *testing.T) {
		newCtx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := Times(newCtx, Config{MaxRetries: 1}, func() (int, error) {
			return 1, nil
		})
		require.ErrorContains(t, err, "context canceled")
	})
}
