// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/blobrepo/private/retry"
	"storj.io/common/testcontext"
)

func TestPolicy_Do(t *testing.T) {
	ctx := testcontext.New(t)
	log := zaptest.NewLogger(t)

	errFlaky := errors.New("flaky")

	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		err := retry.Policy{Retries: 3}.Do(ctx, log, "flaky op", func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return errFlaky
			}
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 3, calls)
	})

	t.Run("exhausted", func(t *testing.T) {
		calls := 0
		err := retry.Policy{Retries: 2, Delay: time.Millisecond}.Do(ctx, log, "flaky op", func(ctx context.Context) error {
			calls++
			return errFlaky
		})
		require.ErrorIs(t, err, errFlaky)
		require.Equal(t, 3, calls)
	})

	t.Run("no retries", func(t *testing.T) {
		calls := 0
		err := retry.Policy{Retries: -5, Delay: -time.Second}.Do(ctx, log, "flaky op", func(ctx context.Context) error {
			calls++
			return errFlaky
		})
		require.ErrorIs(t, err, errFlaky)
		require.Equal(t, 1, calls)
	})

	t.Run("permanent", func(t *testing.T) {
		calls := 0
		err := retry.Policy{Retries: 5}.Do(ctx, log, "permanent op", func(ctx context.Context) error {
			calls++
			return retry.Permanent(errFlaky)
		})
		require.ErrorIs(t, err, errFlaky)
		require.Equal(t, 1, calls)
	})

	t.Run("canceled", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		calls := 0
		err := retry.Policy{Retries: 5, Delay: time.Hour}.Do(canceled, log, "canceled op", func(ctx context.Context) error {
			calls++
			return errFlaky
		})
		require.Error(t, err)
		require.LessOrEqual(t, calls, 1)
	})
}

func TestPolicy_Attempts(t *testing.T) {
	require.Equal(t, 1, retry.Policy{}.Attempts())
	require.Equal(t, 4, retry.Policy{Retries: 3}.Attempts())
	require.Equal(t, 1, retry.Policy{Retries: -1}.Attempts())
}
