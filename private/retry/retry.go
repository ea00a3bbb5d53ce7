// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package retry implements the bounded, fixed-delay retry policy used for
// every backend call group ("DB" and the blob backend).
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spacemonkeygo/monkit/v3"
	"go.uber.org/zap"
)

var mon = monkit.Package()

// Policy describes how many times an operation is retried and how long to
// wait between two attempts.
type Policy struct {
	// Retries is the number of additional attempts after the first one.
	Retries int
	// Delay is the fixed wait between attempts.
	Delay time.Duration
}

// Normalize clamps negative values to zero.
func (policy Policy) Normalize() Policy {
	if policy.Retries < 0 {
		policy.Retries = 0
	}
	if policy.Delay < 0 {
		policy.Delay = 0
	}
	return policy
}

// Attempts returns the total number of attempts the policy allows.
func (policy Policy) Attempts() int {
	return policy.Normalize().Retries + 1
}

// Permanent marks err as not worth retrying. Do returns the wrapped error
// immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Do calls fn until it succeeds, returns a permanent error, the context is
// canceled or the policy is exhausted. The last error is returned.
//
// Every failed attempt is logged with what as the message prefix.
func (policy Policy) Do(ctx context.Context, log *zap.Logger, what string, fn func(ctx context.Context) error) error {
	policy = policy.Normalize()

	attempt := 0
	operation := func() error {
		attempt++
		return fn(ctx)
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(policy.Delay)
	b = backoff.WithMaxRetries(b, uint64(policy.Retries))
	b = backoff.WithContext(b, ctx)

	notify := func(err error, wait time.Duration) {
		mon.Counter("retries").Inc(1)
		log.Warn(what+" failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("attempts", policy.Retries+1),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	err := backoff.RetryNotify(operation, b, notify)
	if err != nil && ctx.Err() == nil {
		log.Error(what+" failed", zap.Int("attempts", attempt), zap.Error(err))
	}
	return err
}
