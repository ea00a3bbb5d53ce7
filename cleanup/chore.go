// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package cleanup periodically compensates transactions whose owner stopped
// making progress.
package cleanup

import (
	"context"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/common/sync2"
)

var (
	// Error is the default cleanup errs class.
	Error = errs.Class("cleanup")
	mon   = monkit.Package()
)

// Config contains configurable values for the cleanup chore.
type Config struct {
	Enabled          bool          `help:"whether abandoned transactions are compensated" default:"true"`
	Interval         time.Duration `help:"how frequently abandoned transactions are looked for" releaseDefault:"10m" devDefault:"1m" testDefault:"1s"`
	AbandonedTimeout time.Duration `help:"how long a transaction may go without progress before it is compensated" default:"30m"`
}

// Compensator rolls back abandoned transactions.
type Compensator interface {
	DoCleanup(ctx context.Context, backoff time.Duration) (compensated int, err error)
}

// Chore periodically compensates abandoned transactions.
//
// architecture: Chore
type Chore struct {
	log  *zap.Logger
	Loop *sync2.Cycle

	compensator Compensator
	timeout     time.Duration
}

// NewChore creates a new cleanup chore.
func NewChore(log *zap.Logger, compensator Compensator, config Config) *Chore {
	timeout := config.AbandonedTimeout
	if timeout < 0 {
		timeout = -timeout
	}
	return &Chore{
		log:         log,
		Loop:        sync2.NewCycle(config.Interval),
		compensator: compensator,
		timeout:     timeout,
	}
}

// Run starts the chore.
func (chore *Chore) Run(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	return chore.Loop.Run(ctx, func(ctx context.Context) error {
		if _, err := chore.RunOnce(ctx); err != nil {
			chore.log.Error("cleanup failed", zap.Error(err))
		}
		return nil
	})
}

// RunOnce compensates the transactions abandoned for longer than the
// configured timeout.
func (chore *Chore) RunOnce(ctx context.Context) (compensated int, err error) {
	defer mon.Task()(&ctx)(&err)

	compensated, err = chore.compensator.DoCleanup(ctx, chore.timeout)
	if compensated > 0 || err != nil {
		chore.log.Info("cleanup pass finished",
			zap.Int("compensated", compensated),
			zap.Duration("abandoned timeout", chore.timeout),
			zap.Bool("success", err == nil))
	}
	return compensated, Error.Wrap(err)
}

// Close stops the chore.
func (chore *Chore) Close() error {
	chore.Loop.Close()
	return nil
}
