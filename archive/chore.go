// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package archive

import (
	"context"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/common/sync2"
)

var (
	// Error is the default archive errs class.
	Error = errs.Class("archive")
	mon   = monkit.Package()
)

// Config contains configurable values for the archive chore.
type Config struct {
	Enabled  bool          `help:"whether documents past their archive instant are moved to cool stores" default:"true"`
	Interval time.Duration `help:"how frequently documents are archived" releaseDefault:"1h" devDefault:"1m" testDefault:"1s"`
}

// Archiver moves due documents to cool stores.
type Archiver interface {
	DoArchive(ctx context.Context) (archived int, err error)
}

// Chore periodically archives documents.
//
// architecture: Chore
type Chore struct {
	log  *zap.Logger
	Loop *sync2.Cycle

	archiver Archiver
}

// NewChore creates a new archive chore.
func NewChore(log *zap.Logger, archiver Archiver, config Config) *Chore {
	return &Chore{
		log:      log,
		Loop:     sync2.NewCycle(config.Interval),
		archiver: archiver,
	}
}

// Run starts the chore.
func (chore *Chore) Run(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	return chore.Loop.Run(ctx, func(ctx context.Context) error {
		if _, err := chore.RunOnce(ctx); err != nil {
			chore.log.Error("archive failed", zap.Error(err))
		}
		return nil
	})
}

// RunOnce archives every due document once.
func (chore *Chore) RunOnce(ctx context.Context) (archived int, err error) {
	defer mon.Task()(&ctx)(&err)

	started := time.Now()
	archived, err = chore.archiver.DoArchive(ctx)
	chore.log.Info("archive pass finished",
		zap.Int("archived", archived),
		zap.Duration("duration", time.Since(started)),
		zap.Bool("success", err == nil))
	return archived, Error.Wrap(err)
}

// Close stops the chore.
func (chore *Chore) Close() error {
	chore.Loop.Close()
	return nil
}
