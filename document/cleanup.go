// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package document

import (
	"context"
	"time"

	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

// DoCleanup compensates every transaction that has not made progress for
// longer than backoff, oldest first. Each transaction is compensated
// independently; the errors of all failed ones are returned together.
func (engine *Engine) DoCleanup(ctx context.Context, backoff time.Duration) (compensated int, err error) {
	defer mon.Task()(&ctx)(&err)

	if backoff < 0 {
		backoff = -backoff
	}

	ids, err := engine.txs.Abandoned(ctx, engine.timestamp().Add(-backoff))
	if err != nil {
		return 0, classify(Error.Wrap(err))
	}

	var group errs.Group
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			group.Add(err)
			break
		}
		if err := engine.Rollback(ctx, id); err != nil {
			engine.log.Error("failed to compensate abandoned transaction", zap.Int64("transaction", int64(id)), zap.Error(err))
			group.Add(err)
			continue
		}
		compensated++
	}

	mon.IntVal("compensated").Observe(int64(compensated))
	return compensated, group.Err()
}
