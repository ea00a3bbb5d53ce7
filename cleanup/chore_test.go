// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package cleanup_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/blobrepo/blobstore"
	"storj.io/blobrepo/blobstore/fsblob"
	"storj.io/blobrepo/cleanup"
	"storj.io/blobrepo/document"
	"storj.io/blobrepo/private/repodbtest"
	"storj.io/blobrepo/repodb"
	"storj.io/blobrepo/session"
	"storj.io/blobrepo/stores"
	"storj.io/blobrepo/txlog"
	"storj.io/common/testcontext"
	"storj.io/common/testrand"
)

func TestChore(t *testing.T) {
	repodbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *repodb.DB) {
		log := zaptest.NewLogger(t)
		exec := db.Executor()

		catalog := stores.NewDB(log, exec)
		hot, err := catalog.Add(ctx, stores.Store{AccountName: "hot", Tier: stores.Hot, Capacity: 1 << 20})
		require.NoError(t, err)

		fs, err := fsblob.NewAt(ctx.Dir("blobs"))
		require.NoError(t, err)
		blobs := blobstore.NewAdapter(log, fs, catalog, blobstore.Config{Container: "docs"})

		sess, err := session.New()
		require.NoError(t, err)
		txs := txlog.New(log, exec)
		engine := document.NewEngine(log, exec, txs, catalog, blobs, sess)

		// an upload whose owner died after storing the blob.
		blobID := testrand.UUID()
		require.NoError(t, blobs.Put(ctx, hot, blobID, testrand.BytesInt(100)))
		abandoned, err := txs.Start(ctx, sess, txlog.AddDocument, txlog.StoreBLOB)
		require.NoError(t, err)
		require.NoError(t, txs.Advance(ctx, abandoned, txlog.InsertDocRecord, txlog.Fields{StoreID: hot, BlobID: blobID}))
		_, err = exec.Exec(ctx, `UPDATE TransactionState SET last_status = ? WHERE transaction_id = ?`,
			time.Now().UTC().Add(-time.Hour), int64(abandoned))
		require.NoError(t, err)

		// an upload that is still making progress.
		active, err := txs.Start(ctx, sess, txlog.AddDocument, txlog.StoreBLOB)
		require.NoError(t, err)

		chore := cleanup.NewChore(log, engine, cleanup.Config{
			Enabled:          true,
			Interval:         time.Hour,
			AbandonedTimeout: 30 * time.Minute,
		})
		ctx.Go(func() error { return chore.Run(ctx) })
		defer ctx.Check(chore.Close)
		chore.Loop.TriggerWait()

		_, err = txs.Get(ctx, abandoned)
		require.True(t, txlog.ErrNotFound.Has(err))
		_, err = txs.Get(ctx, active)
		require.NoError(t, err)

		_, err = blobs.Get(ctx, hot, blobID, 100)
		require.True(t, blobstore.ErrNotFound.Has(err))

		compensated, err := chore.RunOnce(ctx)
		require.NoError(t, err)
		require.Zero(t, compensated)
	})
}
