// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package txlog_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/blobrepo/private/repodbtest"
	"storj.io/blobrepo/repodb"
	"storj.io/blobrepo/session"
	"storj.io/blobrepo/txlog"
	"storj.io/common/testcontext"
	"storj.io/common/testrand"
)

func TestParse(t *testing.T) {
	for _, step := range []txlog.Step{
		txlog.InsertDocRecord, txlog.InsertDocProperties, txlog.StoreBLOB, txlog.DeleteBLOB,
		txlog.DeleteDocProperties, txlog.DeleteDocRecord, txlog.CopyBLOB, txlog.UpdateDocRecord,
	} {
		require.Equal(t, step, txlog.ParseStep(step.String()))
	}
	require.Equal(t, txlog.StepUnknown, txlog.ParseStep("ReticulateSplines"))

	for _, typ := range []txlog.Type{txlog.AddDocument, txlog.UpdateDocument, txlog.DeleteDocument, txlog.ArchiveDocument} {
		require.Equal(t, typ, txlog.ParseType(typ.String()))
	}
	require.Equal(t, txlog.TypeUnknown, txlog.ParseType(""))
}

func TestLog(t *testing.T) {
	repodbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *repodb.DB) {
		txs := txlog.New(zaptest.NewLogger(t), db.Executor())
		sess, err := session.New()
		require.NoError(t, err)

		first, err := txs.Start(ctx, sess, txlog.AddDocument, txlog.StoreBLOB)
		require.NoError(t, err)
		second, err := txs.Start(ctx, sess, txlog.DeleteDocument, txlog.DeleteBLOB)
		require.NoError(t, err)
		require.NotEqual(t, first, second)

		record, err := txs.Get(ctx, first)
		require.NoError(t, err)
		require.Equal(t, txlog.AddDocument, record.Type)
		require.Equal(t, txlog.StoreBLOB, record.NextStep)
		require.Equal(t, sess.String(), record.Session)
		require.Zero(t, record.DocID)
		require.Zero(t, record.StoreID)
		require.True(t, record.BlobID.IsZero())
		require.Equal(t, record.FirstStatus, record.LastStatus)

		blobID := testrand.UUID()
		require.NoError(t, txs.Advance(ctx, first, txlog.InsertDocRecord, txlog.Fields{StoreID: 3, BlobID: blobID}))
		require.NoError(t, txs.Advance(ctx, first, txlog.InsertDocProperties, txlog.Fields{DocID: 7}))

		record, err = txs.Get(ctx, first)
		require.NoError(t, err)
		require.Equal(t, txlog.InsertDocProperties, record.NextStep)
		require.EqualValues(t, 7, record.DocID)
		require.EqualValues(t, 3, record.StoreID)
		require.Equal(t, blobID, record.BlobID)
		require.False(t, record.LastStatus.Before(record.FirstStatus))

		count, err := txs.Count(ctx)
		require.NoError(t, err)
		require.Equal(t, 2, count)

		require.NoError(t, txs.Close(ctx, first))
		require.Error(t, txs.Close(ctx, first))
		require.Error(t, txs.Advance(ctx, first, txlog.InsertDocProperties, txlog.Fields{}))
		require.Error(t, txs.Touch(ctx, first))

		_, err = txs.Get(ctx, first)
		require.True(t, txlog.ErrNotFound.Has(err))
	})
}

func TestLog_Abandoned(t *testing.T) {
	repodbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *repodb.DB) {
		txs := txlog.New(zaptest.NewLogger(t), db.Executor())
		sess, err := session.New()
		require.NoError(t, err)

		var ids []txlog.ID
		for i := 0; i < 3; i++ {
			id, err := txs.Start(ctx, sess, txlog.UpdateDocument, txlog.StoreBLOB)
			require.NoError(t, err)
			ids = append(ids, id)
		}

		now := txlog.Now()
		age := func(id txlog.ID, d time.Duration) {
			_, err := db.Executor().Exec(ctx, `UPDATE TransactionState SET last_status = ? WHERE transaction_id = ?`, now.Add(-d), int64(id))
			require.NoError(t, err)
		}
		age(ids[0], time.Hour)
		age(ids[1], 2*time.Hour)

		abandoned, err := txs.Abandoned(ctx, now.Add(-30*time.Minute))
		require.NoError(t, err)
		require.Equal(t, []txlog.ID{ids[1], ids[0]}, abandoned)

		// touching removes a transaction from the scan.
		require.NoError(t, txs.Touch(ctx, ids[1]))
		abandoned, err = txs.Abandoned(ctx, now.Add(-30*time.Minute))
		require.NoError(t, err)
		require.Equal(t, []txlog.ID{ids[0]}, abandoned)
	})
}
