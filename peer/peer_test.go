// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package peer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/blobrepo/archive"
	"storj.io/blobrepo/blobstore"
	"storj.io/blobrepo/blobstore/fsblob"
	"storj.io/blobrepo/cleanup"
	"storj.io/blobrepo/document"
	"storj.io/blobrepo/eventlog"
	"storj.io/blobrepo/peer"
	"storj.io/blobrepo/private/repodbtest"
	"storj.io/blobrepo/repodb"
	"storj.io/blobrepo/settings"
	"storj.io/blobrepo/stores"
	"storj.io/common/testcontext"
)

func testConfig(ctx *testcontext.Context) peer.Config {
	return peer.Config{
		DB:       repodbtest.ExecConfig,
		Blobs:    blobstore.Config{Backend: "fs", Container: "defaultcontainer", AccountCacheExpiration: time.Minute},
		FS:       fsblob.Config{Root: ctx.Dir("blobs")},
		EventLog: eventlog.Config{Level: "Exception, Error, Warning, Info", DBSink: true},
		Archive:  archive.Config{Enabled: true, Interval: time.Hour},
		Cleanup:  cleanup.Config{Enabled: true, Interval: time.Hour, AbandonedTimeout: 30 * time.Minute},
	}
}

func TestPeer(t *testing.T) {
	repodbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *repodb.DB) {
		log := zaptest.NewLogger(t)

		values := settings.NewService(log, db.Executor())
		require.NoError(t, values.UpsertDBValue(ctx, settings.AzureDefaultContainerName, "Documents"))
		require.NoError(t, values.UpsertDBValue(ctx, settings.AbandonedTransactionTimeout, "-15"))
		require.NoError(t, values.UpsertDBValue(ctx, settings.DBRetries, "-2"))
		require.NoError(t, values.UpsertDBValue(ctx, settings.AzureRetryDelay, "not a number"))

		repo, err := peer.New(ctx, log, db, testConfig(ctx))
		require.NoError(t, err)
		defer ctx.Check(repo.Close)

		require.Equal(t, "documents", repo.Blobs.Container())
		require.Equal(t, 15*time.Minute, repo.Config.Cleanup.AbandonedTimeout)
		require.Zero(t, repo.Config.DB.Retries)
		require.Zero(t, repo.Config.Blobs.RetryDelay)

		_, err = repo.Stores.Add(ctx, stores.Store{AccountName: "hot", Tier: stores.Hot, Capacity: 1 << 20})
		require.NoError(t, err)
		cool, err := repo.Stores.Add(ctx, stores.Store{AccountName: "cool", Tier: stores.Cool, Capacity: 1 << 20})
		require.NoError(t, err)

		result, err := repo.Documents.Upsert(ctx, document.UpsertRequest{
			ArchiveAfter: time.Now().Add(time.Hour),
			Blob:         []byte("hello"),
		})
		require.NoError(t, err)

		_, err = repo.Executor.Exec(ctx, `UPDATE Document SET archive_after = ? WHERE doc_id = ?`,
			time.Now().UTC().Add(-time.Minute), result.DocID)
		require.NoError(t, err)

		ctx.Go(func() error { return repo.Run(ctx) })
		repo.Archive.Loop.TriggerWait()
		repo.Cleanup.Loop.TriggerWait()

		doc, err := repo.Documents.Retrieve(ctx, result.UUID, false)
		require.NoError(t, err)
		require.Equal(t, cool, doc.StoreID)
		require.Equal(t, []byte("hello"), doc.Blob)

		events, err := repo.EventLog.Read(ctx, time.Time{}, time.Time{})
		require.NoError(t, err)

		var audited, started bool
		for _, event := range events {
			require.Equal(t, repo.Session.String(), event.SessionID)
			switch {
			case event.Severity == eventlog.Audit && event.Source == "document.audit":
				audited = true
			case event.Message == "session started":
				started = true
			}
		}
		require.True(t, audited)
		require.True(t, started)
	})
}

func TestPeer_UnknownBackend(t *testing.T) {
	repodbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *repodb.DB) {
		config := testConfig(ctx)
		config.Blobs.Backend = "tape"

		_, err := peer.New(ctx, zaptest.NewLogger(t), db, config)
		require.Error(t, err)
		require.True(t, peer.Error.Has(err))
	})
}
