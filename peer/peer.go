// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package peer wires the repository components together.
package peer

import (
	"context"
	"strings"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storj.io/blobrepo/archive"
	"storj.io/blobrepo/blobstore"
	"storj.io/blobrepo/blobstore/azureblob"
	"storj.io/blobrepo/blobstore/fsblob"
	"storj.io/blobrepo/blobstore/s3blob"
	"storj.io/blobrepo/cleanup"
	"storj.io/blobrepo/document"
	"storj.io/blobrepo/eventlog"
	"storj.io/blobrepo/private/sqlexec"
	"storj.io/blobrepo/repodb"
	"storj.io/blobrepo/session"
	"storj.io/blobrepo/settings"
	"storj.io/blobrepo/stores"
	"storj.io/blobrepo/txlog"
	"storj.io/common/errs2"
)

var (
	// Error is the default peer errs class.
	Error = errs.Class("peer")
	mon   = monkit.Package()
)

// Config is all the configuration parameters of a repository process.
type Config struct {
	Database repodb.Config
	DB       sqlexec.Config

	Blobs blobstore.Config
	Azure azureblob.Config
	S3    s3blob.Config
	FS    fsblob.Config

	EventLog eventlog.Config
	Archive  archive.Config
	Cleanup  cleanup.Config
}

// ApplySettings overrides config with the well known settings.
func (config *Config) ApplySettings(values *settings.Service) {
	values.ApplyCount(settings.DBRetries, &config.DB.Retries)
	values.ApplyDuration(settings.DBRetryDelay, time.Second, &config.DB.RetryDelay)
	values.ApplyCount(settings.AzureRetries, &config.Blobs.Retries)
	values.ApplyDuration(settings.AzureRetryDelay, time.Second, &config.Blobs.RetryDelay)
	values.ApplyString(settings.AzureDefaultContainerName, &config.Blobs.Container)
	values.ApplyBackoff(settings.AbandonedTransactionTimeout, time.Minute, &config.Cleanup.AbandonedTimeout)
	values.ApplyString(settings.LoggingLevel, &config.EventLog.Level)
}

// Peer is a running repository process.
type Peer struct {
	Log     *zap.Logger
	Session session.Session
	DB      *repodb.DB
	Config  Config

	Executor     *sqlexec.DB
	Settings     *settings.Service
	EventLog     *eventlog.DB
	Stores       *stores.DB
	Backend      blobstore.Backend
	Blobs        *blobstore.Adapter
	Transactions *txlog.Log
	Documents    *document.Engine

	Archive *archive.Chore
	Cleanup *cleanup.Chore
}

// New creates the components of a repository process on db. Settings stored
// in the database override config.
func New(ctx context.Context, log *zap.Logger, db *repodb.DB, config Config) (_ *Peer, err error) {
	defer mon.Task()(&ctx)(&err)

	peer := &Peer{
		Log: log,
		DB:  db,
	}

	peer.Session, err = session.New()
	if err != nil {
		return nil, Error.Wrap(err)
	}

	{ // settings
		peer.Settings = settings.NewService(log.Named("settings"), db.Executor())
		if err := peer.Settings.Load(ctx, ""); err != nil {
			// the defaults still allow serving once the database returns.
			log.Warn("unable to load settings, using process configuration", zap.Error(err))
		}
		config.ApplySettings(peer.Settings)
		peer.Config = config
	}

	{ // event log
		peer.EventLog = eventlog.NewDB(db.Raw(), db.Implementation())
		peer.Log, err = config.EventLog.Attach(log, peer.EventLog, peer.Session.String())
		if err != nil {
			return nil, Error.Wrap(err)
		}
		log = peer.Log
		log.Info("session started", zap.Stringer("session", peer.Session))
	}

	peer.Executor = sqlexec.New(log.Named("sqlexec"), db.Raw(), db.Implementation(), config.DB)
	peer.Stores = stores.NewDB(log.Named("stores"), peer.Executor)
	peer.Transactions = txlog.New(log.Named("txlog"), peer.Executor)

	{ // blobs
		switch strings.ToLower(strings.TrimSpace(config.Blobs.Backend)) {
		case "azure":
			peer.Backend = azureblob.New(log.Named("azure"), config.Azure)
		case "s3":
			peer.Backend = s3blob.New(log.Named("s3"), config.S3)
		case "fs":
			peer.Backend, err = fsblob.NewAt(config.FS.Root)
			if err != nil {
				return nil, Error.Wrap(err)
			}
		default:
			return nil, Error.New("unknown blob backend %q", config.Blobs.Backend)
		}
		peer.Blobs = blobstore.NewAdapter(log.Named("blobs"), peer.Backend, peer.Stores, config.Blobs)
	}

	peer.Documents = document.NewEngine(log.Named("document"),
		peer.Executor, peer.Transactions, peer.Stores, peer.Blobs, peer.Session)

	peer.Archive = archive.NewChore(log.Named("archive"), peer.Documents, config.Archive)
	peer.Cleanup = cleanup.NewChore(log.Named("cleanup"), peer.Documents, config.Cleanup)

	return peer, nil
}

// Run runs the enabled chores until ctx is canceled or one of them fails.
func (peer *Peer) Run(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var group errgroup.Group
	if peer.Config.Archive.Enabled {
		group.Go(func() error {
			return errs2.IgnoreCanceled(peer.Archive.Run(ctx))
		})
	}
	if peer.Config.Cleanup.Enabled {
		group.Go(func() error {
			return errs2.IgnoreCanceled(peer.Cleanup.Run(ctx))
		})
	}
	return group.Wait()
}

// Close stops the chores. The database is owned by the caller.
func (peer *Peer) Close() error {
	var errlist errs.Group
	if peer.Cleanup != nil {
		errlist.Add(peer.Cleanup.Close())
	}
	if peer.Archive != nil {
		errlist.Add(peer.Archive.Close())
	}
	return errlist.Err()
}
