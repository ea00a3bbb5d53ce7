// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package repodb opens the relational store holding the document index,
// the blob store catalog, the transaction log, settings and the event log.
package repodb

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx driver.
	_ "github.com/mattn/go-sqlite3"    // registers the sqlite3 driver.
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/blobrepo/private/dbutil"
	"storj.io/blobrepo/private/sqlexec"
)

var (
	mon = monkit.Package()

	// Error is the default repodb errs class.
	Error = errs.Class("repodb")
)

// Config is the configuration of the relational store.
type Config struct {
	DatabaseURL  string `help:"the database connection string to use (postgres:// or sqlite3://)" releaseDefault:"" devDefault:"sqlite3://$CONFDIR/blobrepo.db" testDefault:"sqlite3://blobrepo.db"`
	MaxOpenConns int    `help:"maximum number of open connections to the database" default:"25"`
	MaxIdleConns int    `help:"maximum number of idle connections to the database" default:"5"`
}

// DB is an open relational store.
type DB struct {
	log  *zap.Logger
	db   *sql.DB
	impl dbutil.Implementation

	exec *sqlexec.DB
}

// Open opens the database described by config. An empty DatabaseURL yields a
// DB without a connection; every statement run through its executor fails
// with sqlexec.ErrBackendUnavailable.
func Open(ctx context.Context, log *zap.Logger, config Config, execConfig sqlexec.Config) (_ *DB, err error) {
	defer mon.Task()(&ctx)(&err)

	if config.DatabaseURL == "" {
		log.Warn("no connection string configured")
		return &DB{
			log:  log,
			exec: sqlexec.New(log.Named("sqlexec"), nil, dbutil.Unknown, execConfig),
		}, nil
	}

	driver, source, impl, err := dbutil.SplitConnStr(config.DatabaseURL)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if impl == dbutil.SQLite3 {
		source = withDefaultParams(source, "_busy_timeout=10000", "_journal=WAL", "_foreign_keys=off")
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, Error.New("failed opening database via %s: %w", driver, err)
	}
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, errs.Combine(Error.New("unable to reach database: %w", err), db.Close())
	}

	log.Debug("connected", zap.Stringer("implementation", impl))

	return &DB{
		log:  log,
		db:   db,
		impl: impl,
		exec: sqlexec.New(log.Named("sqlexec"), db, impl, execConfig),
	}, nil
}

// Raw returns the underlying database handle. It is nil when no connection
// string was configured.
func (db *DB) Raw() *sql.DB { return db.db }

// Implementation returns the database implementation.
func (db *DB) Implementation() dbutil.Implementation { return db.impl }

// Executor returns the retrying statement executor.
func (db *DB) Executor() *sqlexec.DB { return db.exec }

// Close closes the database.
func (db *DB) Close() error {
	if db.db == nil {
		return nil
	}
	return Error.Wrap(db.db.Close())
}

// withDefaultParams appends the query parameters that are not already set
// on source.
func withDefaultParams(source string, params ...string) string {
	_, query, _ := strings.Cut(source, "?")
	present := map[string]bool{}
	for _, part := range strings.Split(query, "&") {
		key, _, _ := strings.Cut(part, "=")
		present[key] = true
	}

	for _, param := range params {
		key, _, _ := strings.Cut(param, "=")
		if present[key] {
			continue
		}
		if strings.Contains(source, "?") {
			source += "&" + param
		} else {
			source += "?" + param
		}
	}
	return source
}
