// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package sqlexec implements a retrying statement executor over database/sql.
//
// Every call acquires its own connection from the pool, retries acquisition
// and execution according to the configured policy and releases the
// connection on every exit path. Callers never share a connection handle.
package sqlexec

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/blobrepo/private/dbutil"
	"storj.io/blobrepo/private/retry"
)

var (
	// Error is the default sqlexec error class.
	Error = errs.Class("sqlexec")
	// ErrBackendUnavailable is returned when no connection is configured or
	// when the retries for a statement are exhausted.
	ErrBackendUnavailable = errs.Class("backend unavailable")

	mon = monkit.Package()
)

// Config contains the retry settings of the "DB" backend group.
type Config struct {
	Retries    int           `help:"number of times a failed database statement is retried" default:"3" testDefault:"1"`
	RetryDelay time.Duration `help:"delay between two attempts of a failed database statement" default:"1s" testDefault:"10ms"`
}

// Policy returns the retry policy described by the config.
func (config Config) Policy() retry.Policy {
	return retry.Policy{Retries: config.Retries, Delay: config.RetryDelay}.Normalize()
}

// Scanner is implemented by *sql.Rows and *sql.Row.
type Scanner interface {
	Scan(dest ...interface{}) error
}

// Executor runs statements against the relational store.
type Executor interface {
	// Exec runs a statement and returns the number of affected rows.
	Exec(ctx context.Context, query string, args ...interface{}) (affected int64, err error)
	// Query runs a query and calls fn once for every returned row.
	Query(ctx context.Context, fn func(row Scanner) error, query string, args ...interface{}) error
	// QueryRow runs a query and scans its first row into dest. It reports
	// whether a row was found.
	QueryRow(ctx context.Context, dest []interface{}, query string, args ...interface{}) (found bool, err error)
	// Int runs a query returning a single integer. NULL and no rows yield 0.
	Int(ctx context.Context, query string, args ...interface{}) (int, error)
	// Int64 runs a query returning a single 64-bit integer. NULL and no rows yield 0.
	Int64(ctx context.Context, query string, args ...interface{}) (int64, error)
	// String runs a query returning a single string. NULL and no rows yield "".
	String(ctx context.Context, query string, args ...interface{}) (string, error)
}

// DB is an Executor backed by a *sql.DB.
type DB struct {
	log    *zap.Logger
	db     *sql.DB
	impl   dbutil.Implementation
	policy retry.Policy
}

var _ Executor = (*DB)(nil)

// New creates an executor over db. A nil db produces an executor whose every
// call fails with ErrBackendUnavailable.
func New(log *zap.Logger, db *sql.DB, impl dbutil.Implementation, config Config) *DB {
	return &DB{
		log:    log,
		db:     db,
		impl:   impl,
		policy: config.Policy(),
	}
}

// Implementation returns the database implementation statements are bound for.
func (ex *DB) Implementation() dbutil.Implementation { return ex.impl }

// withConn acquires a connection, runs fn on it and releases it. Acquisition
// and fn are retried together.
func (ex *DB) withConn(ctx context.Context, what string, fn func(ctx context.Context, conn *sql.Conn) error) error {
	if ex.db == nil {
		ex.log.Error("no connection string configured", zap.String("op", what))
		return ErrBackendUnavailable.New("no connection string configured")
	}

	err := ex.policy.Do(ctx, ex.log, what, func(ctx context.Context) (err error) {
		conn, err := ex.db.Conn(ctx)
		if err != nil {
			return Error.New("failed to connect: %w", err)
		}
		defer func() { err = errs.Combine(err, conn.Close()) }()

		return fn(ctx, conn)
	})
	if err != nil {
		return ErrBackendUnavailable.Wrap(err)
	}
	return nil
}

// Exec implements Executor.
func (ex *DB) Exec(ctx context.Context, query string, args ...interface{}) (affected int64, err error) {
	defer mon.Task()(&ctx)(&err)

	query = dbutil.Rebind(ex.impl, query)
	err = ex.withConn(ctx, "exec", func(ctx context.Context, conn *sql.Conn) error {
		result, err := conn.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return -1, err
	}
	return affected, nil
}

// Query implements Executor. Acquisition and execution are retried; once
// rows are being read, a failure is returned without retrying so fn is
// never called twice for the same row.
func (ex *DB) Query(ctx context.Context, fn func(row Scanner) error, query string, args ...interface{}) (err error) {
	defer mon.Task()(&ctx)(&err)

	query = dbutil.Rebind(ex.impl, query)
	var iterErr error
	err = ex.withConn(ctx, "query", func(ctx context.Context, conn *sql.Conn) (err error) {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer func() { err = errs.Combine(err, rows.Close()) }()

		for rows.Next() {
			if err := fn(rows); err != nil {
				iterErr = err
				return retry.Permanent(err)
			}
		}
		if err := rows.Err(); err != nil {
			iterErr = err
			return retry.Permanent(err)
		}
		return nil
	})
	if iterErr != nil {
		return Error.Wrap(iterErr)
	}
	return err
}

// QueryRow implements Executor.
func (ex *DB) QueryRow(ctx context.Context, dest []interface{}, query string, args ...interface{}) (found bool, err error) {
	defer mon.Task()(&ctx)(&err)

	query = dbutil.Rebind(ex.impl, query)
	err = ex.withConn(ctx, "query row", func(ctx context.Context, conn *sql.Conn) error {
		found = false
		err := conn.QueryRowContext(ctx, query, args...).Scan(dest...)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// Int implements Executor.
func (ex *DB) Int(ctx context.Context, query string, args ...interface{}) (int, error) {
	v, err := ex.Int64(ctx, query, args...)
	return int(v), err
}

// Int64 implements Executor.
func (ex *DB) Int64(ctx context.Context, query string, args ...interface{}) (_ int64, err error) {
	defer mon.Task()(&ctx)(&err)

	var v sql.NullInt64
	if _, err := ex.QueryRow(ctx, []interface{}{&v}, query, args...); err != nil {
		return 0, err
	}
	return v.Int64, nil
}

// String implements Executor.
func (ex *DB) String(ctx context.Context, query string, args ...interface{}) (_ string, err error) {
	defer mon.Task()(&ctx)(&err)

	var v sql.NullString
	if _, err := ex.QueryRow(ctx, []interface{}{&v}, query, args...); err != nil {
		return "", err
	}
	return v.String, nil
}
