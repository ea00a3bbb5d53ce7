// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package migrate_test

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"storj.io/blobrepo/private/dbutil"
	"storj.io/blobrepo/private/migrate"
	"storj.io/common/testcontext"
)

func TestBasicMigration(t *testing.T) {
	ctx := testcontext.New(t)
	log := zaptest.NewLogger(t)

	db, err := sql.Open("sqlite3", "file:"+ctx.File("migrate.db"))
	require.NoError(t, err)
	defer ctx.Check(db.Close)

	m := migrate.Migration{
		Table: "versions",
		Impl:  dbutil.SQLite3,
		Steps: []*migrate.Step{
			{
				Description: "Initialize Table",
				Version:     1,
				Action: migrate.SQL{
					`CREATE TABLE users (id int)`,
					`INSERT INTO users (id) VALUES (1)`,
				},
			},
			{
				Description: "Add a user",
				Version:     2,
				Action: migrate.Func(func(ctx context.Context, log *zap.Logger, impl dbutil.Implementation, tx *sql.Tx) error {
					_, err := tx.ExecContext(ctx, dbutil.Rebind(impl, `INSERT INTO users (id) VALUES (?)`), 2)
					return err
				}),
			},
		},
	}

	require.NoError(t, m.ValidTableName())
	require.NoError(t, m.ValidateSteps())

	version, err := m.CurrentVersion(ctx, log, db)
	require.NoError(t, err)
	require.Equal(t, -1, version)

	require.NoError(t, m.Run(ctx, log, db))
	require.NoError(t, m.ValidateVersions(ctx, log, db))

	// running again is a no-op
	require.NoError(t, m.Run(ctx, log, db))

	var users int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&users))
	require.Equal(t, 2, users)

	version, err = m.CurrentVersion(ctx, log, db)
	require.NoError(t, err)
	require.Equal(t, 2, version)

	// an older target version is behind the database.
	err = m.TargetVersion(1).ValidateVersions(ctx, log, db)
	require.True(t, migrate.ErrValidateVersionMismatch.Has(err))
}

func TestMigration_Invalid(t *testing.T) {
	ctx := testcontext.New(t)
	log := zaptest.NewLogger(t)

	db, err := sql.Open("sqlite3", "file:"+ctx.File("invalid.db"))
	require.NoError(t, err)
	defer ctx.Check(db.Close)

	bad := migrate.Migration{Table: "Bad-Name", Impl: dbutil.SQLite3}
	require.Error(t, bad.Run(ctx, log, db))

	unordered := migrate.Migration{
		Table: "versions",
		Impl:  dbutil.SQLite3,
		Steps: []*migrate.Step{
			{Version: 2, Action: migrate.SQL{`CREATE TABLE a (id int)`}},
			{Version: 1, Action: migrate.SQL{`CREATE TABLE b (id int)`}},
		},
	}
	require.Error(t, unordered.Run(ctx, log, db))

	failing := migrate.Migration{
		Table: "versions",
		Impl:  dbutil.SQLite3,
		Steps: []*migrate.Step{
			{Version: 0, Action: migrate.SQL{`CREATE TABLE c (id int)`}},
			{Version: 1, Action: migrate.SQL{`THIS IS NOT SQL`}},
		},
	}
	require.Error(t, failing.Run(ctx, log, db))

	version, err := failing.CurrentVersion(ctx, log, db)
	require.NoError(t, err)
	require.Equal(t, 0, version)
}
