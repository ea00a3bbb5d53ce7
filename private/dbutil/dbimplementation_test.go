// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package dbutil_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"storj.io/blobrepo/private/dbutil"
)

func TestSplitConnStr(t *testing.T) {
	for _, tt := range []struct {
		connstr string
		driver  string
		source  string
		impl    dbutil.Implementation
	}{
		{"postgres://user@localhost/repo?sslmode=disable", "pgx", "postgres://user@localhost/repo?sslmode=disable", dbutil.Postgres},
		{"postgresql://localhost/repo", "pgx", "postgresql://localhost/repo", dbutil.Postgres},
		{"sqlite3:///var/lib/repo.db?_busy_timeout=1000", "sqlite3", "file:/var/lib/repo.db?_busy_timeout=1000", dbutil.SQLite3},
		{"sqlite://repo.db", "sqlite3", "file:repo.db", dbutil.SQLite3},
	} {
		driver, source, impl, err := dbutil.SplitConnStr(tt.connstr)
		require.NoError(t, err, tt.connstr)
		require.Equal(t, tt.driver, driver, tt.connstr)
		require.Equal(t, tt.source, source, tt.connstr)
		require.Equal(t, tt.impl, impl, tt.connstr)
	}

	for _, bad := range []string{"", "repo.db", "mysql://localhost/repo", "sqlite3://"} {
		_, _, _, err := dbutil.SplitConnStr(bad)
		require.Error(t, err, bad)
	}
}

func TestRebind(t *testing.T) {
	query := `SELECT doc_id FROM Document WHERE uuid = ? AND blob_uuid = ? AND note = 'why?'`

	require.Equal(t, query, dbutil.Rebind(dbutil.SQLite3, query))
	require.Equal(t,
		`SELECT doc_id FROM Document WHERE uuid = $1 AND blob_uuid = $2 AND note = 'why?'`,
		dbutil.Rebind(dbutil.Postgres, query))
	require.Equal(t, `SELECT 1`, dbutil.Rebind(dbutil.Postgres, `SELECT 1`))
}
