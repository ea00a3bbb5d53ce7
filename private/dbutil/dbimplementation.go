// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package dbutil

import (
	"strconv"
	"strings"

	"github.com/zeebo/errs"
)

// Error is the default dbutil error class.
var Error = errs.Class("dbutil")

// Implementation type of valid DBs.
type Implementation int

const (
	// Unknown is an unknown db type.
	Unknown Implementation = iota
	// Postgres is a Postgresdb type.
	Postgres
	// SQLite3 is a sqlite3 type.
	SQLite3
)

func setImplementation(s string) Implementation {
	switch s {
	case "postgres", "postgresql":
		return Postgres
	case "sqlite", "sqlite3":
		return SQLite3
	default:
		return Unknown
	}
}

// String returns the scheme used for the implementation in connection strings.
func (impl Implementation) String() string {
	switch impl {
	case Postgres:
		return "postgres"
	case SQLite3:
		return "sqlite3"
	default:
		return "<unknown>"
	}
}

// Driver returns the database/sql driver name registered for the implementation.
func (impl Implementation) Driver() string {
	switch impl {
	case Postgres:
		return "pgx"
	case SQLite3:
		return "sqlite3"
	default:
		return ""
	}
}

// SplitConnStr returns the driver name, the source the driver expects and the
// implementation for the given connection string.
//
// Postgres URLs are passed through unchanged, sqlite3 URLs have their scheme
// stripped so that "sqlite3://path/to.db?_busy_timeout=1000" opens the file
// "path/to.db" with the given options.
func SplitConnStr(connstr string) (driver, source string, impl Implementation, err error) {
	scheme, rest, ok := strings.Cut(connstr, "://")
	if !ok {
		return "", "", Unknown, Error.New("unable to parse db url: %q", connstr)
	}

	impl = setImplementation(scheme)
	switch impl {
	case Postgres:
		return impl.Driver(), connstr, impl, nil
	case SQLite3:
		if rest == "" {
			return "", "", Unknown, Error.New("sqlite3 url is missing a path: %q", connstr)
		}
		return impl.Driver(), "file:" + rest, impl, nil
	default:
		return "", "", Unknown, Error.New("unsupported database scheme: %q", scheme)
	}
}

// Rebind rewrites "?" placeholders into the form expected by impl.
// Question marks inside single-quoted literals are left alone.
func Rebind(impl Implementation, query string) string {
	if impl != Postgres || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)

	quoted := false
	n := 0
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case ch == '\'':
			quoted = !quoted
			b.WriteByte(ch)
		case ch == '?' && !quoted:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}
