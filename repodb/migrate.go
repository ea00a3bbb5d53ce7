// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package repodb

import (
	"context"
	"strings"

	"storj.io/blobrepo/private/dbutil"
	"storj.io/blobrepo/private/migrate"
)

// MigrateToLatest migrates the database to the latest version.
func (db *DB) MigrateToLatest(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	if db.db == nil {
		return Error.New("no connection string configured")
	}
	return db.Migration().Run(ctx, db.log.Named("migrate"), db.db)
}

// CheckVersion confirms the database is at the latest version.
func (db *DB) CheckVersion(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	if db.db == nil {
		return Error.New("no connection string configured")
	}
	return db.Migration().ValidateVersions(ctx, db.log, db.db)
}

// Migration returns the steps needed for migrating the database.
func (db *DB) Migration() *migrate.Migration {
	ddl := schema(db.impl)
	return &migrate.Migration{
		Table: "versions",
		Impl:  db.impl,
		Steps: []*migrate.Step{
			{
				Description: "Initial setup",
				Version:     0,
				Action: migrate.SQL{
					ddl(`CREATE TABLE BlobStore (
						store_id {serial} PRIMARY KEY,
						account_name text NOT NULL,
						account_key text NOT NULL,
						tier text NOT NULL,
						capacity bigint NOT NULL,
						space_used bigint NOT NULL DEFAULT 0,
						cost {float} NOT NULL DEFAULT 0
					)`),
					ddl(`CREATE TABLE Document (
						doc_id {serial} PRIMARY KEY,
						uuid text NOT NULL,
						created {timestamp} NOT NULL,
						modified {timestamp},
						archive_after {timestamp} NOT NULL,
						store_id bigint NOT NULL,
						blob_uuid text NOT NULL,
						blob_size bigint NOT NULL,
						blob_md5 text NOT NULL
					)`),
					`CREATE INDEX document_uuid_index ON Document ( uuid )`,
					`CREATE INDEX document_blob_uuid_index ON Document ( blob_uuid )`,
					`CREATE INDEX document_archive_after_index ON Document ( archive_after )`,
					ddl(`CREATE TABLE DocumentMetaData (
						doc_id bigint NOT NULL,
						property_name text NOT NULL,
						property_value text NOT NULL
					)`),
					`CREATE INDEX document_metadata_doc_id_index ON DocumentMetaData ( doc_id )`,
					ddl(`CREATE TABLE TransactionState (
						transaction_id {serial} PRIMARY KEY,
						transaction_type text NOT NULL,
						next_step text NOT NULL,
						session_guid text NOT NULL,
						start_token text NOT NULL,
						doc_id bigint,
						store_id bigint,
						blob_uuid text,
						first_status {timestamp} NOT NULL,
						last_status {timestamp} NOT NULL
					)`),
					`CREATE UNIQUE INDEX transaction_state_start_token_index ON TransactionState ( start_token )`,
					`CREATE INDEX transaction_state_doc_id_index ON TransactionState ( doc_id )`,
					`CREATE INDEX transaction_state_last_status_index ON TransactionState ( last_status )`,
					ddl(`CREATE TABLE ConfigurationSetting (
						setting_name text PRIMARY KEY,
						setting_value text NOT NULL
					)`),
					ddl(`CREATE TABLE EventLog (
						event_id {serial} PRIMARY KEY,
						occurred {timestamp} NOT NULL,
						severity_id integer NOT NULL,
						message_text text NOT NULL,
						event_source text NOT NULL,
						account text,
						app_details text,
						session_id text
					)`),
					`CREATE INDEX event_log_occurred_index ON EventLog ( occurred )`,
				},
			},
		},
	}
}

// schema returns a function that replaces the type placeholders in a
// statement with the column types of impl.
func schema(impl dbutil.Implementation) func(string) string {
	var replacer *strings.Replacer
	switch impl {
	case dbutil.Postgres:
		replacer = strings.NewReplacer(
			"{serial}", "bigserial",
			"{timestamp}", "timestamp with time zone",
			"{float}", "double precision",
		)
	default:
		replacer = strings.NewReplacer(
			"{serial}", "INTEGER",
			"{timestamp}", "TIMESTAMP",
			"{float}", "REAL",
		)
	}
	return func(statement string) string {
		statement = replacer.Replace(statement)
		if impl != dbutil.Postgres {
			statement = strings.Replace(statement, "INTEGER PRIMARY KEY", "INTEGER PRIMARY KEY AUTOINCREMENT", 1)
		}
		return statement
	}
}
