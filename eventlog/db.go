// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"

	"storj.io/blobrepo/private/dbutil"
)

var (
	mon = monkit.Package()

	// ErrEventLog is the default eventlog errs class.
	ErrEventLog = errs.Class("eventlog")
)

// Event is a single row of the event log.
type Event struct {
	Occurred      time.Time
	Severity      Severity
	Message       string
	Source        string
	Account       string
	ClientDetails string
	SessionID     string
}

// String formats the event as a tab separated line.
func (event Event) String() string {
	return strings.Join([]string{
		event.Occurred.UTC().Format(time.RFC3339),
		event.Severity.String(),
		event.Message,
		event.Source,
		event.Account,
		event.ClientDetails,
		event.SessionID,
	}, "\t")
}

// DB reads and writes the EventLog table. It accesses the database directly
// rather than through the retrying executor, so executor failures are never
// logged through itself.
type DB struct {
	db   *sql.DB
	impl dbutil.Implementation
}

// NewDB returns the event log stored in db.
func NewDB(db *sql.DB, impl dbutil.Implementation) *DB {
	return &DB{db: db, impl: impl}
}

// Insert appends an event.
func (db *DB) Insert(ctx context.Context, event Event) (err error) {
	defer mon.Task()(&ctx)(&err)

	if event.Occurred.IsZero() {
		event.Occurred = time.Now()
	}

	_, err = db.db.ExecContext(ctx, dbutil.Rebind(db.impl, `
		INSERT INTO EventLog (occurred, severity_id, message_text, event_source, account, app_details, session_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), event.Occurred.UTC().Truncate(time.Microsecond), int(event.Severity), event.Message, event.Source,
		nullable(event.Account), nullable(event.ClientDetails), nullable(event.SessionID))
	return ErrEventLog.Wrap(err)
}

// Read returns the events that occurred within [start, end], oldest first.
// A zero start reads from the beginning, a zero end up to now.
func (db *DB) Read(ctx context.Context, start, end time.Time) (_ []Event, err error) {
	defer mon.Task()(&ctx)(&err)

	if end.IsZero() {
		end = time.Now()
	}

	rows, err := db.db.QueryContext(ctx, dbutil.Rebind(db.impl, `
		SELECT occurred, severity_id, message_text, event_source, account, app_details, session_id
		FROM EventLog
		WHERE occurred >= ? AND occurred <= ?
		ORDER BY occurred, event_id
	`), start.UTC(), end.UTC())
	if err != nil {
		return nil, ErrEventLog.Wrap(err)
	}
	defer func() { err = errs.Combine(err, ErrEventLog.Wrap(rows.Close())) }()

	var events []Event
	for rows.Next() {
		var event Event
		var severity int
		var account, client, sessionID sql.NullString
		if err := rows.Scan(&event.Occurred, &severity, &event.Message, &event.Source, &account, &client, &sessionID); err != nil {
			return nil, ErrEventLog.Wrap(err)
		}
		event.Occurred = event.Occurred.UTC()
		event.Severity = Severity(severity)
		event.Account, event.ClientDetails, event.SessionID = account.String, client.String, sessionID.String
		events = append(events, event)
	}
	return events, ErrEventLog.Wrap(rows.Err())
}

// Clear deletes the events that occurred at or before before. A zero before
// clears the whole log. It returns the number of deleted events.
func (db *DB) Clear(ctx context.Context, before time.Time) (deleted int64, err error) {
	defer mon.Task()(&ctx)(&err)

	message := "Event log cleared."
	if before.IsZero() {
		before = time.Now()
	} else {
		message = fmt.Sprintf("Event log purged of events up to %s UTC.", before.UTC().Format(time.RFC3339))
	}

	result, err := db.db.ExecContext(ctx, dbutil.Rebind(db.impl, `DELETE FROM EventLog WHERE occurred <= ?`), before.UTC())
	if err != nil {
		return 0, ErrEventLog.Wrap(err)
	}
	deleted, err = result.RowsAffected()
	if err != nil {
		return 0, ErrEventLog.Wrap(err)
	}

	return deleted, db.Insert(ctx, Event{Severity: Audit, Message: message, Source: "eventlog.Clear"})
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
