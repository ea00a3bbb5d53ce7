// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package txlog implements the transaction log: durable records describing
// in-flight multi-step document mutations and their next step.
package txlog

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/blobrepo/private/sqlexec"
	"storj.io/blobrepo/session"
	"storj.io/common/uuid"
)

var (
	mon = monkit.Package()

	// Error is the default txlog errs class.
	Error = errs.Class("txlog")
	// ErrNotFound is returned when a transaction does not exist.
	ErrNotFound = errs.Class("transaction not found")
)

// ID identifies a transaction.
type ID int64

// Fields are the optional values recorded on a transaction. Zero values are
// not written.
type Fields struct {
	DocID   int64
	StoreID int64
	BlobID  uuid.UUID
}

// Record is a stored transaction.
type Record struct {
	ID          ID
	Type        Type
	NextStep    Step
	Session     string
	DocID       int64
	StoreID     int64
	BlobID      uuid.UUID
	FirstStatus time.Time
	LastStatus  time.Time
}

// Log reads and writes the TransactionState table.
type Log struct {
	log  *zap.Logger
	exec sqlexec.Executor
	now  func() time.Time
}

// New returns the transaction log stored through exec.
func New(log *zap.Logger, exec sqlexec.Executor) *Log {
	return &Log{log: log, exec: exec, now: time.Now}
}

// Now returns the current instant the way it is stored.
func Now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

func (txs *Log) timestamp() time.Time { return txs.now().UTC().Truncate(time.Microsecond) }

// Start records a new transaction of typ whose first step is first.
func (txs *Log) Start(ctx context.Context, sess session.Session, typ Type, first Step) (_ ID, err error) {
	defer mon.Task()(&ctx)(&err)

	token, err := uuid.New()
	if err != nil {
		return 0, Error.Wrap(err)
	}
	now := txs.timestamp()

	affected, err := txs.exec.Exec(ctx, `
		INSERT INTO TransactionState (transaction_type, next_step, session_guid, start_token, first_status, last_status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, typ.String(), first.String(), sess.String(), token.String(), now, now)
	if err != nil {
		txs.log.Error("failed to insert transaction", zap.Stringer("type", typ), zap.Error(err))
		return 0, Error.Wrap(err)
	}
	if affected != 1 {
		return 0, Error.New("insert of %s transaction affected %d rows", typ, affected)
	}

	var id int64
	found, err := txs.exec.QueryRow(ctx, []interface{}{&id},
		`SELECT transaction_id FROM TransactionState WHERE start_token = ?`, token.String())
	if err != nil {
		return 0, Error.Wrap(err)
	}
	if !found || id <= 0 {
		return 0, Error.New("failed to resolve id of %s transaction", typ)
	}
	return ID(id), nil
}

// Advance records the next step of a transaction together with the non-zero
// fields.
func (txs *Log) Advance(ctx context.Context, id ID, next Step, fields Fields) (err error) {
	defer mon.Task()(&ctx)(&err)

	sets := []string{"last_status = ?", "next_step = ?"}
	args := []interface{}{txs.timestamp(), next.String()}
	if fields.DocID > 0 {
		sets = append(sets, "doc_id = ?")
		args = append(args, fields.DocID)
	}
	if fields.StoreID > 0 {
		sets = append(sets, "store_id = ?")
		args = append(args, fields.StoreID)
	}
	if !fields.BlobID.IsZero() {
		sets = append(sets, "blob_uuid = ?")
		args = append(args, fields.BlobID.String())
	}
	args = append(args, int64(id))

	affected, err := txs.exec.Exec(ctx,
		`UPDATE TransactionState SET `+strings.Join(sets, ", ")+` WHERE transaction_id = ?`, args...)
	if err != nil {
		return Error.Wrap(err)
	}
	if affected != 1 {
		return Error.New("advance of transaction %d to %s affected %d rows", id, next, affected)
	}
	return nil
}

// Close deletes a completed transaction.
func (txs *Log) Close(ctx context.Context, id ID) (err error) {
	defer mon.Task()(&ctx)(&err)

	affected, err := txs.exec.Exec(ctx, `DELETE FROM TransactionState WHERE transaction_id = ?`, int64(id))
	if err != nil {
		return Error.Wrap(err)
	}
	if affected != 1 {
		return Error.New("close of transaction %d affected %d rows", id, affected)
	}
	return nil
}

// Touch refreshes the last status of a transaction, so it is not picked up
// again by a concurrent scan for abandoned transactions.
func (txs *Log) Touch(ctx context.Context, id ID) (err error) {
	defer mon.Task()(&ctx)(&err)

	affected, err := txs.exec.Exec(ctx, `UPDATE TransactionState SET last_status = ? WHERE transaction_id = ?`, txs.timestamp(), int64(id))
	if err != nil {
		return Error.Wrap(err)
	}
	if affected != 1 {
		return Error.New("touch of transaction %d affected %d rows", id, affected)
	}
	return nil
}

// Get returns a transaction.
func (txs *Log) Get(ctx context.Context, id ID) (_ Record, err error) {
	defer mon.Task()(&ctx)(&err)

	var record Record
	var typ, step, blobID sql.NullString
	var docID, storeID sql.NullInt64
	found, err := txs.exec.QueryRow(ctx, []interface{}{
		&record.ID, &typ, &step, &record.Session, &docID, &storeID, &blobID, &record.FirstStatus, &record.LastStatus,
	}, `
		SELECT transaction_id, transaction_type, next_step, session_guid, doc_id, store_id, blob_uuid, first_status, last_status
		FROM TransactionState WHERE transaction_id = ?
	`, int64(id))
	if err != nil {
		return Record{}, Error.Wrap(err)
	}
	if !found {
		return Record{}, ErrNotFound.New("%d", id)
	}

	record.Type = ParseType(typ.String)
	record.NextStep = ParseStep(step.String)
	record.DocID = docID.Int64
	record.StoreID = storeID.Int64
	record.FirstStatus = record.FirstStatus.UTC()
	record.LastStatus = record.LastStatus.UTC()
	if blobID.Valid && blobID.String != "" {
		record.BlobID, err = uuid.FromString(blobID.String)
		if err != nil {
			return Record{}, Error.New("invalid blob uuid on transaction %d: %w", id, err)
		}
	}
	return record, nil
}

// Abandoned returns the transactions whose last status is before the given
// instant, oldest first.
func (txs *Log) Abandoned(ctx context.Context, before time.Time) (_ []ID, err error) {
	defer mon.Task()(&ctx)(&err)

	var ids []ID
	err = txs.exec.Query(ctx, func(row sqlexec.Scanner) error {
		var id int64
		if err := row.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, ID(id))
		return nil
	}, `
		SELECT transaction_id FROM TransactionState
		WHERE last_status < ?
		ORDER BY last_status ASC, transaction_id ASC
	`, before.UTC())
	return ids, Error.Wrap(err)
}

// Count returns the number of open transactions.
func (txs *Log) Count(ctx context.Context) (_ int, err error) {
	defer mon.Task()(&ctx)(&err)

	count, err := txs.exec.Int(ctx, `SELECT COUNT(*) FROM TransactionState`)
	return count, Error.Wrap(err)
}
