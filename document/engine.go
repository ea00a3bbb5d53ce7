// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package document implements the document engine: versioned documents in
// the relational index whose content lives in the tiered blob stores.
//
// Mutations are sagas. Each one opens a transaction log record before its
// first durable side effect, advances the record after every durable step
// and closes it on success. A failed mutation is compensated according to
// the step recorded last, see Engine.Rollback.
package document

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/blobrepo/blobstore"
	"storj.io/blobrepo/private/sqlexec"
	"storj.io/blobrepo/session"
	"storj.io/blobrepo/stores"
	"storj.io/blobrepo/txlog"
	"storj.io/common/uuid"
)

var (
	mon = monkit.Package()

	// Error is the default document errs class.
	Error = errs.Class("document")
	// ErrNotFound is returned when no current version of a document exists.
	ErrNotFound = errs.Class("document not found")
	// ErrLocked is returned when every version of a document is shadowed by
	// an open transaction. Locked errors are also ErrNotFound errors.
	ErrLocked = errs.Class("document locked")
	// ErrAmbiguous is returned when a delete by uuid matches several versions.
	ErrAmbiguous = errs.Class("ambiguous document")
	// ErrInconsistent is returned when the index disagrees with itself.
	ErrInconsistent = errs.Class("inconsistent document")
	// ErrUnhandled is returned when compensation meets an unknown step. The
	// transaction is left open.
	ErrUnhandled = errs.Class("unhandled transaction")
	// ErrBackendUnavailable is returned when the relational store or the blob
	// backend could not be reached within the configured retries.
	ErrBackendUnavailable = errs.Class("backend unavailable")
)

// Property is a single metadata key/value of a document version.
type Property struct {
	Name  string
	Value string
}

// Document is a version of a document.
type Document struct {
	DocID        int64
	UUID         string
	Created      time.Time
	Modified     time.Time // zero until the first update
	ArchiveAfter time.Time
	StoreID      int64
	BlobID       uuid.UUID
	BlobSize     int64
	BlobMD5      string

	Metadata []Property
	Blob     []byte
}

// Blobs stores blob content in the stores of the catalog.
type Blobs interface {
	Put(ctx context.Context, storeID int64, blobID uuid.UUID, data []byte) error
	Get(ctx context.Context, storeID int64, blobID uuid.UUID, expectedSize int64) ([]byte, error)
	Delete(ctx context.Context, storeID int64, blobID uuid.UUID) error
	Copy(ctx context.Context, src int64, srcID uuid.UUID, dst int64, dstID uuid.UUID) error
}

// StoreSelector chooses the store a blob is written to.
type StoreSelector interface {
	Select(ctx context.Context, size int64, tier stores.Tier) (storeID int64, err error)
}

// Engine implements the document operations.
type Engine struct {
	log   *zap.Logger
	audit *zap.Logger

	exec     sqlexec.Executor
	txs      *txlog.Log
	selector StoreSelector
	blobs    Blobs
	session  session.Session

	now func() time.Time
}

// NewEngine creates a document engine. sess identifies the process in the
// transaction log.
func NewEngine(log *zap.Logger, exec sqlexec.Executor, txs *txlog.Log, selector StoreSelector, blobs Blobs, sess session.Session) *Engine {
	return &Engine{
		log:      log,
		audit:    log.Named("audit"),
		exec:     exec,
		txs:      txs,
		selector: selector,
		blobs:    blobs,
		session:  sess,
		now:      time.Now,
	}
}

// timestamp returns now the way instants are stored.
func (engine *Engine) timestamp() time.Time {
	return engine.now().UTC().Truncate(time.Microsecond)
}

// TierFor returns the tier a document archived after the given instant
// belongs to at now.
func TierFor(archiveAfter, now time.Time) stores.Tier {
	if !archiveAfter.After(now) {
		return stores.Cool
	}
	return stores.Hot
}

// Hash returns the content hash recorded for a blob.
func Hash(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// classify marks backend failures of the executor and the blob adapter with
// ErrBackendUnavailable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if sqlexec.ErrBackendUnavailable.Has(err) || blobstore.ErrBackendUnavailable.Has(err) {
		return ErrBackendUnavailable.Wrap(err)
	}
	return err
}

// version is the part of a document row the engine works with.
type version struct {
	DocID        int64
	UUID         string
	Created      time.Time
	Modified     sql.NullTime
	ArchiveAfter time.Time
	StoreID      int64
	BlobID       uuid.UUID
	BlobSize     int64
	BlobMD5      string
}

func (v version) document() *Document {
	doc := &Document{
		DocID:        v.DocID,
		UUID:         v.UUID,
		Created:      v.Created.UTC(),
		ArchiveAfter: v.ArchiveAfter.UTC(),
		StoreID:      v.StoreID,
		BlobID:       v.BlobID,
		BlobSize:     v.BlobSize,
		BlobMD5:      v.BlobMD5,
	}
	if v.Modified.Valid {
		doc.Modified = v.Modified.Time.UTC()
	}
	return doc
}

// current returns the newest version of a document that has no open
// transaction.
func (engine *Engine) current(ctx context.Context, docUUID string) (_ version, found bool, err error) {
	defer mon.Task()(&ctx)(&err)

	var v version
	var blobID string
	found, err = engine.exec.QueryRow(ctx, []interface{}{
		&v.DocID, &v.UUID, &v.Created, &v.Modified, &v.ArchiveAfter, &v.StoreID, &blobID, &v.BlobSize, &v.BlobMD5,
	}, `
		SELECT doc_id, uuid, created, modified, archive_after, store_id, blob_uuid, blob_size, blob_md5
		FROM Document d
		WHERE uuid = ?
			AND NOT EXISTS (SELECT 1 FROM TransactionState ts WHERE ts.doc_id = d.doc_id)
		ORDER BY doc_id DESC
		LIMIT 1
	`, docUUID)
	if err != nil || !found {
		return version{}, false, err
	}

	v.BlobID, err = uuid.FromString(blobID)
	if err != nil {
		return version{}, false, ErrInconsistent.New("invalid blob uuid %q on doc_id %d", blobID, v.DocID)
	}
	return v, true, nil
}

// compensate rolls back a transaction after cause made a mutation fail.
func (engine *Engine) compensate(ctx context.Context, id txlog.ID, cause error) error {
	engine.log.Error("compensating transaction", zap.Int64("transaction", int64(id)), zap.Error(cause))
	if err := engine.Rollback(ctx, id); err != nil {
		engine.log.Error("failed to rollback transaction", zap.Int64("transaction", int64(id)), zap.Error(err))
		return errs.Combine(cause, err)
	}
	return cause
}

// dropUnresolved reports a failed removal of a freshly inserted row whose
// doc_id could not be read back. Such a row stays visible until an
// operator deletes it.
func (engine *Engine) dropUnresolved(err error, fields ...zap.Field) {
	if err != nil {
		engine.log.Error("failed to remove unresolved document row", append(fields, zap.Error(err))...)
	}
}
