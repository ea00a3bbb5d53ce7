// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package document

import (
	"context"

	"go.uber.org/zap"

	"storj.io/blobrepo/txlog"
	"storj.io/common/uuid"
)

// Delete removes a version of a document. When docID is zero the uuid must
// identify exactly one version. When docUUID is empty it is looked up from
// docID.
//
// The blob is deleted only when no other version references it. A failure
// after the transaction started leaves it open for compensation.
func (engine *Engine) Delete(ctx context.Context, docUUID string, docID int64) (err error) {
	defer mon.Task()(&ctx)(&err)
	defer func() { err = classify(err) }()

	if docUUID == "" && docID <= 0 {
		return Error.New("either uuid or doc id is required")
	}
	if docID > 0 {
		owner, err := engine.exec.String(ctx, `SELECT uuid FROM Document WHERE doc_id = ?`, docID)
		if err != nil {
			return Error.Wrap(err)
		}
		if owner == "" || (docUUID != "" && owner != docUUID) {
			return ErrNotFound.New("doc_id %d", docID)
		}
		docUUID = owner
	}

	engine.audit.Info("delete requested", zap.String("uuid", docUUID), zap.Int64("doc", docID))

	versions, err := engine.exec.Int(ctx, `SELECT COUNT(*) FROM Document WHERE uuid = ?`, docUUID)
	if err != nil {
		return Error.Wrap(err)
	}
	if versions == 0 {
		return ErrNotFound.New("%s", docUUID)
	}
	if docID <= 0 {
		if versions > 1 {
			return ErrAmbiguous.New("%s has %d versions", docUUID, versions)
		}
		docID, err = engine.exec.Int64(ctx, `SELECT MIN(doc_id) FROM Document WHERE uuid = ?`, docUUID)
		if err != nil {
			return Error.Wrap(err)
		}
	}

	txID, err := engine.txs.Start(ctx, engine.session, txlog.DeleteDocument, txlog.DeleteBLOB)
	if err != nil {
		return Error.Wrap(err)
	}

	var storeID int64
	var blob string
	found, err := engine.exec.QueryRow(ctx, []interface{}{&storeID, &blob},
		`SELECT store_id, blob_uuid FROM Document WHERE doc_id = ?`, docID)
	if err != nil {
		return Error.Wrap(err)
	}
	if !found {
		if err := engine.txs.Close(ctx, txID); err != nil {
			engine.log.Warn("failed to close transaction", zap.Int64("transaction", int64(txID)), zap.Error(err))
		}
		return ErrNotFound.New("doc_id %d", docID)
	}
	blobID, err := uuid.FromString(blob)
	if err != nil {
		return ErrInconsistent.New("invalid blob uuid %q on doc_id %d", blob, docID)
	}

	references, err := engine.exec.Int(ctx, `SELECT COUNT(*) FROM Document WHERE blob_uuid = ?`, blob)
	if err != nil {
		return Error.Wrap(err)
	}

	if references == 1 {
		err = engine.txs.Advance(ctx, txID, txlog.DeleteBLOB, txlog.Fields{DocID: docID, StoreID: storeID, BlobID: blobID})
		if err != nil {
			return Error.Wrap(err)
		}
		if err := engine.blobs.Delete(ctx, storeID, blobID); err != nil {
			return Error.Wrap(err)
		}
		if err := engine.txs.Advance(ctx, txID, txlog.DeleteDocProperties, txlog.Fields{}); err != nil {
			return Error.Wrap(err)
		}
	} else {
		if err := engine.txs.Advance(ctx, txID, txlog.DeleteDocProperties, txlog.Fields{DocID: docID}); err != nil {
			return Error.Wrap(err)
		}
	}

	if _, err := engine.exec.Exec(ctx, `DELETE FROM DocumentMetaData WHERE doc_id = ?`, docID); err != nil {
		return Error.Wrap(err)
	}
	if err := engine.txs.Advance(ctx, txID, txlog.DeleteDocRecord, txlog.Fields{}); err != nil {
		return Error.Wrap(err)
	}
	if _, err := engine.exec.Exec(ctx, `DELETE FROM Document WHERE doc_id = ?`, docID); err != nil {
		return Error.Wrap(err)
	}
	if err := engine.txs.Close(ctx, txID); err != nil {
		return Error.Wrap(err)
	}

	mon.Counter("deletes").Inc(1)
	return nil
}
