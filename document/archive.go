// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package document

import (
	"context"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/blobrepo/private/sqlexec"
	"storj.io/blobrepo/stores"
	"storj.io/blobrepo/txlog"
	"storj.io/common/uuid"
)

type archiveItem struct {
	DocID    int64
	StoreID  int64
	BlobID   uuid.UUID
	BlobSize int64
}

// DoArchive moves every document past its archive instant from a Hot store
// to a Cool store. Each document is archived independently; the errors of
// all failed documents are returned together.
func (engine *Engine) DoArchive(ctx context.Context) (archived int, err error) {
	defer mon.Task()(&ctx)(&err)
	defer func() { err = classify(err) }()

	var items []archiveItem
	var group errs.Group
	err = engine.exec.Query(ctx, func(row sqlexec.Scanner) error {
		var item archiveItem
		var blob string
		if err := row.Scan(&item.DocID, &item.StoreID, &blob, &item.BlobSize); err != nil {
			return err
		}
		blobID, err := uuid.FromString(blob)
		if err != nil {
			group.Add(ErrInconsistent.New("invalid blob uuid %q on doc_id %d", blob, item.DocID))
			return nil
		}
		item.BlobID = blobID
		items = append(items, item)
		return nil
	}, `
		SELECT d.doc_id, d.store_id, d.blob_uuid, d.blob_size
		FROM Document d
		JOIN BlobStore s ON s.store_id = d.store_id
		WHERE d.archive_after < ? AND s.tier = ?
			AND NOT EXISTS (SELECT 1 FROM TransactionState ts WHERE ts.doc_id = d.doc_id)
		ORDER BY d.doc_id
	`, engine.timestamp(), stores.Hot.String())
	if err != nil {
		return 0, Error.Wrap(err)
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			group.Add(err)
			break
		}
		moved, err := engine.archive(ctx, item)
		if err != nil {
			engine.log.Error("failed to archive document", zap.Int64("doc", item.DocID), zap.Error(err))
			group.Add(err)
			continue
		}
		if moved {
			archived++
		}
	}

	mon.IntVal("archived").Observe(int64(archived))
	return archived, group.Err()
}

// archive copies the blob of a document to a Cool store and replaces the
// document with a version pointing at the copy. moved is false when the
// document already is in the store that would be chosen.
func (engine *Engine) archive(ctx context.Context, item archiveItem) (moved bool, err error) {
	defer mon.Task()(&ctx)(&err)

	txID, err := engine.txs.Start(ctx, engine.session, txlog.ArchiveDocument, txlog.CopyBLOB)
	if err != nil {
		return false, Error.Wrap(err)
	}

	dst, err := engine.selector.Select(ctx, item.BlobSize, stores.Cool)
	if err != nil {
		return false, engine.compensate(ctx, txID, Error.Wrap(err))
	}
	if dst == item.StoreID {
		engine.log.Info("document already in optimal store", zap.Int64("doc", item.DocID), zap.Int64("store", dst))
		return false, Error.Wrap(engine.txs.Close(ctx, txID))
	}

	newBlob, err := uuid.New()
	if err != nil {
		return false, engine.compensate(ctx, txID, Error.Wrap(err))
	}
	if err := engine.blobs.Copy(ctx, item.StoreID, item.BlobID, dst, newBlob); err != nil {
		return false, engine.compensate(ctx, txID, Error.Wrap(err))
	}
	if err := engine.txs.Advance(ctx, txID, txlog.InsertDocRecord, txlog.Fields{StoreID: dst, BlobID: newBlob}); err != nil {
		if delErr := engine.blobs.Delete(ctx, dst, newBlob); delErr != nil {
			engine.log.Warn("failed to delete unrecorded blob",
				zap.Int64("store", dst), zap.Stringer("blob", newBlob), zap.Error(delErr))
		}
		return false, engine.compensate(ctx, txID, Error.Wrap(err))
	}

	affected, err := engine.exec.Exec(ctx, `
		INSERT INTO Document (uuid, created, modified, archive_after, store_id, blob_uuid, blob_size, blob_md5)
		SELECT uuid, created, modified, archive_after, CAST(? AS bigint), CAST(? AS text), blob_size, blob_md5
		FROM Document WHERE doc_id = ?
	`, dst, newBlob.String(), item.DocID)
	if err == nil && affected != 1 {
		err = ErrInconsistent.New("copy of doc_id %d affected %d rows", item.DocID, affected)
	}
	if err != nil {
		return false, engine.compensate(ctx, txID, Error.Wrap(err))
	}

	newDocID, err := engine.exec.Int64(ctx,
		`SELECT MAX(doc_id) FROM Document WHERE blob_uuid = ? AND store_id = ?`, newBlob.String(), dst)
	if err == nil && newDocID <= 0 {
		err = ErrInconsistent.New("failed to resolve archived copy of doc_id %d", item.DocID)
	}
	if err != nil {
		_, delErr := engine.exec.Exec(ctx,
			`DELETE FROM Document WHERE blob_uuid = ? AND store_id = ?`, newBlob.String(), dst)
		engine.dropUnresolved(delErr, zap.Int64("doc_id", item.DocID))
		return false, engine.compensate(ctx, txID, Error.Wrap(err))
	}

	if err := engine.txs.Advance(ctx, txID, txlog.InsertDocProperties, txlog.Fields{DocID: newDocID}); err != nil {
		return false, engine.compensate(ctx, txID, Error.Wrap(err))
	}

	properties, err := engine.exec.Int64(ctx, `SELECT COUNT(*) FROM DocumentMetaData WHERE doc_id = ?`, item.DocID)
	if err != nil {
		return false, engine.compensate(ctx, txID, Error.Wrap(err))
	}
	if properties > 0 {
		copied, err := engine.exec.Exec(ctx, `
			INSERT INTO DocumentMetaData (doc_id, property_name, property_value)
			SELECT CAST(? AS bigint), property_name, property_value
			FROM DocumentMetaData WHERE doc_id = ?
		`, newDocID, item.DocID)
		if err == nil && copied != properties {
			err = ErrInconsistent.New("copied %d of %d properties of doc_id %d", copied, properties, item.DocID)
		}
		if err != nil {
			return false, engine.compensate(ctx, txID, Error.Wrap(err))
		}
	}

	if err := engine.txs.Close(ctx, txID); err != nil {
		return false, engine.compensate(ctx, txID, Error.Wrap(err))
	}

	if err := engine.Delete(ctx, "", item.DocID); err != nil {
		return true, Error.Wrap(err)
	}

	engine.log.Info("document archived",
		zap.Int64("doc", item.DocID), zap.Int64("archived doc", newDocID),
		zap.Int64("from", item.StoreID), zap.Int64("to", dst))
	return true, nil
}
