// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package document

import (
	"context"
	"time"

	"go.uber.org/zap"

	"storj.io/blobrepo/txlog"
	"storj.io/common/uuid"
)

// UpsertRequest describes a new version of a document.
type UpsertRequest struct {
	// UUID is the external identity of the document. A new one is generated
	// when it is empty.
	UUID         string
	ArchiveAfter time.Time
	Blob         []byte
	Metadata     []Property
	// PreferredStore forces the blob into the given store when positive.
	PreferredStore int64
}

// UpsertResult describes the stored version.
type UpsertResult struct {
	UUID    string
	DocID   int64
	StoreID int64
	BlobID  uuid.UUID
	// Rewritten is false when the version shares the blob of the previous one.
	Rewritten bool
}

// Upsert stores a new version of a document. When a current version exists
// it is deleted once the new one is committed.
//
// When deleting the previous version fails the new version is still
// returned together with the error.
func (engine *Engine) Upsert(ctx context.Context, req UpsertRequest) (result UpsertResult, err error) {
	defer mon.Task()(&ctx)(&err)
	defer func() { err = classify(err) }()

	result.UUID = req.UUID
	if result.UUID == "" {
		id, err := uuid.New()
		if err != nil {
			return UpsertResult{}, Error.Wrap(err)
		}
		result.UUID = id.String()
	}
	engine.audit.Info("upsert requested", zap.String("uuid", result.UUID))

	now := engine.timestamp()
	archiveAfter := req.ArchiveAfter.UTC().Truncate(time.Microsecond)
	size := int64(len(req.Blob))
	hash := Hash(req.Blob)

	prior, found, err := engine.current(ctx, result.UUID)
	if err != nil {
		return UpsertResult{}, Error.Wrap(err)
	}

	typ := txlog.AddDocument
	if found {
		typ = txlog.UpdateDocument
	}
	txID, err := engine.txs.Start(ctx, engine.session, typ, txlog.StoreBLOB)
	if err != nil {
		return UpsertResult{}, Error.Wrap(err)
	}

	result.Rewritten = true
	if found {
		result.Rewritten = hash != prior.BlobMD5 ||
			(req.PreferredStore > 0 && req.PreferredStore != prior.StoreID) ||
			TierFor(prior.ArchiveAfter, now) != TierFor(archiveAfter, now)
	}

	if result.Rewritten {
		result.StoreID = req.PreferredStore
		if result.StoreID <= 0 {
			result.StoreID, err = engine.selector.Select(ctx, size, TierFor(archiveAfter, now))
			if err != nil {
				return UpsertResult{}, engine.compensate(ctx, txID, Error.Wrap(err))
			}
		}
		result.BlobID, err = uuid.New()
		if err != nil {
			return UpsertResult{}, engine.compensate(ctx, txID, Error.Wrap(err))
		}
		if err := engine.blobs.Put(ctx, result.StoreID, result.BlobID, req.Blob); err != nil {
			return UpsertResult{}, engine.compensate(ctx, txID, Error.Wrap(err))
		}
		err = engine.txs.Advance(ctx, txID, txlog.InsertDocRecord, txlog.Fields{StoreID: result.StoreID, BlobID: result.BlobID})
		if err != nil {
			// the step recorded still says nothing was stored
			if delErr := engine.blobs.Delete(ctx, result.StoreID, result.BlobID); delErr != nil {
				engine.log.Warn("failed to delete unrecorded blob",
					zap.Int64("store", result.StoreID), zap.Stringer("blob", result.BlobID), zap.Error(delErr))
			}
			return UpsertResult{}, engine.compensate(ctx, txID, Error.Wrap(err))
		}
	} else {
		// the blob belongs to the previous version, so it is not recorded
		// and a rollback at this step leaves it alone.
		result.StoreID, result.BlobID = prior.StoreID, prior.BlobID
		if err := engine.txs.Advance(ctx, txID, txlog.InsertDocRecord, txlog.Fields{}); err != nil {
			return UpsertResult{}, engine.compensate(ctx, txID, Error.Wrap(err))
		}
	}

	created := now
	var modified interface{}
	if found {
		created = prior.Created.UTC()
		modified = now
	}

	affected, err := engine.exec.Exec(ctx, `
		INSERT INTO Document (uuid, created, modified, archive_after, store_id, blob_uuid, blob_size, blob_md5)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, result.UUID, created, modified, archiveAfter, result.StoreID, result.BlobID.String(), size, hash)
	if err == nil && affected != 1 {
		err = ErrInconsistent.New("insert of document %s affected %d rows", result.UUID, affected)
	}
	if err != nil {
		return UpsertResult{}, engine.compensate(ctx, txID, Error.Wrap(err))
	}

	if found {
		result.DocID, err = engine.exec.Int64(ctx, `
			SELECT MAX(doc_id) FROM Document WHERE blob_uuid = ? AND uuid = ? AND modified = ?
		`, result.BlobID.String(), result.UUID, now)
	} else {
		result.DocID, err = engine.exec.Int64(ctx, `
			SELECT MAX(doc_id) FROM Document WHERE blob_uuid = ? AND uuid = ? AND modified IS NULL
		`, result.BlobID.String(), result.UUID)
	}
	if err == nil && result.DocID <= 0 {
		err = ErrInconsistent.New("failed to resolve doc_id of %s", result.UUID)
	}
	if err != nil {
		// the new row is not recorded on the transaction yet.
		if found {
			_, delErr := engine.exec.Exec(ctx, `
				DELETE FROM Document WHERE blob_uuid = ? AND uuid = ? AND modified = ?
			`, result.BlobID.String(), result.UUID, now)
			engine.dropUnresolved(delErr, zap.String("uuid", result.UUID))
		} else {
			_, delErr := engine.exec.Exec(ctx, `
				DELETE FROM Document WHERE blob_uuid = ? AND uuid = ? AND modified IS NULL
			`, result.BlobID.String(), result.UUID)
			engine.dropUnresolved(delErr, zap.String("uuid", result.UUID))
		}
		return UpsertResult{}, engine.compensate(ctx, txID, Error.Wrap(err))
	}

	err = engine.txs.Advance(ctx, txID, txlog.InsertDocProperties, txlog.Fields{
		DocID:   result.DocID,
		StoreID: result.StoreID,
		BlobID:  result.BlobID,
	})
	if err != nil {
		return UpsertResult{}, engine.compensate(ctx, txID, Error.Wrap(err))
	}

	for _, property := range req.Metadata {
		_, err := engine.exec.Exec(ctx, `
			INSERT INTO DocumentMetaData (doc_id, property_name, property_value) VALUES (?, ?, ?)
		`, result.DocID, property.Name, property.Value)
		if err != nil {
			return UpsertResult{}, engine.compensate(ctx, txID, Error.Wrap(err))
		}
	}

	if err := engine.txs.Close(ctx, txID); err != nil {
		return UpsertResult{}, engine.compensate(ctx, txID, Error.Wrap(err))
	}
	mon.Counter("upserts").Inc(1)
	if result.Rewritten {
		mon.Meter("blob_bytes_written").Mark64(size)
	}

	if found {
		if err := engine.Delete(ctx, prior.UUID, prior.DocID); err != nil {
			engine.log.Error("failed to delete previous version",
				zap.String("uuid", result.UUID), zap.Int64("doc", prior.DocID), zap.Error(err))
			return result, Error.Wrap(err)
		}
	}
	return result, nil
}
