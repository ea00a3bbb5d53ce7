// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package document

import (
	"context"

	"go.uber.org/zap"

	"storj.io/blobrepo/txlog"
)

// Rollback compensates an open transaction according to its next step:
//
//	InsertDocRecord, DeleteBLOB          delete the recorded blob
//	DeleteDocProperties                  delete the metadata of the recorded document
//	DeleteDocRecord, InsertDocProperties delete the recorded document and its metadata
//	CopyBLOB, StoreBLOB                  nothing
//
// and then closes it. The last status is refreshed first, so a transaction
// whose compensation fails, or whose type or step is unknown, is picked up
// again only after the next backoff. Unknown types and steps fail with
// ErrUnhandled and leave the transaction open.
func (engine *Engine) Rollback(ctx context.Context, id txlog.ID) (err error) {
	defer mon.Task()(&ctx)(&err)
	defer func() { err = classify(err) }()

	record, err := engine.txs.Get(ctx, id)
	if err != nil {
		if txlog.ErrNotFound.Has(err) {
			engine.log.Warn("transaction to rollback not found", zap.Int64("transaction", int64(id)))
		}
		return Error.Wrap(err)
	}

	log := engine.log.With(
		zap.Int64("transaction", int64(id)),
		zap.Stringer("type", record.Type),
		zap.Stringer("step", record.NextStep))

	if err := engine.txs.Touch(ctx, id); err != nil {
		return Error.Wrap(err)
	}

	if record.Type == txlog.TypeUnknown {
		log.Error("unhandled transaction type")
		return ErrUnhandled.New("transaction %d has an unknown type", id)
	}

	switch record.NextStep {
	case txlog.InsertDocRecord, txlog.DeleteBLOB:
		if record.StoreID > 0 && !record.BlobID.IsZero() {
			if err := engine.blobs.Delete(ctx, record.StoreID, record.BlobID); err != nil {
				log.Error("failed to delete blob", zap.Error(err))
				return Error.Wrap(err)
			}
		}

	case txlog.DeleteDocProperties:
		if record.DocID <= 0 {
			log.Warn("no document recorded")
			break
		}
		if _, err := engine.exec.Exec(ctx, `DELETE FROM DocumentMetaData WHERE doc_id = ?`, record.DocID); err != nil {
			return Error.Wrap(err)
		}

	case txlog.DeleteDocRecord, txlog.InsertDocProperties:
		if record.DocID <= 0 {
			log.Warn("no document recorded")
			break
		}
		if _, err := engine.exec.Exec(ctx, `DELETE FROM DocumentMetaData WHERE doc_id = ?`, record.DocID); err != nil {
			return Error.Wrap(err)
		}
		if _, err := engine.exec.Exec(ctx, `DELETE FROM Document WHERE doc_id = ?`, record.DocID); err != nil {
			return Error.Wrap(err)
		}

	case txlog.CopyBLOB, txlog.StoreBLOB:

	default:
		log.Error("unhandled transaction step")
		return ErrUnhandled.New("transaction %d is at step %s", id, record.NextStep)
	}

	if err := engine.txs.Close(ctx, id); err != nil {
		return Error.Wrap(err)
	}
	log.Info("transaction rolled back")
	mon.Counter("rollbacks").Inc(1)
	return nil
}
