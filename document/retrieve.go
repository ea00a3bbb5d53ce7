// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package document

import (
	"context"

	"go.uber.org/zap"

	"storj.io/blobrepo/private/sqlexec"
)

// Retrieve returns the current version of a document with its metadata and,
// unless omitBlob is set, its blob.
//
// Versions with an open transaction are invisible. When every version is
// invisible ErrLocked is returned.
func (engine *Engine) Retrieve(ctx context.Context, docUUID string, omitBlob bool) (_ *Document, err error) {
	defer mon.Task()(&ctx)(&err)
	defer func() { err = classify(err) }()

	engine.audit.Info("retrieve requested", zap.String("uuid", docUUID))

	v, found, err := engine.current(ctx, docUUID)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if !found {
		locked, err := engine.exec.Int(ctx, `
			SELECT COUNT(*) FROM TransactionState ts
			JOIN Document d ON d.doc_id = ts.doc_id
			WHERE d.uuid = ?
		`, docUUID)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		if locked > 0 {
			engine.log.Warn("document is locked by an open transaction", zap.String("uuid", docUUID))
			return nil, ErrLocked.Wrap(ErrNotFound.New("%s", docUUID))
		}
		engine.log.Warn("document not found", zap.String("uuid", docUUID))
		return nil, ErrNotFound.New("%s", docUUID)
	}

	doc := v.document()
	doc.Metadata, err = engine.metadata(ctx, doc.DocID)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	if !omitBlob {
		doc.Blob, err = engine.blobs.Get(ctx, doc.StoreID, doc.BlobID, doc.BlobSize)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		mon.Meter("blob_bytes_read").Mark(len(doc.Blob))
	}
	return doc, nil
}

func (engine *Engine) metadata(ctx context.Context, docID int64) (_ []Property, err error) {
	defer mon.Task()(&ctx)(&err)

	var properties []Property
	err = engine.exec.Query(ctx, func(row sqlexec.Scanner) error {
		var property Property
		if err := row.Scan(&property.Name, &property.Value); err != nil {
			return err
		}
		properties = append(properties, property)
		return nil
	}, `
		SELECT property_name, property_value FROM DocumentMetaData
		WHERE doc_id = ?
		ORDER BY property_name
	`, docID)
	return properties, err
}
