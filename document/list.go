// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package document

import (
	"context"
	"database/sql"
	"time"

	"storj.io/blobrepo/private/sqlexec"
	"storj.io/blobrepo/stores"
)

// ListItem is a row of the document listing.
type ListItem struct {
	DocID        int64
	UUID         string
	Created      time.Time
	Modified     time.Time
	ArchiveAfter time.Time
	BlobID       string
	BlobSize     int64
	BlobMD5      string
	AccountName  string
	Tier         stores.Tier
}

// List returns every stored version, optionally restricted to stores whose
// account name matches the SQL LIKE pattern accountFilter.
func (engine *Engine) List(ctx context.Context, accountFilter string) (_ []ListItem, err error) {
	defer mon.Task()(&ctx)(&err)

	query := `
		SELECT d.doc_id, d.uuid, d.created, d.modified, d.archive_after,
			d.blob_uuid, d.blob_size, d.blob_md5, s.account_name, s.tier
		FROM Document d
		JOIN BlobStore s ON s.store_id = d.store_id
	`
	var args []interface{}
	if accountFilter != "" {
		query += ` WHERE s.account_name LIKE ?`
		args = append(args, accountFilter)
	}
	query += ` ORDER BY d.doc_id`

	var items []ListItem
	err = engine.exec.Query(ctx, func(row sqlexec.Scanner) error {
		var item ListItem
		var modified sql.NullTime
		var tier string
		err := row.Scan(&item.DocID, &item.UUID, &item.Created, &modified, &item.ArchiveAfter,
			&item.BlobID, &item.BlobSize, &item.BlobMD5, &item.AccountName, &tier)
		if err != nil {
			return err
		}
		item.Created = item.Created.UTC()
		item.ArchiveAfter = item.ArchiveAfter.UTC()
		if modified.Valid {
			item.Modified = modified.Time.UTC()
		}
		item.Tier, err = stores.ParseTier(tier)
		if err != nil {
			return err
		}
		items = append(items, item)
		return nil
	}, query, args...)
	if err != nil {
		return nil, classify(Error.Wrap(err))
	}
	return items, nil
}
