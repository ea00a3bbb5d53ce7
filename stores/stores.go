// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package stores implements the blob store catalog and the store selector.
package stores

import (
	"context"
	"strings"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/blobrepo/private/sqlexec"
	"storj.io/common/memory"
)

var (
	mon = monkit.Package()

	// Error is the default stores errs class.
	Error = errs.Class("stores")
	// ErrNoStore is returned when no store qualifies for a request.
	ErrNoStore = errs.Class("no suitable store")
	// ErrNotFound is returned when a store does not exist.
	ErrNotFound = errs.Class("store not found")
)

// Tier classifies a store by access pattern.
type Tier int

const (
	// Hot stores are frequently accessed and costlier.
	Hot Tier = iota
	// Cool stores are archival and cheaper.
	Cool
)

// String returns the form the tier is stored as.
func (tier Tier) String() string {
	switch tier {
	case Hot:
		return "Hot"
	case Cool:
		return "Cool"
	default:
		return "Unknown"
	}
}

// ParseTier parses the stored form of a tier.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hot":
		return Hot, nil
	case "cool":
		return Cool, nil
	default:
		return 0, Error.New("unknown tier %q", s)
	}
}

// Set implements pflag.Value.
func (tier *Tier) Set(s string) (err error) {
	*tier, err = ParseTier(s)
	return err
}

// Type implements pflag.Value.
func (Tier) Type() string { return "stores.Tier" }

// Store is one remote storage endpoint at one tier.
type Store struct {
	ID          int64
	AccountName string
	AccountKey  string
	Tier        Tier
	Capacity    int64
	SpaceUsed   int64
	Cost        float64
}

// Free returns the remaining capacity of the store.
func (store Store) Free() int64 { return store.Capacity - store.SpaceUsed }

// Selector chooses a store for a blob.
type Selector interface {
	Select(ctx context.Context, size int64, tier Tier) (storeID int64, err error)
}

// DB is the BlobStore catalog.
type DB struct {
	log  *zap.Logger
	exec sqlexec.Executor
}

var _ Selector = (*DB)(nil)

// NewDB returns the catalog stored through exec.
func NewDB(log *zap.Logger, exec sqlexec.Executor) *DB {
	return &DB{log: log, exec: exec}
}

// Select returns the cheapest store of tier whose free capacity exceeds size,
// preferring the one with the most free capacity among equally cheap stores.
// Stores are never created on demand: when none qualifies ErrNoStore is
// returned.
func (db *DB) Select(ctx context.Context, size int64, tier Tier) (storeID int64, err error) {
	defer mon.Task()(&ctx)(&err)

	found, err := db.exec.QueryRow(ctx, []interface{}{&storeID}, `
		SELECT store_id FROM BlobStore
		WHERE tier = ? AND capacity - space_used > ?
		ORDER BY cost ASC, (capacity - space_used) DESC, store_id ASC
		LIMIT 1
	`, tier.String(), size)
	if err != nil {
		return 0, Error.Wrap(err)
	}
	if !found {
		db.log.Error("no suitable store could be found",
			zap.Stringer("size", memory.Size(size)), zap.Stringer("tier", tier))
		return 0, ErrNoStore.New("size=%d tier=%s", size, tier)
	}
	return storeID, nil
}

// Get returns the store with the given id.
func (db *DB) Get(ctx context.Context, storeID int64) (_ Store, err error) {
	defer mon.Task()(&ctx)(&err)

	var store Store
	var tier string
	found, err := db.exec.QueryRow(ctx, []interface{}{
		&store.ID, &store.AccountName, &store.AccountKey, &tier, &store.Capacity, &store.SpaceUsed, &store.Cost,
	}, `
		SELECT store_id, account_name, account_key, tier, capacity, space_used, cost
		FROM BlobStore WHERE store_id = ?
	`, storeID)
	if err != nil {
		return Store{}, Error.Wrap(err)
	}
	if !found {
		return Store{}, ErrNotFound.New("%d", storeID)
	}
	store.Tier, err = ParseTier(tier)
	return store, err
}

// List returns every store ordered by id.
func (db *DB) List(ctx context.Context) (_ []Store, err error) {
	defer mon.Task()(&ctx)(&err)

	var list []Store
	err = db.exec.Query(ctx, func(row sqlexec.Scanner) error {
		var store Store
		var tier string
		if err := row.Scan(&store.ID, &store.AccountName, &store.AccountKey, &tier, &store.Capacity, &store.SpaceUsed, &store.Cost); err != nil {
			return err
		}
		parsed, err := ParseTier(tier)
		if err != nil {
			return err
		}
		store.Tier = parsed
		list = append(list, store)
		return nil
	}, `
		SELECT store_id, account_name, account_key, tier, capacity, space_used, cost
		FROM BlobStore ORDER BY store_id
	`)
	return list, Error.Wrap(err)
}

// Add registers a store and returns its id.
func (db *DB) Add(ctx context.Context, store Store) (_ int64, err error) {
	defer mon.Task()(&ctx)(&err)

	if store.AccountName == "" {
		return 0, Error.New("account name is required")
	}
	if store.Capacity <= 0 {
		return 0, Error.New("capacity must be positive")
	}

	affected, err := db.exec.Exec(ctx, `
		INSERT INTO BlobStore (account_name, account_key, tier, capacity, space_used, cost)
		VALUES (?, ?, ?, ?, ?, ?)
	`, store.AccountName, store.AccountKey, store.Tier.String(), store.Capacity, store.SpaceUsed, store.Cost)
	if err != nil {
		return 0, Error.Wrap(err)
	}
	if affected != 1 {
		return 0, Error.New("insert affected %d rows", affected)
	}

	id, err := db.exec.Int64(ctx, `
		SELECT MAX(store_id) FROM BlobStore WHERE account_name = ? AND tier = ?
	`, store.AccountName, store.Tier.String())
	if err != nil {
		return 0, Error.Wrap(err)
	}
	return id, nil
}

// AdjustSpaceUsed adds delta to the soft space_used counter of a store. The
// counter is not reconciled with the backend and drifts when a step fails
// between a backend call and this update.
func (db *DB) AdjustSpaceUsed(ctx context.Context, storeID, delta int64) (err error) {
	defer mon.Task()(&ctx)(&err)

	affected, err := db.exec.Exec(ctx, `UPDATE BlobStore SET space_used = space_used + ? WHERE store_id = ?`, delta, storeID)
	if err != nil {
		return Error.Wrap(err)
	}
	if affected != 1 {
		return Error.New("failed to update space_used for store %d", storeID)
	}
	return nil
}
