// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package blobstore

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/spacemonkeygo/monkit/v3"
	"go.uber.org/zap"

	"storj.io/blobrepo/private/retry"
	"storj.io/blobrepo/stores"
	"storj.io/common/memory"
	"storj.io/common/uuid"
)

var mon = monkit.Package()

// Config configures blob access.
type Config struct {
	Backend                string        `help:"blob storage backend (azure, s3 or fs)" default:"azure" testDefault:"fs"`
	Container              string        `help:"name of the container blobs are stored in" default:"defaultcontainer"`
	Retries                int           `help:"number of times a failed blob operation is retried" default:"3" testDefault:"1"`
	RetryDelay             time.Duration `help:"delay between two attempts of a failed blob operation" default:"1s" testDefault:"10ms"`
	AccountCacheExpiration time.Duration `help:"how long store credentials are cached" default:"5m"`
	CopyCredentialWindow   time.Duration `help:"validity of the read credential granted on the source of a copy, before and after now" default:"5m"`
}

// Catalog gives access to store credentials and space accounting.
type Catalog interface {
	Get(ctx context.Context, storeID int64) (stores.Store, error)
	AdjustSpaceUsed(ctx context.Context, storeID, delta int64) error
}

// Adapter resolves store ids to backend accounts and performs blob operations
// with bounded retries.
type Adapter struct {
	log     *zap.Logger
	backend Backend
	catalog Catalog
	config  Config
	policy  retry.Policy

	// accounts caches credentials by store id, and which containers were
	// ensured to exist.
	accounts *cache.Cache
}

// NewAdapter creates a new blob adapter.
func NewAdapter(log *zap.Logger, backend Backend, catalog Catalog, config Config) *Adapter {
	if config.Container == "" {
		config.Container = "defaultcontainer"
	}
	config.Container = strings.ToLower(config.Container)
	if config.CopyCredentialWindow <= 0 {
		config.CopyCredentialWindow = 5 * time.Minute
	}
	expiration := config.AccountCacheExpiration
	if expiration <= 0 {
		expiration = cache.NoExpiration
	}

	return &Adapter{
		log:      log,
		backend:  backend,
		catalog:  catalog,
		config:   config,
		policy:   retry.Policy{Retries: config.Retries, Delay: config.RetryDelay}.Normalize(),
		accounts: cache.New(expiration, 2*expiration),
	}
}

// Container returns the container blobs are stored in.
func (adapter *Adapter) Container() string { return adapter.config.Container }

// resolve returns the account of a store and makes sure the container exists.
func (adapter *Adapter) resolve(ctx context.Context, storeID int64) (_ Account, err error) {
	defer mon.Task()(&ctx)(&err)

	key := strconv.FormatInt(storeID, 10)
	if cached, ok := adapter.accounts.Get(key); ok {
		return cached.(Account), nil
	}

	store, err := adapter.catalog.Get(ctx, storeID)
	if err != nil {
		adapter.log.Error("failed to retrieve store details", zap.Int64("store", storeID), zap.Error(err))
		return Account{}, Error.Wrap(err)
	}
	account := Account{StoreID: store.ID, Name: store.AccountName, Key: store.AccountKey}

	err = adapter.do(ctx, "ensure container", func(ctx context.Context) error {
		return adapter.backend.EnsureContainer(ctx, account, adapter.config.Container)
	})
	if err != nil {
		return Account{}, err
	}

	adapter.accounts.SetDefault(key, account)
	return account, nil
}

// do runs fn with the retry policy. Missing blobs are not retried.
func (adapter *Adapter) do(ctx context.Context, what string, fn func(ctx context.Context) error) error {
	err := adapter.policy.Do(ctx, adapter.log, what, func(ctx context.Context) error {
		err := fn(ctx)
		if ErrNotFound.Has(err) {
			return retry.Permanent(err)
		}
		return err
	})
	switch {
	case err == nil:
		return nil
	case ErrNotFound.Has(err):
		return err
	default:
		return ErrBackendUnavailable.Wrap(err)
	}
}

// Put uploads data as blob blobID into a store and accounts for its size.
func (adapter *Adapter) Put(ctx context.Context, storeID int64, blobID uuid.UUID, data []byte) (err error) {
	defer mon.Task()(&ctx)(&err)

	account, err := adapter.resolve(ctx, storeID)
	if err != nil {
		return err
	}

	log := adapter.log.With(zap.Int64("store", storeID), zap.Stringer("blob", blobID))
	log.Debug("starting upload", zap.Stringer("size", memory.Size(len(data))))

	err = adapter.do(ctx, "upload blob", func(ctx context.Context) error {
		return adapter.backend.Put(ctx, account, adapter.config.Container, blobID.String(), data)
	})
	if err != nil {
		return err
	}
	log.Debug("finished upload")
	mon.Meter("blob_bytes_uploaded").Mark(len(data))

	adapter.adjust(ctx, storeID, int64(len(data)))
	return nil
}

// Get downloads blob blobID from a store. The backend reported length is
// compared with expectedSize; a mismatch is logged and otherwise ignored.
func (adapter *Adapter) Get(ctx context.Context, storeID int64, blobID uuid.UUID, expectedSize int64) (data []byte, err error) {
	defer mon.Task()(&ctx)(&err)

	account, err := adapter.resolve(ctx, storeID)
	if err != nil {
		return nil, err
	}

	log := adapter.log.With(zap.Int64("store", storeID), zap.Stringer("blob", blobID))

	err = adapter.do(ctx, "download blob", func(ctx context.Context) error {
		size, err := adapter.backend.Size(ctx, account, adapter.config.Container, blobID.String())
		if err != nil {
			return err
		}
		if size != expectedSize {
			log.Warn("backend blob length does not match recorded length",
				zap.Int64("backend", size), zap.Int64("recorded", expectedSize))
		}

		data, err = adapter.backend.Get(ctx, account, adapter.config.Container, blobID.String())
		return err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Delete removes blob blobID from a store and accounts for its size. A blob
// that does not exist is considered deleted.
func (adapter *Adapter) Delete(ctx context.Context, storeID int64, blobID uuid.UUID) (err error) {
	defer mon.Task()(&ctx)(&err)

	account, err := adapter.resolve(ctx, storeID)
	if err != nil {
		return err
	}

	log := adapter.log.With(zap.Int64("store", storeID), zap.Stringer("blob", blobID))

	var size int64
	err = adapter.do(ctx, "delete blob", func(ctx context.Context) (err error) {
		size, err = adapter.backend.Size(ctx, account, adapter.config.Container, blobID.String())
		if err != nil {
			return err
		}
		return adapter.backend.Delete(ctx, account, adapter.config.Container, blobID.String())
	})
	if ErrNotFound.Has(err) {
		log.Warn("blob to delete does not exist")
		return nil
	}
	if err != nil {
		return err
	}

	adapter.adjust(ctx, storeID, -size)
	return nil
}

// Copy copies blob srcID of store src to blob dstID of store dst on the
// server side and accounts for its size in dst.
func (adapter *Adapter) Copy(ctx context.Context, src int64, srcID uuid.UUID, dst int64, dstID uuid.UUID) (err error) {
	defer mon.Task()(&ctx)(&err)

	srcAccount, err := adapter.resolve(ctx, src)
	if err != nil {
		return err
	}
	dstAccount, err := adapter.resolve(ctx, dst)
	if err != nil {
		return err
	}

	log := adapter.log.With(
		zap.Int64("source store", src), zap.Stringer("source blob", srcID),
		zap.Int64("destination store", dst), zap.Stringer("destination blob", dstID))

	var size int64
	err = adapter.do(ctx, "copy blob", func(ctx context.Context) (err error) {
		size, err = adapter.backend.Size(ctx, srcAccount, adapter.config.Container, srcID.String())
		if err != nil {
			return err
		}
		log.Debug("starting copy", zap.Stringer("size", memory.Size(size)))
		return adapter.backend.Copy(ctx,
			srcAccount, srcID.String(),
			dstAccount, dstID.String(),
			adapter.config.Container, adapter.config.CopyCredentialWindow)
	})
	if err != nil {
		return err
	}
	log.Debug("finished copy")

	adapter.adjust(ctx, dst, size)
	return nil
}

// adjust updates the soft space counter of a store. Failures are logged only.
func (adapter *Adapter) adjust(ctx context.Context, storeID, delta int64) {
	if err := adapter.catalog.AdjustSpaceUsed(ctx, storeID, delta); err != nil {
		adapter.log.Error("failed to update space_used", zap.Int64("store", storeID), zap.Int64("delta", delta), zap.Error(err))
	}
}
