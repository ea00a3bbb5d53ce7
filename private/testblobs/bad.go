// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package testblobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"storj.io/blobrepo/blobstore"
)

// Operations of a blob backend that can be made to fail.
const (
	OpEnsure = "ensure"
	OpPut    = "put"
	OpSize   = "size"
	OpGet    = "get"
	OpDelete = "delete"
	OpCopy   = "copy"
)

// BadBackend implements a bad blob backend.
type BadBackend struct {
	backend blobstore.Backend
	log     *zap.Logger

	mu    sync.Mutex
	err   error
	errs  map[string]error
	calls map[string]int
}

var _ blobstore.Backend = (*BadBackend)(nil)

// NewBadBackend creates a new bad blob backend wrapping the provided backend.
// Use SetError and SetOpError to configure the returned errors.
func NewBadBackend(log *zap.Logger, backend blobstore.Backend) *BadBackend {
	return &BadBackend{
		backend: backend,
		log:     log,
		errs:    map[string]error{},
		calls:   map[string]int{},
	}
}

// SetError sets an error to be returned for all operations.
func (bad *BadBackend) SetError(err error) {
	bad.mu.Lock()
	defer bad.mu.Unlock()
	bad.err = err
}

// SetOpError sets an error to be returned by a single operation. A nil err
// clears it.
func (bad *BadBackend) SetOpError(op string, err error) {
	bad.mu.Lock()
	defer bad.mu.Unlock()
	if err == nil {
		delete(bad.errs, op)
		return
	}
	bad.errs[op] = err
}

// Calls returns how many times op was called, including failed calls.
func (bad *BadBackend) Calls(op string) int {
	bad.mu.Lock()
	defer bad.mu.Unlock()
	return bad.calls[op]
}

func (bad *BadBackend) check(op string) error {
	bad.mu.Lock()
	defer bad.mu.Unlock()

	bad.calls[op]++
	if err, ok := bad.errs[op]; ok {
		bad.log.Debug("injecting error", zap.String("op", op), zap.Error(err))
		return err
	}
	return bad.err
}

// EnsureContainer creates the container when it does not exist.
func (bad *BadBackend) EnsureContainer(ctx context.Context, account blobstore.Account, container string) error {
	if err := bad.check(OpEnsure); err != nil {
		return err
	}
	return bad.backend.EnsureContainer(ctx, account, container)
}

// Put stores a blob.
func (bad *BadBackend) Put(ctx context.Context, account blobstore.Account, container, name string, data []byte) error {
	if err := bad.check(OpPut); err != nil {
		return err
	}
	return bad.backend.Put(ctx, account, container, name, data)
}

// Size returns the length of a blob.
func (bad *BadBackend) Size(ctx context.Context, account blobstore.Account, container, name string) (int64, error) {
	if err := bad.check(OpSize); err != nil {
		return 0, err
	}
	return bad.backend.Size(ctx, account, container, name)
}

// Get downloads a blob.
func (bad *BadBackend) Get(ctx context.Context, account blobstore.Account, container, name string) ([]byte, error) {
	if err := bad.check(OpGet); err != nil {
		return nil, err
	}
	return bad.backend.Get(ctx, account, container, name)
}

// Delete removes a blob.
func (bad *BadBackend) Delete(ctx context.Context, account blobstore.Account, container, name string) error {
	if err := bad.check(OpDelete); err != nil {
		return err
	}
	return bad.backend.Delete(ctx, account, container, name)
}

// Copy copies a blob between accounts.
func (bad *BadBackend) Copy(ctx context.Context, src blobstore.Account, srcName string, dst blobstore.Account, dstName string, container string, window time.Duration) error {
	if err := bad.check(OpCopy); err != nil {
		return err
	}
	return bad.backend.Copy(ctx, src, srcName, dst, dstName, container, window)
}
