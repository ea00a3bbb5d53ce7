// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package blobstore implements access to blobs held by the stores of the
// catalog.
package blobstore

import (
	"context"
	"time"

	"github.com/zeebo/errs"
)

var (
	// Error is the default blobstore errs class.
	Error = errs.Class("blobstore")
	// ErrNotFound is returned when a blob does not exist.
	ErrNotFound = errs.Class("blob not found")
	// ErrBackendUnavailable is returned when the retries of a backend call
	// are exhausted.
	ErrBackendUnavailable = errs.Class("blob backend unavailable")
)

// Account holds the credentials of the store a blob lives in.
type Account struct {
	StoreID int64
	Name    string
	Key     string
}

// Backend is a blob storage provider. Every call is a single attempt, the
// Adapter takes care of retrying. Missing blobs are reported with an error of
// class ErrNotFound.
type Backend interface {
	// EnsureContainer creates the container when it does not exist.
	EnsureContainer(ctx context.Context, account Account, container string) error
	// Put stores data under name, replacing any existing blob.
	Put(ctx context.Context, account Account, container, name string, data []byte) error
	// Size returns the length of a blob as reported by the backend.
	Size(ctx context.Context, account Account, container, name string) (int64, error)
	// Get downloads a blob.
	Get(ctx context.Context, account Account, container, name string) ([]byte, error)
	// Delete removes a blob including its snapshots.
	Delete(ctx context.Context, account Account, container, name string) error
	// Copy copies a blob between accounts without passing its content
	// through this process. Credentials granted for the source are valid for
	// window around now.
	Copy(ctx context.Context, src Account, srcName string, dst Account, dstName string, container string, window time.Duration) error
}
