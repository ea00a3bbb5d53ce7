// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package s3blob implements the blob backend for S3 compatible storage.
//
// Every store account owns the bucket "<account>-<container>" on a shared
// endpoint. A copy between accounts runs on the server with the credentials
// of the destination account, which must be allowed to read the source
// bucket.
package s3blob

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/blobrepo/blobstore"
)

// Error is the default s3blob errs class.
var Error = errs.Class("s3blob")

// Config configures the S3 backend.
type Config struct {
	Endpoint string `help:"S3 endpoint (host:port)" default:"localhost:9000"`
	Secure   bool   `help:"use TLS for the S3 endpoint" default:"true" devDefault:"false"`
	Region   string `help:"region buckets are created in" default:""`
}

var _ blobstore.Backend = (*Backend)(nil)

// Backend implements blobstore.Backend with one minio client per account.
type Backend struct {
	log    *zap.Logger
	config Config

	mu      sync.Mutex
	clients map[string]*minio.Client
}

// New creates an S3 backend.
func New(log *zap.Logger, config Config) *Backend {
	return &Backend{
		log:     log,
		config:  config,
		clients: map[string]*minio.Client{},
	}
}

// BucketName returns the bucket holding container of account.
func BucketName(account blobstore.Account, container string) string {
	return strings.ToLower(account.Name + "-" + container)
}

func (backend *Backend) client(account blobstore.Account) (*minio.Client, error) {
	backend.mu.Lock()
	defer backend.mu.Unlock()

	key := account.Name + "\x00" + account.Key
	if client, ok := backend.clients[key]; ok {
		return client, nil
	}

	client, err := minio.New(backend.config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(account.Name, account.Key, ""),
		Secure: backend.config.Secure,
		Region: backend.config.Region,
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}

	backend.clients[key] = client
	return client, nil
}

// EnsureContainer implements blobstore.Backend.
func (backend *Backend) EnsureContainer(ctx context.Context, account blobstore.Account, container string) error {
	client, err := backend.client(account)
	if err != nil {
		return err
	}
	bucket := BucketName(account, container)

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return Error.Wrap(err)
	}
	if exists {
		return nil
	}

	err = client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: backend.config.Region})
	if err != nil {
		code := minio.ToErrorResponse(err).Code
		if code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" {
			return nil
		}
		return Error.Wrap(err)
	}
	return nil
}

// Put implements blobstore.Backend.
func (backend *Backend) Put(ctx context.Context, account blobstore.Account, container, name string, data []byte) error {
	client, err := backend.client(account)
	if err != nil {
		return err
	}
	_, err = client.PutObject(ctx, BucketName(account, container), name, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	return wrap(err)
}

// Size implements blobstore.Backend.
func (backend *Backend) Size(ctx context.Context, account blobstore.Account, container, name string) (int64, error) {
	client, err := backend.client(account)
	if err != nil {
		return 0, err
	}
	info, err := client.StatObject(ctx, BucketName(account, container), name, minio.StatObjectOptions{})
	if err != nil {
		return 0, wrap(err)
	}
	return info.Size, nil
}

// Get implements blobstore.Backend.
func (backend *Backend) Get(ctx context.Context, account blobstore.Account, container, name string) (_ []byte, err error) {
	client, err := backend.client(account)
	if err != nil {
		return nil, err
	}
	object, err := client.GetObject(ctx, BucketName(account, container), name, minio.GetObjectOptions{})
	if err != nil {
		return nil, wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(object.Close())) }()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, wrap(err)
	}
	return data, nil
}

// Delete implements blobstore.Backend. S3 does not report deleting a
// missing object, so its existence is checked first.
func (backend *Backend) Delete(ctx context.Context, account blobstore.Account, container, name string) error {
	client, err := backend.client(account)
	if err != nil {
		return err
	}
	bucket := BucketName(account, container)

	if _, err := client.StatObject(ctx, bucket, name, minio.StatObjectOptions{}); err != nil {
		return wrap(err)
	}
	return wrap(client.RemoveObject(ctx, bucket, name, minio.RemoveObjectOptions{}))
}

// Copy implements blobstore.Backend.
func (backend *Backend) Copy(ctx context.Context, src blobstore.Account, srcName string, dst blobstore.Account, dstName string, container string, window time.Duration) error {
	client, err := backend.client(dst)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, window)
	defer cancel()

	_, err = client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: BucketName(dst, container), Object: dstName},
		minio.CopySrcOptions{Bucket: BucketName(src, container), Object: srcName},
	)
	return wrap(err)
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == http.StatusNotFound {
		return blobstore.ErrNotFound.Wrap(err)
	}
	return Error.Wrap(err)
}
