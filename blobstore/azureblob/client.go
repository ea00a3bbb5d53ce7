// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package azureblob implements the blob backend for Azure Blob Storage.
package azureblob

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/blobrepo/blobstore"
)

// Error is the default azureblob errs class.
var Error = errs.Class("azureblob")

// Config configures the Azure backend.
type Config struct {
	EndpointTemplate string        `help:"service endpoint of an account, {account} is replaced with the account name" default:"https://{account}.blob.core.windows.net/"`
	CopyPollInterval time.Duration `help:"how often the state of a server-side copy is checked" default:"500ms"`
}

var _ blobstore.Backend = (*Backend)(nil)

// Backend implements blobstore.Backend with shared key authenticated clients,
// one per account.
type Backend struct {
	log    *zap.Logger
	config Config

	mu      sync.Mutex
	clients map[string]*azblob.Client
}

// New creates an Azure backend.
func New(log *zap.Logger, config Config) *Backend {
	if config.EndpointTemplate == "" {
		config.EndpointTemplate = "https://{account}.blob.core.windows.net/"
	}
	if config.CopyPollInterval <= 0 {
		config.CopyPollInterval = 500 * time.Millisecond
	}
	return &Backend{
		log:     log,
		config:  config,
		clients: map[string]*azblob.Client{},
	}
}

// client returns the client of an account, creating it on first use.
func (backend *Backend) client(account blobstore.Account) (*azblob.Client, error) {
	backend.mu.Lock()
	defer backend.mu.Unlock()

	key := account.Name + "\x00" + account.Key
	if client, ok := backend.clients[key]; ok {
		return client, nil
	}

	credential, err := azblob.NewSharedKeyCredential(account.Name, account.Key)
	if err != nil {
		return nil, Error.New("invalid credentials for account %q: %w", account.Name, err)
	}
	endpoint := strings.ReplaceAll(backend.config.EndpointTemplate, "{account}", account.Name)
	client, err := azblob.NewClientWithSharedKeyCredential(endpoint, credential, nil)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	backend.clients[key] = client
	return client, nil
}

func (backend *Backend) blob(account blobstore.Account, container, name string) (*blob.Client, error) {
	client, err := backend.client(account)
	if err != nil {
		return nil, err
	}
	return client.ServiceClient().NewContainerClient(container).NewBlobClient(name), nil
}

// EnsureContainer implements blobstore.Backend.
func (backend *Backend) EnsureContainer(ctx context.Context, account blobstore.Account, container string) error {
	client, err := backend.client(account)
	if err != nil {
		return err
	}
	_, err = client.CreateContainer(ctx, container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
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
	_, err = client.UploadBuffer(ctx, container, name, data, nil)
	return wrap(err)
}

// Size implements blobstore.Backend.
func (backend *Backend) Size(ctx context.Context, account blobstore.Account, container, name string) (int64, error) {
	client, err := backend.blob(account, container, name)
	if err != nil {
		return 0, err
	}
	props, err := client.GetProperties(ctx, nil)
	if err != nil {
		return 0, wrap(err)
	}
	if props.ContentLength == nil {
		return 0, Error.New("no content length reported for %q", name)
	}
	return *props.ContentLength, nil
}

// Get implements blobstore.Backend.
func (backend *Backend) Get(ctx context.Context, account blobstore.Account, container, name string) (_ []byte, err error) {
	client, err := backend.client(account)
	if err != nil {
		return nil, err
	}
	resp, err := client.DownloadStream(ctx, container, name, nil)
	if err != nil {
		return nil, wrap(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(resp.Body.Close())) }()

	data, err := io.ReadAll(resp.Body)
	return data, Error.Wrap(err)
}

// Delete implements blobstore.Backend.
func (backend *Backend) Delete(ctx context.Context, account blobstore.Account, container, name string) error {
	client, err := backend.blob(account, container, name)
	if err != nil {
		return err
	}
	_, err = client.Delete(ctx, &blob.DeleteOptions{
		DeleteSnapshots: to.Ptr(blob.DeleteSnapshotsOptionTypeInclude),
	})
	return wrap(err)
}

// Copy implements blobstore.Backend. The destination account copies the
// source blob through a read-only SAS URL valid from window before now to
// window after now. Copy returns once the copy is no longer pending.
func (backend *Backend) Copy(ctx context.Context, src blobstore.Account, srcName string, dst blobstore.Account, dstName string, container string, window time.Duration) error {
	source, err := backend.blob(src, container, srcName)
	if err != nil {
		return err
	}
	destination, err := backend.blob(dst, container, dstName)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	start := now.Add(-window)
	expiry := now.Add(window)
	sourceURL, err := source.GetSASURL(sas.BlobPermissions{Read: true}, expiry, &blob.GetSASURLOptions{StartTime: &start})
	if err != nil {
		return Error.New("failed to grant read access on %q: %w", srcName, err)
	}

	backend.log.Debug("starting server-side copy",
		zap.String("source account", src.Name), zap.String("destination account", dst.Name),
		zap.Time("credential expiry", expiry))

	resp, err := destination.StartCopyFromURL(ctx, sourceURL, nil)
	if err != nil {
		return wrap(err)
	}

	status := resp.CopyStatus
	for status != nil && *status == blob.CopyStatusTypePending {
		if time.Now().After(expiry) {
			return Error.New("copy of %q did not finish within the credential window", srcName)
		}

		timer := time.NewTimer(backend.config.CopyPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		props, err := destination.GetProperties(ctx, nil)
		if err != nil {
			return wrap(err)
		}
		status = props.CopyStatus
	}

	if status != nil && *status != blob.CopyStatusTypeSuccess {
		return Error.New("copy of %q ended with status %s", srcName, *status)
	}
	return nil
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return blobstore.ErrNotFound.Wrap(err)
	}
	return Error.Wrap(err)
}
