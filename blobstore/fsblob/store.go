// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

// Package fsblob implements a blob backend on top of a local directory.
// Every account is a subdirectory of the root, every container a
// subdirectory of its account.
package fsblob

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeebo/errs"

	"storj.io/blobrepo/blobstore"
)

// Error is the default fsblob error class.
var Error = errs.Class("fsblob")

// Config configures the directory backend.
type Config struct {
	Root string `help:"directory holding the blobs of the fs backend" default:"$CONFDIR/blobs"`
}

var _ blobstore.Backend = (*Store)(nil)

// Store implements a blob backend in a directory.
type Store struct {
	root string
}

// NewAt creates a blob backend in the specified directory.
func NewAt(root string) (*Store, error) {
	if root == "" {
		return nil, Error.New("root directory not configured")
	}
	if err := os.MkdirAll(filepath.Join(root, "temp"), 0700); err != nil {
		return nil, Error.Wrap(err)
	}
	return &Store{root: root}, nil
}

func (store *Store) containerPath(account blobstore.Account, container string) (string, error) {
	for _, part := range []string{account.Name, container} {
		if part == "" || part == "temp" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return "", Error.New("invalid path element %q", part)
		}
	}
	return filepath.Join(store.root, account.Name, container), nil
}

func (store *Store) blobPath(account blobstore.Account, container, name string) (string, error) {
	dir, err := store.containerPath(account, container)
	if err != nil {
		return "", err
	}
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", Error.New("invalid blob name %q", name)
	}
	return filepath.Join(dir, name), nil
}

// EnsureContainer implements blobstore.Backend.
func (store *Store) EnsureContainer(ctx context.Context, account blobstore.Account, container string) error {
	dir, err := store.containerPath(account, container)
	if err != nil {
		return err
	}
	return Error.Wrap(os.MkdirAll(dir, 0700))
}

// Put implements blobstore.Backend. The blob is written to a temporary file
// first and renamed into place once it is complete.
func (store *Store) Put(ctx context.Context, account blobstore.Account, container, name string, data []byte) (err error) {
	path, err := store.blobPath(account, container, name)
	if err != nil {
		return err
	}
	return store.commit(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// Size implements blobstore.Backend.
func (store *Store) Size(ctx context.Context, account blobstore.Account, container, name string) (int64, error) {
	path, err := store.blobPath(account, container, name)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, wrapNotExist(err)
	}
	return info.Size(), nil
}

// Get implements blobstore.Backend.
func (store *Store) Get(ctx context.Context, account blobstore.Account, container, name string) ([]byte, error) {
	path, err := store.blobPath(account, container, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wrapNotExist(err)
	}
	return data, nil
}

// Delete implements blobstore.Backend.
func (store *Store) Delete(ctx context.Context, account blobstore.Account, container, name string) error {
	path, err := store.blobPath(account, container, name)
	if err != nil {
		return err
	}
	return wrapNotExist(os.Remove(path))
}

// Copy implements blobstore.Backend. Both accounts live in the same
// directory, so no credential is needed.
func (store *Store) Copy(ctx context.Context, src blobstore.Account, srcName string, dst blobstore.Account, dstName string, container string, window time.Duration) (err error) {
	srcPath, err := store.blobPath(src, container, srcName)
	if err != nil {
		return err
	}
	dstPath, err := store.blobPath(dst, container, dstName)
	if err != nil {
		return err
	}

	source, err := os.Open(srcPath)
	if err != nil {
		return wrapNotExist(err)
	}
	defer func() { err = errs.Combine(err, Error.Wrap(source.Close())) }()

	return store.commit(dstPath, func(w io.Writer) error {
		_, err := io.Copy(w, source)
		return err
	})
}

// commit writes a temporary file with write and renames it to path.
func (store *Store) commit(path string, write func(w io.Writer) error) (err error) {
	file, err := os.CreateTemp(filepath.Join(store.root, "temp"), "blob-*.partial")
	if err != nil {
		return Error.Wrap(err)
	}
	defer func() {
		if err != nil {
			err = errs.Combine(err, Error.Wrap(os.Remove(file.Name())))
		}
	}()

	if err := write(file); err != nil {
		return errs.Combine(Error.Wrap(err), Error.Wrap(file.Close()))
	}
	if err := file.Sync(); err != nil {
		return errs.Combine(Error.Wrap(err), Error.Wrap(file.Close()))
	}
	if err := file.Close(); err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(os.Rename(file.Name(), path))
}

func wrapNotExist(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return blobstore.ErrNotFound.Wrap(err)
	}
	return Error.Wrap(err)
}
