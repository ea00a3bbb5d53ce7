// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package s3blob_test

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/blobrepo/blobstore"
	"storj.io/blobrepo/blobstore/s3blob"
	"storj.io/common/testcontext"
	"storj.io/common/testrand"
)

var (
	s3Endpoint = flag.String("s3-endpoint", os.Getenv("BLOBREPO_S3_TEST"), "S3 endpoint for tests, example: localhost:9000")
	s3Access   = flag.String("s3-access-key", os.Getenv("BLOBREPO_S3_ACCESS_KEY"), "S3 access key for tests")
	s3Secret   = flag.String("s3-secret-key", os.Getenv("BLOBREPO_S3_SECRET_KEY"), "S3 secret key for tests")
)

func TestBucketName(t *testing.T) {
	require.Equal(t, "hotstore-defaultcontainer", s3blob.BucketName(blobstore.Account{Name: "HotStore"}, "defaultcontainer"))
}

func TestBackend(t *testing.T) {
	if *s3Endpoint == "" {
		t.Skip("S3 endpoint not provided, example: -s3-endpoint=localhost:9000 or use BLOBREPO_S3_TEST environment variable.")
	}

	ctx := testcontext.New(t)
	backend := s3blob.New(zaptest.NewLogger(t), s3blob.Config{Endpoint: *s3Endpoint})

	account := blobstore.Account{Name: *s3Access, Key: *s3Secret}
	const container = "blobrepotest"

	require.NoError(t, backend.EnsureContainer(ctx, account, container))
	require.NoError(t, backend.EnsureContainer(ctx, account, container))

	name := testrand.UUID().String()
	data := testrand.BytesInt(2048)
	require.NoError(t, backend.Put(ctx, account, container, name, data))

	size, err := backend.Size(ctx, account, container, name)
	require.NoError(t, err)
	require.EqualValues(t, len(data), size)

	got, err := backend.Get(ctx, account, container, name)
	require.NoError(t, err)
	require.Equal(t, data, got)

	copied := testrand.UUID().String()
	require.NoError(t, backend.Copy(ctx, account, name, account, copied, container, time.Minute))

	require.NoError(t, backend.Delete(ctx, account, container, name))
	require.NoError(t, backend.Delete(ctx, account, container, copied))
	require.True(t, blobstore.ErrNotFound.Has(backend.Delete(ctx, account, container, name)))
}
