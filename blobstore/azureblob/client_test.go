// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package azureblob_test

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/blobrepo/blobstore"
	"storj.io/blobrepo/blobstore/azureblob"
	"storj.io/common/testcontext"
	"storj.io/common/testrand"
)

// azuriteAccount is the well known development account of the Azurite emulator.
var azuriteAccount = blobstore.Account{
	Name: "devstoreaccount1",
	Key:  "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==",
}

var azuriteEndpoint = flag.String("azurite-endpoint", os.Getenv("BLOBREPO_AZURITE_TEST"), "Azurite endpoint template, example: http://127.0.0.1:10000/{account}")

func TestBackend_InvalidKey(t *testing.T) {
	ctx := testcontext.New(t)

	backend := azureblob.New(zaptest.NewLogger(t), azureblob.Config{})
	err := backend.Put(ctx, blobstore.Account{Name: "account", Key: "not base64!"}, "container", "blob", []byte("data"))
	require.Error(t, err)
	require.True(t, azureblob.Error.Has(err))
	require.False(t, blobstore.ErrNotFound.Has(err))
}

func TestBackend_Azurite(t *testing.T) {
	if *azuriteEndpoint == "" {
		t.Skip("Azurite endpoint not provided, example: -azurite-endpoint=http://127.0.0.1:10000/{account} or use BLOBREPO_AZURITE_TEST environment variable.")
	}

	ctx := testcontext.New(t)
	backend := azureblob.New(zaptest.NewLogger(t), azureblob.Config{
		EndpointTemplate: *azuriteEndpoint,
		CopyPollInterval: 10 * time.Millisecond,
	})

	const container = "blobrepotest"
	require.NoError(t, backend.EnsureContainer(ctx, azuriteAccount, container))
	require.NoError(t, backend.EnsureContainer(ctx, azuriteAccount, container))

	name := testrand.UUID().String()
	data := testrand.BytesInt(1024)
	require.NoError(t, backend.Put(ctx, azuriteAccount, container, name, data))

	size, err := backend.Size(ctx, azuriteAccount, container, name)
	require.NoError(t, err)
	require.EqualValues(t, len(data), size)

	got, err := backend.Get(ctx, azuriteAccount, container, name)
	require.NoError(t, err)
	require.Equal(t, data, got)

	copied := testrand.UUID().String()
	require.NoError(t, backend.Copy(ctx, azuriteAccount, name, azuriteAccount, copied, container, 5*time.Minute))
	got, err = backend.Get(ctx, azuriteAccount, container, copied)
	require.NoError(t, err)
	require.Equal(t, data, got)

	require.NoError(t, backend.Delete(ctx, azuriteAccount, container, name))
	require.NoError(t, backend.Delete(ctx, azuriteAccount, container, copied))

	_, err = backend.Size(ctx, azuriteAccount, container, name)
	require.True(t, blobstore.ErrNotFound.Has(err))
	require.True(t, blobstore.ErrNotFound.Has(backend.Delete(ctx, azuriteAccount, container, name)))
}
