// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package settings_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/blobrepo/private/repodbtest"
	"storj.io/blobrepo/repodb"
	"storj.io/blobrepo/settings"
	"storj.io/common/testcontext"
)

func TestService(t *testing.T) {
	repodbtest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *repodb.DB) {
		log := zaptest.NewLogger(t)
		service := settings.NewService(log, db.Executor())

		_, ok := service.GetValue(settings.DBRetries)
		require.False(t, ok)

		require.NoError(t, service.UpsertDBValue(ctx, settings.DBRetries, "5"))
		require.NoError(t, service.UpsertDBValue(ctx, settings.DBRetries, "7"))
		require.NoError(t, service.UpsertDBValue(ctx, settings.AzureDefaultContainerName, "docs"))

		value, ok := service.GetValue("dbretries")
		require.True(t, ok)
		require.Equal(t, "7", value)

		// a fresh service only sees what is stored.
		reloaded := settings.NewService(log, db.Executor())
		reloaded.SetMemValue("ConnectionString", "sqlite3://x", settings.SourceConfig)
		require.NoError(t, reloaded.Load(ctx, ""))

		values := reloaded.Values()
		require.Equal(t, []settings.Value{
			{Name: settings.AzureDefaultContainerName, Value: "docs", Source: settings.SourceDB},
			{Name: "ConnectionString", Value: "sqlite3://x", Source: settings.SourceConfig},
			{Name: settings.DBRetries, Value: "7", Source: settings.SourceDB},
		}, values)

		single := settings.NewService(log, db.Executor())
		require.NoError(t, single.Load(ctx, settings.DBRetries))
		require.Len(t, single.Values(), 1)

		require.NoError(t, service.DeleteDBValue(ctx, settings.DBRetries))
		err := service.DeleteDBValue(ctx, settings.DBRetries)
		require.True(t, settings.ErrNotFound.Has(err))

		count, err := db.Executor().Int(ctx, `SELECT COUNT(*) FROM ConfigurationSetting`)
		require.NoError(t, err)
		require.Equal(t, 1, count)
	})
}

func TestOverrides(t *testing.T) {
	service := settings.NewService(zaptest.NewLogger(t), nil)
	service.SetMemValue(settings.DBRetries, "-3", settings.SourceDB)
	service.SetMemValue(settings.AzureRetries, "many", settings.SourceDB)
	service.SetMemValue(settings.DBRetryDelay, "2", settings.SourceDB)
	service.SetMemValue(settings.AbandonedTransactionTimeout, "-45", settings.SourceDB)
	service.SetMemValue(settings.AzureDefaultContainerName, "  archive ", settings.SourceDB)

	retries := 3
	service.ApplyCount(settings.DBRetries, &retries)
	require.Equal(t, 0, retries)

	azureRetries := 3
	service.ApplyCount(settings.AzureRetries, &azureRetries)
	require.Equal(t, 3, azureRetries)

	delay := time.Second
	service.ApplyDuration(settings.DBRetryDelay, time.Second, &delay)
	require.Equal(t, 2*time.Second, delay)

	unset := time.Minute
	service.ApplyDuration(settings.AzureRetryDelay, time.Second, &unset)
	require.Equal(t, time.Minute, unset)

	backoff := 30 * time.Minute
	service.ApplyBackoff(settings.AbandonedTransactionTimeout, time.Minute, &backoff)
	require.Equal(t, 45*time.Minute, backoff)

	container := "defaultcontainer"
	service.ApplyString(settings.AzureDefaultContainerName, &container)
	require.Equal(t, "archive", container)
}
