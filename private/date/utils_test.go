// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package date_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"storj.io/blobrepo/private/date"
)

func TestParseInstant(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	instant, err := date.ParseInstant("2026-04-01T00:00:00+02:00", now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 3, 31, 22, 0, 0, 0, time.UTC), instant)

	relative, err := date.ParseInstant(" 48h ", now)
	require.NoError(t, err)
	require.Equal(t, now.Add(48*time.Hour), relative)

	past, err := date.ParseInstant("-1h", now)
	require.NoError(t, err)
	require.Equal(t, now.Add(-time.Hour), past)

	_, err = date.ParseInstant("tomorrow", now)
	require.True(t, date.Error.Has(err))
}

func TestParseBefore(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, value := range []string{"24h", "-24h"} {
		before, err := date.ParseBefore(value, now)
		require.NoError(t, err)
		require.Equal(t, now.Add(-24*time.Hour), before, value)
	}

	before, err := date.ParseBefore("2026-01-01T00:00:00Z", now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), before)

	_, err = date.ParseBefore("yesterday", now)
	require.Error(t, err)
}

func TestFormat(t *testing.T) {
	require.Equal(t, "-", date.Format(time.Time{}))
	require.Equal(t, "2026-03-01T11:00:00Z",
		date.Format(time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))))
}
