// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package session_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"storj.io/blobrepo/session"
)

func TestNew(t *testing.T) {
	a, err := session.New()
	require.NoError(t, err)
	b, err := session.New()
	require.NoError(t, err)

	require.False(t, a.IsZero())
	require.NotEqual(t, a.ID, b.ID)
	require.Equal(t, a.ID.String(), a.String())
	require.True(t, session.Session{}.IsZero())
}
