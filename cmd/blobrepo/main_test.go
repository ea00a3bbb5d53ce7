// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"storj.io/blobrepo/document"
)

func TestParseMetadata(t *testing.T) {
	properties, err := parseMetadata([]string{"author=alice", "note=a=b", "empty="})
	require.NoError(t, err)
	require.Equal(t, []document.Property{
		{Name: "author", Value: "alice"},
		{Name: "note", Value: "a=b"},
		{Name: "empty", Value: ""},
	}, properties)

	_, err = parseMetadata([]string{"novalue"})
	require.Error(t, err)
	_, err = parseMetadata([]string{"=value"})
	require.Error(t, err)
}
