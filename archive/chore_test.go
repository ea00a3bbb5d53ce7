// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package archive_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"storj.io/blobrepo/archive"
	"storj.io/common/testcontext"
)

type countingArchiver struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (archiver *countingArchiver) DoArchive(ctx context.Context) (int, error) {
	archiver.mu.Lock()
	defer archiver.mu.Unlock()
	archiver.calls++
	if archiver.err != nil {
		return 0, archiver.err
	}
	return 1, nil
}

func (archiver *countingArchiver) Calls() int {
	archiver.mu.Lock()
	defer archiver.mu.Unlock()
	return archiver.calls
}

func TestChore(t *testing.T) {
	ctx := testcontext.New(t)

	archiver := &countingArchiver{}
	chore := archive.NewChore(zaptest.NewLogger(t), archiver, archive.Config{Enabled: true, Interval: time.Hour})
	ctx.Go(func() error { return chore.Run(ctx) })
	defer ctx.Check(chore.Close)

	chore.Loop.TriggerWait()
	require.GreaterOrEqual(t, archiver.Calls(), 1)

	calls := archiver.Calls()
	chore.Loop.TriggerWait()
	require.Equal(t, calls+1, archiver.Calls())
}

func TestChore_RunOnce(t *testing.T) {
	ctx := testcontext.New(t)

	archiver := &countingArchiver{}
	chore := archive.NewChore(zaptest.NewLogger(t), archiver, archive.Config{Interval: time.Hour})

	archived, err := chore.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, archived)

	archiver.err = errors.New("store offline")
	_, err = chore.RunOnce(ctx)
	require.Error(t, err)
	require.True(t, archive.Error.Has(err))
}
