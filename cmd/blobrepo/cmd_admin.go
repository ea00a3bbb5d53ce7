// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/blobrepo/peer"
	"storj.io/blobrepo/private/date"
	"storj.io/blobrepo/stores"
	"storj.io/common/memory"
	"storj.io/common/process"
)

var (
	archiveCmd = &cobra.Command{
		Use:   "archive",
		Short: "Move every document past its archive instant to a cool store once",
		Args:  cobra.NoArgs,
		RunE:  cmdArchive,
	}
	cleanupCmd = &cobra.Command{
		Use:   "cleanup",
		Short: "Compensate abandoned transactions once",
		Args:  cobra.NoArgs,
		RunE:  cmdCleanup,
	}

	storesCmd = &cobra.Command{
		Use:   "stores",
		Short: "Manage the blob store catalog",
	}
	storesAddCmd = &cobra.Command{
		Use:   "add [account name]",
		Short: "Register a blob store",
		Args:  cobra.ExactArgs(1),
		RunE:  cmdStoresAdd,
	}
	storesListCmd = &cobra.Command{
		Use:   "list",
		Short: "List the registered blob stores",
		Args:  cobra.NoArgs,
		RunE:  cmdStoresList,
	}

	settingsCmd = &cobra.Command{
		Use:   "settings",
		Short: "Manage configuration settings stored in the database",
	}
	settingsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List the settings in effect",
		Args:  cobra.NoArgs,
		RunE:  cmdSettingsList,
	}
	settingsSetCmd = &cobra.Command{
		Use:   "set [name] [value]",
		Short: "Insert or update a setting",
		Args:  cobra.ExactArgs(2),
		RunE:  cmdSettingsSet,
	}
	settingsDeleteCmd = &cobra.Command{
		Use:   "delete [name]",
		Short: "Delete a setting",
		Args:  cobra.ExactArgs(1),
		RunE:  cmdSettingsDelete,
	}

	logCmd = &cobra.Command{
		Use:   "log",
		Short: "Read and clear the event log",
	}
	logReadCmd = &cobra.Command{
		Use:   "read",
		Short: "Print the events of a period",
		Args:  cobra.NoArgs,
		RunE:  cmdLogRead,
	}
	logClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Delete the events older than an instant",
		Args:  cobra.NoArgs,
		RunE:  cmdLogClear,
	}

	storeOpts struct {
		key      string
		tier     stores.Tier
		capacity memory.Size
		cost     float64
	}
	logOpts struct {
		since  time.Duration
		before string
	}
)

func bindAdminFlags() {
	storeOpts.tier = stores.Hot
	storesAddCmd.Flags().StringVar(&storeOpts.key, "key", "", "account key of the store")
	storesAddCmd.Flags().Var(&storeOpts.tier, "tier", "tier of the store (Hot or Cool)")
	storesAddCmd.Flags().Var(&storeOpts.capacity, "capacity", "capacity of the store, e.g. 500GB")
	storesAddCmd.Flags().Float64Var(&storeOpts.cost, "cost", 0, "relative cost of the store, lower is preferred")

	logReadCmd.Flags().DurationVar(&logOpts.since, "since", 24*time.Hour, "how far back events are printed")
	logClearCmd.Flags().StringVar(&logOpts.before, "before", "", "RFC 3339 instant, or duration before now, events are deleted up to; everything when empty")
}

func cmdArchive(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)

	return withPeer(ctx, zap.L(), func(ctx context.Context, repo *peer.Peer) error {
		archived, err := repo.Archive.RunOnce(ctx)
		fmt.Printf("archived %d documents\n", archived)
		return err
	})
}

func cmdCleanup(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)

	return withPeer(ctx, zap.L(), func(ctx context.Context, repo *peer.Peer) error {
		compensated, err := repo.Cleanup.RunOnce(ctx)
		fmt.Printf("compensated %d transactions\n", compensated)
		return err
	})
}

func cmdStoresAdd(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)

	return withPeer(ctx, zap.L(), func(ctx context.Context, repo *peer.Peer) error {
		id, err := repo.Stores.Add(ctx, stores.Store{
			AccountName: args[0],
			AccountKey:  storeOpts.key,
			Tier:        storeOpts.tier,
			Capacity:    storeOpts.capacity.Int64(),
			Cost:        storeOpts.cost,
		})
		if err != nil {
			return err
		}
		fmt.Printf("added store %d\n", id)
		return nil
	})
}

func cmdStoresList(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)

	return withPeer(ctx, zap.L(), func(ctx context.Context, repo *peer.Peer) (err error) {
		list, err := repo.Stores.List(ctx)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		defer func() { err = errs.Combine(err, tw.Flush()) }()

		_, _ = fmt.Fprintln(tw, "ID\tACCOUNT\tTIER\tCAPACITY\tUSED\tFREE\tCOST")
		for _, store := range list {
			_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%g\n",
				store.ID, store.AccountName, store.Tier,
				memory.Size(store.Capacity), memory.Size(store.SpaceUsed), memory.Size(store.Free()), store.Cost)
		}
		return nil
	})
}

func cmdSettingsList(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)

	return withPeer(ctx, zap.L(), func(ctx context.Context, repo *peer.Peer) (err error) {
		tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		defer func() { err = errs.Combine(err, tw.Flush()) }()

		_, _ = fmt.Fprintln(tw, "NAME\tVALUE\tSOURCE")
		for _, value := range repo.Settings.Values() {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", value.Name, value.Value, value.Source)
		}
		return nil
	})
}

func cmdSettingsSet(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)

	return withPeer(ctx, zap.L(), func(ctx context.Context, repo *peer.Peer) error {
		return repo.Settings.UpsertDBValue(ctx, args[0], args[1])
	})
}

func cmdSettingsDelete(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)

	return withPeer(ctx, zap.L(), func(ctx context.Context, repo *peer.Peer) error {
		return repo.Settings.DeleteDBValue(ctx, args[0])
	})
}

func cmdLogRead(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)

	return withPeer(ctx, zap.L(), func(ctx context.Context, repo *peer.Peer) error {
		now := time.Now()
		events, err := repo.EventLog.Read(ctx, now.Add(-logOpts.since), now)
		if err != nil {
			return err
		}
		for _, event := range events {
			fmt.Println(event.String())
		}
		return nil
	})
}

func cmdLogClear(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)

	var before time.Time
	if logOpts.before != "" {
		before, err = date.ParseBefore(logOpts.before, time.Now())
		if err != nil {
			return err
		}
	}

	return withPeer(ctx, zap.L(), func(ctx context.Context, repo *peer.Peer) error {
		deleted, err := repo.EventLog.Clear(ctx, before)
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d events\n", deleted)
		return nil
	})
}
