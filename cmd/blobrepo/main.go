// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/blobrepo/peer"
	"storj.io/blobrepo/repodb"
	"storj.io/common/cfgstruct"
	"storj.io/common/fpath"
	"storj.io/common/process"

	_ "storj.io/blobrepo/private/version" // This attaches version information during release builds.
)

var (
	rootCmd = &cobra.Command{
		Use:   "blobrepo",
		Short: "Document and blob repository",
	}
	setupCmd = &cobra.Command{
		Use:         "setup",
		Short:       "Create config files",
		RunE:        cmdSetup,
		Annotations: map[string]string{"type": "setup"},
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the archive and cleanup chores",
		RunE:  cmdRun,
	}
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the database to the latest version",
		RunE:  cmdMigrate,
	}

	confDir string

	runCfg   peer.Config
	setupCfg peer.Config
)

func init() {
	defaultConfDir := fpath.ApplicationDir("storj", "blobrepo")
	cfgstruct.SetupFlag(zap.L(), rootCmd, &confDir, "config-dir", defaultConfDir, "main directory for blobrepo configuration")
	defaults := cfgstruct.DefaultsFlag(rootCmd)

	rootCmd.AddCommand(setupCmd, runCmd, migrateCmd, archiveCmd, cleanupCmd,
		documentCmd, storesCmd, settingsCmd, logCmd)
	documentCmd.AddCommand(putCmd, getCmd, deleteCmd, listCmd)
	storesCmd.AddCommand(storesAddCmd, storesListCmd)
	settingsCmd.AddCommand(settingsListCmd, settingsSetCmd, settingsDeleteCmd)
	logCmd.AddCommand(logReadCmd, logClearCmd)

	process.Bind(setupCmd, &setupCfg, defaults, cfgstruct.ConfDir(confDir), cfgstruct.SetupMode())
	for _, cmd := range []*cobra.Command{
		runCmd, migrateCmd, archiveCmd, cleanupCmd,
		putCmd, getCmd, deleteCmd, listCmd,
		storesAddCmd, storesListCmd,
		settingsListCmd, settingsSetCmd, settingsDeleteCmd,
		logReadCmd, logClearCmd,
	} {
		process.Bind(cmd, &runCfg, defaults, cfgstruct.ConfDir(confDir))
	}

	bindDocumentFlags()
	bindAdminFlags()
}

func cmdSetup(cmd *cobra.Command, args []string) (err error) {
	setupDir, err := filepath.Abs(confDir)
	if err != nil {
		return err
	}

	valid, _ := fpath.IsValidSetupDir(setupDir)
	if !valid {
		return fmt.Errorf("blobrepo configuration already exists (%v)", setupDir)
	}

	err = os.MkdirAll(setupDir, 0700)
	if err != nil {
		return err
	}

	return process.SaveConfig(cmd, filepath.Join(setupDir, "config.yaml"))
}

func cmdRun(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)
	log := zap.L()

	return withPeer(ctx, log, func(ctx context.Context, repo *peer.Peer) error {
		if !runCfg.Archive.Enabled && !runCfg.Cleanup.Enabled {
			return errs.New("neither the archive nor the cleanup chore is enabled")
		}
		return repo.Run(ctx)
	})
}

func cmdMigrate(cmd *cobra.Command, args []string) (err error) {
	ctx, _ := process.Ctx(cmd)
	log := zap.L()

	db, err := repodb.Open(ctx, log.Named("db"), runCfg.Database, runCfg.DB)
	if err != nil {
		return errs.New("Error creating database connection: %+v", err)
	}
	defer func() { err = errs.Combine(err, db.Close()) }()

	if err := db.MigrateToLatest(ctx); err != nil {
		return errs.New("Error migrating tables for database: %+v", err)
	}
	log.Info("database migrated")
	return nil
}

// withPeer opens the database, checks its version and runs fn with the
// components built on it.
func withPeer(ctx context.Context, log *zap.Logger, fn func(ctx context.Context, repo *peer.Peer) error) (err error) {
	db, err := repodb.Open(ctx, log.Named("db"), runCfg.Database, runCfg.DB)
	if err != nil {
		return errs.New("Error creating database connection: %+v", err)
	}
	defer func() { err = errs.Combine(err, db.Close()) }()

	if err := db.CheckVersion(ctx); err != nil {
		return errs.New("failed database version check, run migrate first: %+v", err)
	}

	repo, err := peer.New(ctx, log, db, runCfg)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, repo.Close()) }()

	return fn(ctx, repo)
}

func main() {
	logger, _, _ := process.NewLogger("blobrepo")
	zap.ReplaceGlobals(logger)

	process.Exec(rootCmd)
}
