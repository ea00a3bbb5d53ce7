// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package settings holds named string settings in memory and in the
// ConfigurationSetting table.
package settings

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/blobrepo/private/sqlexec"
)

var (
	mon = monkit.Package()

	// Error is the default settings errs class.
	Error = errs.Class("settings")
	// ErrNotFound is returned when deleting a setting that does not exist.
	ErrNotFound = errs.Class("setting not found")
)

// Sources of in-memory values.
const (
	SourceDB     = "DB"
	SourceConfig = "Config"
)

// Value is a single named setting.
type Value struct {
	Name   string
	Value  string
	Source string
}

// Service keeps the in-memory settings and persists settings in the
// ConfigurationSetting table. Names are case insensitive.
type Service struct {
	log  *zap.Logger
	exec sqlexec.Executor

	mu     sync.RWMutex
	values map[string]Value
}

// NewService creates a settings service.
func NewService(log *zap.Logger, exec sqlexec.Executor) *Service {
	return &Service{
		log:    log,
		exec:   exec,
		values: map[string]Value{},
	}
}

// Load reads the settings stored in the database into memory. An empty name
// loads every setting.
func (service *Service) Load(ctx context.Context, name string) (err error) {
	defer mon.Task()(&ctx)(&err)

	query := `SELECT setting_name, setting_value FROM ConfigurationSetting`
	var args []interface{}
	if name != "" {
		query += ` WHERE setting_name = ?`
		args = append(args, name)
	}

	err = service.exec.Query(ctx, func(row sqlexec.Scanner) error {
		var value Value
		if err := row.Scan(&value.Name, &value.Value); err != nil {
			return err
		}
		service.SetMemValue(value.Name, value.Value, SourceDB)
		return nil
	}, query, args...)
	if err != nil {
		service.log.Error("failed to read DB settings", zap.Error(err))
		return Error.Wrap(err)
	}
	return nil
}

// GetValue returns the in-memory value of the named setting.
func (service *Service) GetValue(name string) (string, bool) {
	service.mu.RLock()
	defer service.mu.RUnlock()

	value, ok := service.values[strings.ToUpper(name)]
	return value.Value, ok
}

// SetMemValue sets or adds an in-memory setting.
func (service *Service) SetMemValue(name, value, source string) {
	service.mu.Lock()
	defer service.mu.Unlock()

	key := strings.ToUpper(name)
	if existing, ok := service.values[key]; ok {
		name = existing.Name
	}
	service.values[key] = Value{Name: name, Value: value, Source: source}
}

// Values returns the in-memory settings ordered by name.
func (service *Service) Values() []Value {
	service.mu.RLock()
	defer service.mu.RUnlock()

	values := make([]Value, 0, len(service.values))
	for _, value := range service.values {
		values = append(values, value)
	}
	sort.Slice(values, func(i, k int) bool {
		return strings.ToUpper(values[i].Name) < strings.ToUpper(values[k].Name)
	})
	return values
}

// UpsertDBValue inserts or updates a setting in the database and in memory.
func (service *Service) UpsertDBValue(ctx context.Context, name, value string) (err error) {
	defer mon.Task()(&ctx)(&err)

	service.log.Named("audit").Info("upsert requested for DB setting", zap.String("name", name), zap.String("value", value))

	count, err := service.exec.Int(ctx, `SELECT COUNT(*) FROM ConfigurationSetting WHERE setting_name = ?`, name)
	if err != nil {
		return Error.Wrap(err)
	}

	var affected int64
	if count == 0 {
		affected, err = service.exec.Exec(ctx, `INSERT INTO ConfigurationSetting (setting_name, setting_value) VALUES (?, ?)`, name, value)
	} else {
		affected, err = service.exec.Exec(ctx, `UPDATE ConfigurationSetting SET setting_value = ? WHERE setting_name = ?`, value, name)
	}
	if err != nil || affected < 1 {
		service.log.Error("failed to upsert DB setting", zap.String("name", name), zap.Error(err))
		return Error.New("failed to upsert %q: %w", name, err)
	}

	service.SetMemValue(name, value, SourceDB)
	service.log.Info("upserted DB setting", zap.String("name", name), zap.String("value", value))
	return nil
}

// DeleteDBValue deletes a setting from the database. Deleting a setting that
// does not exist fails with ErrNotFound. The in-memory value is left as is
// until the next restart.
func (service *Service) DeleteDBValue(ctx context.Context, name string) (err error) {
	defer mon.Task()(&ctx)(&err)

	service.log.Named("audit").Info("delete requested for DB setting", zap.String("name", name))

	count, err := service.exec.Int(ctx, `SELECT COUNT(*) FROM ConfigurationSetting WHERE setting_name = ?`, name)
	if err != nil {
		return Error.Wrap(err)
	}
	if count == 0 {
		service.log.Warn("no matching setting found for requested delete", zap.String("name", name))
		return ErrNotFound.New("%s", name)
	}

	affected, err := service.exec.Exec(ctx, `DELETE FROM ConfigurationSetting WHERE setting_name = ?`, name)
	if err != nil || affected < 1 {
		service.log.Error("failed to delete DB setting", zap.String("name", name), zap.Error(err))
		return Error.New("failed to delete %q: %w", name, err)
	}

	service.log.Info("deleted DB setting", zap.String("name", name))
	return nil
}
