// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package eventlog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field keys that map onto EventLog columns instead of the message text.
const (
	AccountKey = "account"
	ClientKey  = "client"
	SessionKey = "session"
)

// writeTimeout bounds a single insert into the event log.
const writeTimeout = 5 * time.Second

// Config configures the database event log.
type Config struct {
	Level  string `help:"comma separated severities written to the event log (Audit is always written)" default:"Exception, Error, Warning, Info, Timing"`
	DBSink bool   `help:"write log entries into the EventLog table" default:"true" testDefault:"false"`
}

// Attach tees log into the event log of db when the sink is enabled.
func (config Config) Attach(log *zap.Logger, db *DB, sessionID string) (*zap.Logger, error) {
	if !config.DBSink || db == nil || db.db == nil {
		return log, nil
	}
	level, err := ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}
	sink := NewCore(db, level).With([]zapcore.Field{zap.String(SessionKey, sessionID)})
	return log.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, sink)
	})), nil
}

// Core is a zapcore.Core that writes entries into the event log.
type Core struct {
	db     *DB
	level  Severity
	fields []zapcore.Field
}

var _ zapcore.Core = (*Core)(nil)

// NewCore returns a core writing the entries enabled by level into db.
func NewCore(db *DB, level Severity) *Core {
	return &Core{db: db, level: level}
}

// Enabled implements zapcore.LevelEnabler. Filtering happens per entry in
// Check, because audit entries are recognized by logger name.
func (core *Core) Enabled(zapcore.Level) bool { return true }

// With implements zapcore.Core.
func (core *Core) With(fields []zapcore.Field) zapcore.Core {
	clone := *core
	clone.fields = append(append([]zapcore.Field(nil), core.fields...), fields...)
	return &clone
}

// Check implements zapcore.Core.
func (core *Core) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if core.level.Enabled(FromEntry(entry)) {
		return checked.AddCore(entry, core)
	}
	return checked
}

// Write implements zapcore.Core. A failed insert is returned, so zap reports
// it on its error output.
func (core *Core) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, field := range core.fields {
		field.AddTo(enc)
	}
	for _, field := range fields {
		field.AddTo(enc)
	}

	event := Event{
		Occurred: entry.Time,
		Severity: FromEntry(entry),
		Source:   entry.LoggerName,
	}
	event.Account = takeString(enc.Fields, AccountKey)
	event.ClientDetails = takeString(enc.Fields, ClientKey)
	event.SessionID = takeString(enc.Fields, SessionKey)
	event.Message = formatMessage(entry.Message, enc.Fields)

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return core.db.Insert(ctx, event)
}

// Sync implements zapcore.Core.
func (core *Core) Sync() error { return nil }

func takeString(fields map[string]interface{}, key string) string {
	value, ok := fields[key]
	if !ok {
		return ""
	}
	delete(fields, key)
	return fmt.Sprint(value)
}

// formatMessage appends the remaining fields as sorted key=value pairs.
func formatMessage(message string, fields map[string]interface{}) string {
	if len(fields) == 0 {
		return message
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(message)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%v", key, fields[key])
	}
	return b.String()
}
