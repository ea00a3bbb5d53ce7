// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package eventlog

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

// Severity classifies an event. Severities other than Audit are bit flags so
// that a set of them forms a logging level.
type Severity int

// Severities as stored in EventLog.severity_id.
const (
	Audit     Severity = 0
	Exception Severity = 1
	Error     Severity = 2
	Warning   Severity = 4
	Info      Severity = 8
	Timing    Severity = 16
)

// DefaultLevel enables every severity.
const DefaultLevel = Exception | Error | Warning | Info | Timing

// String implements fmt.Stringer.
func (s Severity) String() string {
	switch s {
	case Audit:
		return "Audit"
	case Exception:
		return "Exception"
	case Error:
		return "Error"
	case Warning:
		return "Warning"
	case Info:
		return "Info"
	case Timing:
		return "Timing"
	}

	var names []string
	for _, flag := range []Severity{Exception, Error, Warning, Info, Timing} {
		if s&flag != 0 {
			names = append(names, flag.String())
		}
	}
	if len(names) == 0 {
		return "Unknown"
	}
	return strings.Join(names, ", ")
}

// ParseLevel parses a comma separated list of severity names, for example
// "Error, Warning, Audit", into a level mask.
func ParseLevel(level string) (Severity, error) {
	var result Severity
	for _, name := range strings.Split(level, ",") {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "audit":
		case "exception":
			result |= Exception
		case "error":
			result |= Error
		case "warning":
			result |= Warning
		case "info":
			result |= Info
		case "timing":
			result |= Timing
		default:
			return 0, ErrEventLog.New("unknown severity %q", strings.TrimSpace(name))
		}
	}
	return result, nil
}

// Enabled returns whether events of severity s pass the level. Audit events
// always pass.
func (level Severity) Enabled(s Severity) bool {
	return s == Audit || level&s != 0
}

// FromEntry maps a zap entry onto a severity. Entries written through a
// logger named "audit" are audit events.
func FromEntry(entry zapcore.Entry) Severity {
	if entry.LoggerName == "audit" || strings.HasSuffix(entry.LoggerName, ".audit") {
		return Audit
	}
	switch {
	case entry.Level >= zapcore.DPanicLevel:
		return Exception
	case entry.Level == zapcore.ErrorLevel:
		return Error
	case entry.Level == zapcore.WarnLevel:
		return Warning
	case entry.Level == zapcore.InfoLevel:
		return Info
	default:
		return Timing
	}
}
