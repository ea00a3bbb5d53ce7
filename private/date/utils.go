// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package date contains instant parsing used by the command line.
package date

import (
	"strings"
	"time"

	"github.com/zeebo/errs"
)

// Error is the default date errs class.
var Error = errs.Class("date")

// ParseInstant parses an RFC 3339 instant or a duration relative to now.
// The result is in UTC.
func ParseInstant(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if instant, err := time.Parse(time.RFC3339, value); err == nil {
		return instant.UTC(), nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return time.Time{}, Error.New("invalid instant %q: expected RFC 3339 or a duration", value)
	}
	return now.Add(duration).UTC(), nil
}

// ParseBefore parses an RFC 3339 instant or a duration counted back from
// now. "24h" and "-24h" both mean a day ago.
func ParseBefore(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if instant, err := time.Parse(time.RFC3339, value); err == nil {
		return instant.UTC(), nil
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return time.Time{}, Error.New("invalid instant %q: expected RFC 3339 or a duration", value)
	}
	if duration < 0 {
		duration = -duration
	}
	return now.Add(-duration).UTC(), nil
}

// Format formats t as RFC 3339 in UTC. The zero instant is "-".
func Format(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
