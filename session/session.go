// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package session defines the process-scoped session identifier that groups
// transaction log and event log rows written during one process lifetime.
package session

import (
	"time"

	"github.com/zeebo/errs"

	"storj.io/common/uuid"
)

// Error is the default session errs class.
var Error = errs.Class("session")

// Session identifies one process lifetime. It is created once at startup and
// passed to every engine call.
type Session struct {
	ID      uuid.UUID
	Started time.Time
}

// New creates a session with a fresh identifier.
func New() (Session, error) {
	id, err := uuid.New()
	if err != nil {
		return Session{}, Error.Wrap(err)
	}
	return Session{ID: id, Started: time.Now().UTC()}, nil
}

// String returns the identifier in its canonical form.
func (s Session) String() string { return s.ID.String() }

// IsZero returns whether the session was never initialized.
func (s Session) IsZero() bool { return s.ID.IsZero() }
