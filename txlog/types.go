// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package txlog

import "strings"

// Type is the kind of mutation a transaction describes.
type Type int

// Transaction types.
const (
	TypeUnknown Type = iota
	AddDocument
	UpdateDocument
	DeleteDocument
	ArchiveDocument
)

var typeNames = map[Type]string{
	AddDocument:     "AddDocument",
	UpdateDocument:  "UpdateDocument",
	DeleteDocument:  "DeleteDocument",
	ArchiveDocument: "ArchiveDocument",
}

// String returns the stored form of the type.
func (typ Type) String() string {
	if name, ok := typeNames[typ]; ok {
		return name
	}
	return "Unknown"
}

// ParseType parses the stored form of a type. Unrecognized values yield
// TypeUnknown.
func ParseType(s string) Type {
	for typ, name := range typeNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return typ
		}
	}
	return TypeUnknown
}

// Step is the next step of a transaction. Compensation is keyed on it.
type Step int

// Transaction steps.
const (
	StepUnknown Step = iota
	InsertDocRecord
	InsertDocProperties
	StoreBLOB
	DeleteBLOB
	DeleteDocProperties
	DeleteDocRecord
	CopyBLOB
	UpdateDocRecord
)

var stepNames = map[Step]string{
	InsertDocRecord:     "InsertDocRecord",
	InsertDocProperties: "InsertDocProperties",
	StoreBLOB:           "StoreBLOB",
	DeleteBLOB:          "DeleteBLOB",
	DeleteDocProperties: "DeleteDocProperties",
	DeleteDocRecord:     "DeleteDocRecord",
	CopyBLOB:            "CopyBLOB",
	UpdateDocRecord:     "UpdateDocRecord",
}

// String returns the stored form of the step.
func (step Step) String() string {
	if name, ok := stepNames[step]; ok {
		return name
	}
	return "Unknown"
}

// ParseStep parses the stored form of a step. Unrecognized values yield
// StepUnknown.
func ParseStep(s string) Step {
	for step, name := range stepNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return step
		}
	}
	return StepUnknown
}
