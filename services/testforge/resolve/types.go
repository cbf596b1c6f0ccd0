// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resolve

import (
	"path"
	"strings"
)

// ChangeKind classifies a file change between two revisions.
type ChangeKind string

const (
	KindAdded    ChangeKind = "added"
	KindModified ChangeKind = "modified"
	KindDeleted  ChangeKind = "deleted"
)

// RawChange is one path-level entry of a revision diff, before any
// classification or mapping.
type RawChange struct {
	Path string     `json:"path"`
	Kind ChangeKind `json:"kind"`
}

// IsCSharp reports whether the change touches a C# source unit.
func (c RawChange) IsCSharp() bool {
	return strings.EqualFold(path.Ext(c.Path), ".cs")
}

// ChangeRecord is a testable source change mapped to its test unit.
type ChangeRecord struct {
	// Path is the source unit path relative to the repository root.
	Path string `json:"path"`

	// Kind is the change classification.
	Kind ChangeKind `json:"kind"`

	// Project is the owning project name, e.g. "Billing.Domain".
	Project string `json:"project"`

	// Layer is the project's architectural layer.
	Layer Layer `json:"layer"`

	// TestPath is the mapped test unit path.
	TestPath string `json:"test_path"`

	// TestExists reports whether TestPath already exists in the tree.
	TestExists bool `json:"test_exists"`

	// Excerpt is the unified-diff hunk text for this unit, when a
	// raw diff was supplied. Oracle context only.
	Excerpt string `json:"excerpt,omitempty"`
}

// UnmappedChange is a source change the resolver could not map to a
// test unit. Surfaced in the ChangeSet so callers can report it; a
// mapping failure is never silently dropped.
type UnmappedChange struct {
	Path   string     `json:"path"`
	Kind   ChangeKind `json:"kind"`
	Reason string     `json:"reason"`
}

// ChangeSet is the resolver output for one revision pair.
type ChangeSet struct {
	// Records are the testable source changes, in input order.
	Records []ChangeRecord `json:"records"`

	// Unmapped are source changes with no resolvable test unit.
	Unmapped []UnmappedChange `json:"unmapped,omitempty"`

	// TestChanges are changes to files that are already tests.
	TestChanges []RawChange `json:"test_changes,omitempty"`

	// Skipped are C# changes in non-testable layers or files.
	Skipped []RawChange `json:"skipped,omitempty"`

	// Other are non-C# changes, carried for reporting.
	Other []RawChange `json:"other,omitempty"`
}

// Empty reports whether the set contains no testable records.
func (s *ChangeSet) Empty() bool {
	return len(s.Records) == 0
}
