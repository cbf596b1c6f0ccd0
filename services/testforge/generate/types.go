// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package generate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/AleutianAI/testforge/services/testforge/resolve"
)

// Action is what the coordinator does with a test unit. The variant
// set is closed: every change record maps to exactly one of these.
type Action string

const (
	// ActionCreate synthesizes a new test file for an added source.
	ActionCreate Action = "create"

	// ActionUpdate revises an existing test file after source edits.
	ActionUpdate Action = "update"

	// ActionDelete removes the test file of a deleted source. No
	// oracle involvement.
	ActionDelete Action = "delete"
)

// ActionForKind maps a change classification to its action.
func ActionForKind(kind resolve.ChangeKind) Action {
	switch kind {
	case resolve.KindDeleted:
		return ActionDelete
	case resolve.KindModified:
		return ActionUpdate
	default:
		return ActionCreate
	}
}

// ContextUnit is one supporting source unit included in the prompt.
type ContextUnit struct {
	Path    string
	Content string
}

// Request is one unit of generation work.
type Request struct {
	// Record is the resolved change driving this request.
	Record resolve.ChangeRecord

	// Source is the current content of the changed unit. Empty for
	// deletions.
	Source string

	// ExistingTest is the current test file content, when one exists.
	ExistingTest string

	// Related are supporting units for oracle context, e.g. the
	// types the changed unit references.
	Related []ContextUnit
}

// Action returns the action this request performs.
func (r *Request) Action() Action {
	if ActionForKind(r.Record.Kind) == ActionUpdate && r.ExistingTest == "" {
		// A modified source without an existing test still needs a
		// fresh file.
		return ActionCreate
	}
	return ActionForKind(r.Record.Kind)
}

// ContextHash fingerprints everything the oracle would see. Two
// requests with equal target path and equal hash are interchangeable
// within a run.
func (r *Request) ContextHash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00%s\x00",
		r.Record.Path, r.Record.Kind, r.Record.Excerpt, r.Source, r.ExistingTest)
	for _, u := range r.Related {
		fmt.Fprintf(h, "%s\x00%s\x00", u.Path, u.Content)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Result is the outcome of one request.
type Result struct {
	// TestPath is the target test unit path.
	TestPath string

	// Action is what should happen to TestPath.
	Action Action

	// Content is the synthesized test file. Empty for deletions and
	// failures.
	Content string

	// Err is the per-file failure, nil on success.
	Err error

	// CacheHit marks a result served from the run cache.
	CacheHit bool

	// Duration covers the oracle call, zero for cache hits and
	// deletions.
	Duration time.Duration
}

// Failed reports whether the request could not be served.
func (r *Result) Failed() bool { return r.Err != nil }
