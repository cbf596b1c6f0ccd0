// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package workflow runs one test-synthesis pass end to end: index the
// tree, resolve the PR's changes, generate test artifacts, drive the
// build-fix loop, and publish the result.
//
// A run owns its working tree exclusively and carries all state on the
// Run value; nothing ambient survives between runs in one process.
package workflow

import "errors"

var (
	// ErrInvalidInput indicates a nil or malformed argument.
	ErrInvalidInput = errors.New("invalid input")

	// ErrRunAborted indicates the run observed cancellation at a stage
	// boundary and stopped before publishing.
	ErrRunAborted = errors.New("run aborted")

	// ErrWorkingTreeBusy indicates another run holds the checkout.
	ErrWorkingTreeBusy = errors.New("working tree is held by another run")

	// ErrRunConsumed indicates Execute was called twice on one run.
	ErrRunConsumed = errors.New("run already executed")
)
