// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package gitops wraps the git command line for the clone, diff,
// stage, commit and push operations a workflow run performs.
//
// Credentials embedded in remote URLs are scrubbed from every error
// message and log line before they leave this package.
package gitops

import "errors"

var (
	// ErrInvalidInput indicates a nil or malformed argument.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPushRejected indicates the remote refused the push, usually
	// a non-fast-forward after someone else updated the branch.
	ErrPushRejected = errors.New("push rejected by remote")

	// ErrNothingToCommit indicates a commit with an empty stage.
	ErrNothingToCommit = errors.New("nothing to commit")
)
