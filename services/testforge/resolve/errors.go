// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package resolve maps pull-request file changes to the test units
// they drive.
//
// The resolver is pure: given the same project layout and the same
// raw change list it always produces the same ChangeSet. Layer
// classification comes from .csproj naming conventions only, never
// from folder names.
package resolve

import "errors"

var (
	// ErrInvalidInput indicates a nil or malformed argument.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoProjects indicates the tree holds no .csproj files.
	ErrNoProjects = errors.New("no projects discovered")
)
