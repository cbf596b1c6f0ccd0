// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package index provides the per-run symbol index over parsed C# units.
//
// The index holds one Entry per source unit, keyed by repository-relative
// path. It is built once per workflow run from the checked-out tree and
// is read-only afterward. A file that fails structural parsing degrades
// to an empty entry plus a recorded diagnostic; a single malformed file
// never aborts indexing.
//
// # Ownership Model
//
// Entries are immutable after Build returns. The index stores pointers
// for memory efficiency; callers MUST NOT mutate returned entries.
//
// # Thread Safety
//
// Index is safe for concurrent use after Build completes.
package index

import "errors"

// Sentinel errors for index operations.
var (
	// ErrInvalidInput is returned when a required argument is missing.
	ErrInvalidInput = errors.New("invalid input")

	// ErrEntryNotFound is returned when no entry exists for a path.
	ErrEntryNotFound = errors.New("index entry not found")

	// ErrDuplicateEntry is returned when adding a path that already
	// has an entry.
	ErrDuplicateEntry = errors.New("duplicate index entry")
)
