// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package buildfix drives the build, fix, retry loop over a tree that
// just received generated tests.
//
// The loop is an explicit state machine. Compile errors are repaired
// by sending each broken file with its merged diagnostics to the
// oracle, bounded by a fix-iteration budget. Test failures are never
// repaired; a red test is signal, not noise.
package buildfix

import "errors"

var (
	// ErrInvalidInput indicates a nil or malformed argument.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMachineConsumed indicates a second Run on the same machine.
	ErrMachineConsumed = errors.New("state machine already ran")
)
