// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package dotnet wraps the dotnet CLI for restore, build and test
// runs against a checked-out solution.
//
// A failed build or test run is a result, not a Go error; the error
// return is reserved for the toolchain being unusable (missing
// binary, bad working directory, canceled context).
package dotnet

import "errors"

var (
	// ErrInvalidInput indicates a nil or malformed argument.
	ErrInvalidInput = errors.New("invalid input")

	// ErrToolchainMissing indicates the dotnet binary is not on PATH.
	ErrToolchainMissing = errors.New("dotnet toolchain not found")
)
