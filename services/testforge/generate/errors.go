// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package generate turns resolved change records into test artifacts
// by querying an LLM oracle.
//
// Failures are isolated per file: one bad oracle response marks that
// result failed and the remaining requests still run. Results are
// cached for the lifetime of a coordinator, keyed by target path and
// a hash of the full context bundle, so retries within one run never
// pay for a second oracle call.
package generate

import "errors"

var (
	// ErrInvalidInput indicates a nil or malformed argument.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoCodeFence indicates the oracle reply held no C# code.
	ErrNoCodeFence = errors.New("no C# code fence in oracle response")

	// ErrEmptyArtifact indicates the extracted code was blank.
	ErrEmptyArtifact = errors.New("oracle produced an empty test artifact")
)
