// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package devops is a minimal Azure DevOps REST client: pull-request
// metadata, changed files, and thread comments. Authentication is a
// personal access token sent as HTTP basic auth; the token never
// appears in logs or errors.
package devops

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput indicates a nil or malformed argument.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates the resource does not exist or the PAT
	// cannot see it.
	ErrNotFound = errors.New("resource not found")
)

// APIError carries a non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("azure devops api returned %d: %s", e.StatusCode, e.Body)
}
