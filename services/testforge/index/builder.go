// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package index

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/AleutianAI/testforge/services/testforge/ast"
)

// Directories that never contain indexable source.
var skippedDirs = map[string]bool{
	"bin":          true,
	"obj":          true,
	"packages":     true,
	"node_modules": true,
	".git":         true,
	".testforge":   true,
}

// Builder walks a checked-out tree and produces an Index.
//
// # Thread Safety
//
// A Builder may be reused across runs; each Build call is independent.
type Builder struct {
	parser *ast.CSharpParser
	logger *slog.Logger
}

// NewBuilder creates a builder using the given parser. A nil parser
// gets a default CSharpParser.
func NewBuilder(parser *ast.CSharpParser) *Builder {
	if parser == nil {
		parser = ast.NewCSharpParser()
	}
	return &Builder{
		parser: parser,
		logger: slog.Default().With("component", "index.Builder"),
	}
}

// Build parses every .cs unit under root into a fresh Index.
//
// # Description
//
// Walks the tree rooted at root, skipping build artifact directories,
// and parses each C# unit. A file that cannot be read or parsed
// contributes an empty entry with a recorded diagnostic; the build
// proceeds. Only context cancellation or a missing root aborts.
//
// # Inputs
//
//   - ctx: Context for cancellation, checked per file.
//   - root: Absolute path to the checked-out working tree.
//
// # Outputs
//
//   - *Index: Index over all units, never nil on success.
//   - error: Non-nil if the root cannot be walked or ctx is canceled.
func (b *Builder) Build(ctx context.Context, root string) (*Index, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: ctx must not be nil", ErrInvalidInput)
	}
	if root == "" {
		return nil, fmt.Errorf("%w: root must not be empty", ErrInvalidInput)
	}

	idx := New()
	parsed, failed := 0, 0

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".cs") {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		entry := b.buildEntry(ctx, path, rel)
		if entry.Failed {
			failed++
		} else {
			parsed++
		}
		if addErr := idx.Add(entry); addErr != nil {
			// Duplicate paths cannot happen from a single walk;
			// surface anything else.
			return addErr
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	b.logger.Info("symbol index built",
		"root", root, "units", parsed, "failed_units", failed)
	return idx, nil
}

// buildEntry parses one file, degrading to an empty entry on failure.
func (b *Builder) buildEntry(ctx context.Context, absPath, relPath string) *Entry {
	content, err := os.ReadFile(absPath)
	if err != nil {
		b.logger.Warn("could not read source unit", "path", relPath, "error", err)
		return &Entry{
			Path:       relPath,
			Failed:     true,
			Diagnostic: fmt.Sprintf("read failed: %v", err),
		}
	}

	result, err := b.parser.Parse(ctx, content, relPath)
	if err != nil {
		b.logger.Warn("could not parse source unit", "path", relPath, "error", err)
		return &Entry{
			Path:       relPath,
			Failed:     true,
			Diagnostic: fmt.Sprintf("parse failed: %v", err),
		}
	}

	return EntryFromParse(result, string(content))
}
