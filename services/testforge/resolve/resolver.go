// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("testforge.resolve")

// Files that never get generated tests regardless of layer.
var nonTestableSuffixes = []string{
	".designer.cs",
	".g.cs",
	".generated.cs",
	"globalusings.cs",
	"assemblyinfo.cs",
	"program.cs",
	"startup.cs",
}

// Resolver turns raw revision diffs into a ChangeSet.
//
// # Thread Safety
//
// A Resolver is immutable after construction and safe for concurrent
// use; project discovery happens per Resolve call against the tree it
// is given.
type Resolver struct {
	rules  []MappingRule
	logger *slog.Logger
}

// NewResolver creates a resolver with the given rule chain. Nil or
// empty rules get DefaultRules.
func NewResolver(rules []MappingRule) *Resolver {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Resolver{
		rules:  rules,
		logger: slog.Default().With("component", "resolve.Resolver"),
	}
}

// Resolve classifies and maps every raw change against the tree at
// root.
//
// # Description
//
// Non-C# changes land in Other. Non-testable C# files (designer and
// generated units, GlobalUsings, AssemblyInfo) and changes in skipped
// layers land in Skipped. Changes to existing test units land in
// TestChanges. Every remaining source change either maps to exactly
// one test unit and becomes a ChangeRecord, or is surfaced in
// Unmapped with the reason. Nothing is dropped.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - root: Repository working-tree root for project discovery.
//   - changes: Raw path-level diff entries.
//   - rawDiff: Optional unified diff; hunks are attached as excerpts.
//
// # Outputs
//
//   - *ChangeSet: The resolved set, deterministic for fixed inputs.
//   - error: Non-nil on discovery failure or cancellation.
func (r *Resolver) Resolve(ctx context.Context, root string, changes []RawChange, rawDiff []byte) (*ChangeSet, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: ctx must not be nil", ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, span := tracer.Start(ctx, "Resolver.Resolve")
	defer span.End()
	span.SetAttributes(attribute.Int("resolve.raw_changes", len(changes)))

	projects, err := DiscoverProjects(root)
	if err != nil {
		return nil, err
	}

	excerpts, err := ExcerptsFromDiff(rawDiff)
	if err != nil {
		// A malformed diff costs excerpts, not the run.
		r.logger.Warn("could not parse diff for excerpts", "error", err)
		excerpts = map[string]string{}
	}

	set := &ChangeSet{}
	for _, change := range changes {
		switch {
		case !change.IsCSharp():
			set.Other = append(set.Other, change)

		case isNonTestable(change.Path):
			r.logger.Debug("non-testable unit skipped", "path", change.Path)
			set.Skipped = append(set.Skipped, change)

		default:
			r.resolveOne(root, projects, change, excerpts, set)
		}
	}

	span.SetAttributes(
		attribute.Int("resolve.records", len(set.Records)),
		attribute.Int("resolve.unmapped", len(set.Unmapped)),
	)
	r.logger.Info("change set resolved",
		"records", len(set.Records),
		"unmapped", len(set.Unmapped),
		"tests", len(set.TestChanges),
		"skipped", len(set.Skipped),
		"other", len(set.Other))
	return set, nil
}

func (r *Resolver) resolveOne(root string, projects []Project, change RawChange, excerpts map[string]string, set *ChangeSet) {
	proj := projectFor(projects, change.Path)
	if proj != nil && proj.Kind == ProjectTest {
		set.TestChanges = append(set.TestChanges, change)
		return
	}
	if proj != nil && proj.Kind == ProjectSkipped {
		r.logger.Debug("skipped layer", "path", change.Path, "project", proj.Name)
		set.Skipped = append(set.Skipped, change)
		return
	}

	for _, rule := range r.rules {
		testPath, ok := rule.Map(projects, change.Path)
		if !ok {
			continue
		}

		record := ChangeRecord{
			Path:     change.Path,
			Kind:     change.Kind,
			TestPath: testPath,
			Excerpt:  excerpts[change.Path],
		}
		if proj != nil {
			record.Project = proj.Name
			record.Layer = proj.Layer
		}
		if _, statErr := os.Stat(filepath.Join(root, filepath.FromSlash(testPath))); statErr == nil {
			record.TestExists = true
		}
		r.logger.Debug("mapped change",
			"path", change.Path, "test_path", testPath, "rule", rule.Name)
		set.Records = append(set.Records, record)
		return
	}

	reason := "no mapping rule matched"
	if proj == nil {
		reason = "no project contains this unit"
	} else if !proj.Layer.Testable() {
		reason = fmt.Sprintf("layer %q has no test project", proj.Layer)
	}
	r.logger.Warn("unmapped source change", "path", change.Path, "reason", reason)
	set.Unmapped = append(set.Unmapped, UnmappedChange{
		Path:   change.Path,
		Kind:   change.Kind,
		Reason: reason,
	})
}

func isNonTestable(p string) bool {
	lower := strings.ToLower(filepath.ToSlash(p))
	base := lower
	if i := strings.LastIndex(lower, "/"); i >= 0 {
		base = lower[i+1:]
	}
	for _, suffix := range nonTestableSuffixes {
		if strings.HasSuffix(base, suffix) {
			return true
		}
	}
	return strings.Contains(lower, "/migrations/")
}
