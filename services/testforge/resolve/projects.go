// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resolve

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
)

// Layer is the architectural layer a project belongs to, extracted
// from its .csproj name.
type Layer string

const (
	LayerDomain         Layer = "domain"
	LayerApplication    Layer = "application"
	LayerAPI            Layer = "api"
	LayerInfrastructure Layer = "infrastructure"
	LayerUnknown        Layer = ""
)

// Testable reports whether units in this layer get generated tests.
// Only domain and application hold logic worth unit testing in
// isolation; api and infrastructure are covered elsewhere.
func (l Layer) Testable() bool {
	return l == LayerDomain || l == LayerApplication
}

// ProjectKind classifies a discovered project.
type ProjectKind string

const (
	ProjectSource  ProjectKind = "source"
	ProjectTest    ProjectKind = "test"
	ProjectSkipped ProjectKind = "skipped"
	ProjectOther   ProjectKind = "other"
)

// Project is one discovered .csproj.
type Project struct {
	// Name is the .csproj base name, e.g. "Billing.Application".
	Name string

	// Dir is the project directory relative to the repository root,
	// "." for a root-level project.
	Dir string

	Kind  ProjectKind
	Layer Layer
}

var knownLayers = []Layer{
	LayerApplication, LayerDomain, LayerAPI, LayerInfrastructure,
}

var artifactDirs = map[string]bool{
	"bin":          true,
	"obj":          true,
	"packages":     true,
	"node_modules": true,
	".git":         true,
}

// DiscoverProjects scans root for .csproj files and classifies each
// one. Project naming is the only source of truth for layer and kind;
// folder names are ignored.
func DiscoverProjects(root string) ([]Project, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: root must not be empty", ErrInvalidInput)
	}

	var projects []Project
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if artifactDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(p), ".csproj") {
			return nil
		}

		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		dir := filepath.ToSlash(filepath.Dir(rel))
		layer := extractLayer(name)
		kind := classifyProject(name, layer)

		projects = append(projects, Project{
			Name:  name,
			Dir:   dir,
			Kind:  kind,
			Layer: layer,
		})
		slog.Debug("discovered project",
			"name", name, "kind", kind, "layer", layer, "dir", dir)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s for projects: %w", root, err)
	}

	// Deterministic order regardless of filesystem iteration.
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].Dir < projects[j].Dir
	})
	return projects, nil
}

// extractLayer pulls the layer from a .csproj name. The ".Tests"
// suffix is stripped first so "Billing.Domain.Tests" resolves to the
// domain layer.
func extractLayer(name string) Layer {
	lower := strings.ToLower(name)
	for _, suffix := range []string{".tests", ".test"} {
		if strings.HasSuffix(lower, suffix) {
			lower = strings.TrimSuffix(lower, suffix)
			break
		}
	}
	for _, layer := range knownLayers {
		if strings.HasSuffix(lower, "."+string(layer)) {
			return layer
		}
	}
	return LayerUnknown
}

func classifyProject(name string, layer Layer) ProjectKind {
	lower := strings.ToLower(name)
	if strings.Contains(lower, ".tests") || strings.Contains(lower, ".test") {
		return ProjectTest
	}
	if layer == LayerAPI || layer == LayerInfrastructure {
		return ProjectSkipped
	}
	if layer.Testable() {
		return ProjectSource
	}
	return ProjectOther
}

// projectFor finds the project whose directory is the deepest prefix
// of the given unit path. Returns nil when no project contains it.
func projectFor(projects []Project, unitPath string) *Project {
	norm := strings.ToLower(filepath.ToSlash(unitPath))

	var best *Project
	bestLen := -1
	for i := range projects {
		p := &projects[i]
		if p.Dir == "." {
			if bestLen < 0 {
				best = p
				bestLen = 0
			}
			continue
		}
		prefix := strings.ToLower(p.Dir) + "/"
		if strings.HasPrefix(norm, prefix) && len(p.Dir) > bestLen {
			best = p
			bestLen = len(p.Dir)
		}
	}
	return best
}

// testProjectForLayer finds the test project covering a layer.
func testProjectForLayer(projects []Project, layer Layer) *Project {
	for i := range projects {
		if projects[i].Kind == ProjectTest && projects[i].Layer == layer {
			return &projects[i]
		}
	}
	return nil
}
