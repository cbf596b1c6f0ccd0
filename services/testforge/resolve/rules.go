// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resolve

import (
	"path"
	"strings"
)

// MappingRule maps a source unit path to its test unit path. Rules
// are tried in order; the first match wins. A rule that does not
// apply returns ok=false so the next rule can try.
type MappingRule struct {
	// Name identifies the rule in logs and unmapped diagnostics.
	Name string

	// Map returns the test path for a source path, or ok=false.
	Map func(projects []Project, sourcePath string) (testPath string, ok bool)
}

// DefaultRules returns the standard rule chain: project-discovery
// mapping first, then the bare src/tests folder convention as a
// fallback for trees without per-layer test projects.
func DefaultRules() []MappingRule {
	return []MappingRule{
		{Name: "project-layer", Map: mapByProjectLayer},
		{Name: "src-convention", Map: mapBySrcConvention},
	}
}

// mapByProjectLayer mirrors the source unit's path inside the test
// project that covers its layer.
//
//	Application/Services/OrderService.cs
//	  -> tests/Billing.Application.Tests/Services/OrderServiceTests.cs
func mapByProjectLayer(projects []Project, sourcePath string) (string, bool) {
	proj := projectFor(projects, sourcePath)
	if proj == nil || proj.Kind != ProjectSource || !proj.Layer.Testable() {
		return "", false
	}
	testProj := testProjectForLayer(projects, proj.Layer)
	if testProj == nil {
		return "", false
	}

	norm := path.Clean(strings.ReplaceAll(sourcePath, "\\", "/"))
	var remaining string
	switch {
	case proj.Dir == ".":
		remaining = norm
	case strings.HasPrefix(strings.ToLower(norm), strings.ToLower(proj.Dir)+"/"):
		remaining = norm[len(proj.Dir)+1:]
	case strings.Contains(norm, "/"):
		remaining = norm[strings.Index(norm, "/")+1:]
	default:
		remaining = norm
	}

	return path.Join(testProj.Dir, testName(remaining)), true
}

// mapBySrcConvention applies the plain folder convention
// src/<Proj>/<rel>.cs -> tests/<Proj>.Tests/<rel>Tests.cs.
func mapBySrcConvention(_ []Project, sourcePath string) (string, bool) {
	parts := strings.Split(path.Clean(strings.ReplaceAll(sourcePath, "\\", "/")), "/")
	srcIdx := -1
	for i, p := range parts {
		if p == "src" {
			srcIdx = i
			break
		}
	}
	if srcIdx < 0 || srcIdx+2 > len(parts)-1 {
		return "", false
	}

	projName := parts[srcIdx+1]
	remaining := strings.Join(parts[srcIdx+2:], "/")
	return path.Join("tests", projName+".Tests", testName(remaining)), true
}

// testName rewrites File.cs to FileTests.cs, preserving directories.
func testName(rel string) string {
	if strings.HasSuffix(strings.ToLower(rel), ".cs") {
		return rel[:len(rel)-3] + "Tests.cs"
	}
	return rel
}
