// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dotnet

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// MSBuild diagnostic line: file(line,col): error|warning CODE: message
var diagnosticPattern = regexp.MustCompile(`([^(]+)\((\d+),(\d+)\):\s*(error|warning)\s+(\w+):\s*(.+)`)

// ParseDiagnostics extracts errors and warnings from MSBuild output.
//
// # Description
//
// Scans each output line for the standard MSBuild diagnostic form and
// splits matches by severity. Both slices come back ordered by
// (file, line) so downstream fix requests are stable across runs.
// Duplicate lines (MSBuild repeats diagnostics per target) collapse
// to one entry.
func ParseDiagnostics(output string) (errors, warnings []Diagnostic) {
	seen := make(map[string]bool)
	for _, line := range strings.Split(output, "\n") {
		m := diagnosticPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		lineNo, _ := strconv.Atoi(m[2])
		col, _ := strconv.Atoi(m[3])
		d := Diagnostic{
			File:     strings.TrimSpace(m[1]),
			Line:     lineNo,
			Column:   col,
			Severity: m[4],
			Code:     m[5],
			Message:  strings.TrimSpace(m[6]),
		}

		key := d.File + ":" + m[2] + ":" + m[3] + ":" + d.Code
		if seen[key] {
			continue
		}
		seen[key] = true

		if d.Severity == "error" {
			errors = append(errors, d)
		} else {
			warnings = append(warnings, d)
		}
	}

	sortDiagnostics(errors)
	sortDiagnostics(warnings)
	return errors, warnings
}

func sortDiagnostics(ds []Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool {
		if ds[i].File != ds[j].File {
			return ds[i].File < ds[j].File
		}
		return ds[i].Line < ds[j].Line
	})
}

// GroupByFile buckets diagnostics per file, preserving (file, line)
// order inside each bucket. Files come back sorted so iteration is
// deterministic.
func GroupByFile(ds []Diagnostic) (files []string, byFile map[string][]Diagnostic) {
	byFile = make(map[string][]Diagnostic)
	for _, d := range ds {
		if _, ok := byFile[d.File]; !ok {
			files = append(files, d.File)
		}
		byFile[d.File] = append(byFile[d.File], d)
	}
	sort.Strings(files)
	return files, byFile
}
