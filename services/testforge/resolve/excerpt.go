// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package resolve

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// MaxExcerptBytes bounds the hunk text attached to a record so a
// sweeping refactor cannot blow up the oracle prompt.
const MaxExcerptBytes = 16 * 1024

// ExcerptsFromDiff parses a raw unified diff and returns hunk text
// keyed by new-side file path. Paths keep repository-root form with
// the a/ and b/ prefixes stripped.
func ExcerptsFromDiff(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return map[string]string{}, nil
	}

	fileDiffs, err := diff.NewMultiFileDiffReader(strings.NewReader(string(raw))).ReadAllFiles()
	if err != nil {
		return nil, fmt.Errorf("parsing unified diff: %w", err)
	}

	excerpts := make(map[string]string, len(fileDiffs))
	for _, fd := range fileDiffs {
		key := diffPath(fd)
		if key == "" {
			continue
		}

		var b strings.Builder
		for _, hunk := range fd.Hunks {
			header := fmt.Sprintf("@@ -%d,%d +%d,%d @@\n",
				hunk.OrigStartLine, hunk.OrigLines,
				hunk.NewStartLine, hunk.NewLines)
			if b.Len()+len(header)+len(hunk.Body) > MaxExcerptBytes {
				b.WriteString("... (diff truncated)\n")
				break
			}
			b.WriteString(header)
			b.Write(hunk.Body)
		}
		excerpts[key] = b.String()
	}
	return excerpts, nil
}

// diffPath picks the surviving side of a file diff. Deletions keep
// the original path since the new side is /dev/null.
func diffPath(fd *diff.FileDiff) string {
	name := fd.NewName
	if name == "" || name == "/dev/null" {
		name = fd.OrigName
	}
	name = strings.TrimPrefix(name, "b/")
	name = strings.TrimPrefix(name, "a/")
	if name == "/dev/null" {
		return ""
	}
	return name
}
