// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package devops

import (
	"fmt"
	"strings"
)

// SummaryInput feeds the PR summary comment.
type SummaryInput struct {
	TestsAdded   int
	TestsUpdated int
	TestsDeleted int
	TestsSkipped int
	TestsFailed  int

	RunTotal   int
	RunPassed  int
	RunFailed  int
	RunSkipped int

	// Unmapped lists source changes no test project could be
	// resolved for, so reviewers see why coverage gaps remain.
	Unmapped []UnmappedEntry

	FinalState string
}

// UnmappedEntry is one source change that could not be mapped to a
// test location.
type UnmappedEntry struct {
	Path   string
	Reason string
}

// BuildSummaryComment renders the markdown posted to the PR thread.
func BuildSummaryComment(in SummaryInput) string {
	status := "✅"
	if in.RunFailed > 0 || in.TestsFailed > 0 {
		status = "❌"
	}

	var b strings.Builder
	b.WriteString("## Generated Test Summary\n\n")
	b.WriteString("### Changes Made\n")
	b.WriteString("| Action | Count |\n|--------|-------|\n")
	fmt.Fprintf(&b, "| Tests Added | %d |\n", in.TestsAdded)
	fmt.Fprintf(&b, "| Tests Updated | %d |\n", in.TestsUpdated)
	fmt.Fprintf(&b, "| Tests Deleted | %d |\n", in.TestsDeleted)
	if in.TestsSkipped > 0 {
		fmt.Fprintf(&b, "| Skipped | %d |\n", in.TestsSkipped)
	}
	if in.TestsFailed > 0 {
		fmt.Fprintf(&b, "| Failed to Generate | %d |\n", in.TestsFailed)
	}

	if len(in.Unmapped) > 0 {
		b.WriteString("\n### Unmapped Changes\n")
		b.WriteString("| Path | Reason |\n|------|--------|\n")
		for _, u := range in.Unmapped {
			fmt.Fprintf(&b, "| `%s` | %s |\n", u.Path, u.Reason)
		}
	}

	fmt.Fprintf(&b, "\n### Test Results %s\n", status)
	b.WriteString("| Metric | Value |\n|--------|-------|\n")
	fmt.Fprintf(&b, "| Total Tests | %d |\n", in.RunTotal)
	fmt.Fprintf(&b, "| Passed | %d |\n", in.RunPassed)
	fmt.Fprintf(&b, "| Failed | %d |\n", in.RunFailed)
	fmt.Fprintf(&b, "| Skipped | %d |\n", in.RunSkipped)

	if in.FinalState != "" {
		fmt.Fprintf(&b, "\nFinal state: `%s`\n", in.FinalState)
	}
	return b.String()
}
