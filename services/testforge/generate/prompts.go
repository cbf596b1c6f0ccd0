// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package generate

import (
	"fmt"
	"strings"
)

const systemPreamble = `You are an expert .NET test engineer specializing in xUnit testing for Domain-Driven Design applications. Generate high-quality unit tests that verify behavior, not implementation.

Rules:
- Test names follow MethodName_StateUnderTest_ExpectedBehavior.
- Arrange-Act-Assert structure in every test.
- Cover happy paths, edge cases, error conditions and boundary values.
- Include ALL necessary using statements, including the namespace of the class under test. The file MUST compile.
- No placeholder comments or TODO markers.

Respond with exactly one ` + "```csharp" + ` code fence containing the complete test file.`

// buildPrompt renders the user message for a create or update.
func buildPrompt(req *Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Task: Generate tests for `%s`\n\n", req.Record.Path)

	if req.Record.Project != "" {
		fmt.Fprintf(&b, "Project: `%s` (%s layer)\n\n", req.Record.Project, req.Record.Layer)
	}

	fmt.Fprintf(&b, "### Source File\n```csharp\n%s\n```\n\n", strings.TrimRight(req.Source, "\n"))

	if req.Record.Excerpt != "" {
		fmt.Fprintf(&b, "### What Changed (unified diff)\n```diff\n%s\n```\n\n",
			strings.TrimRight(req.Record.Excerpt, "\n"))
	}

	for _, unit := range req.Related {
		fmt.Fprintf(&b, "### Related Unit `%s`\n```csharp\n%s\n```\n\n",
			unit.Path, strings.TrimRight(unit.Content, "\n"))
	}

	fmt.Fprintf(&b, "### Test File Path\n`%s`\n\n", req.Record.TestPath)

	if req.ExistingTest != "" {
		fmt.Fprintf(&b, "### Current Test File\n```csharp\n%s\n```\n\n",
			strings.TrimRight(req.ExistingTest, "\n"))
		b.WriteString("### Instructions\n" +
			"Update the test file for the source changes: add tests for new behavior, " +
			"revise tests whose expectations changed, and drop tests for removed members. " +
			"Keep every still-valid existing test. Return the complete updated file.\n")
	} else {
		b.WriteString("### Instructions\n" +
			"This unit has no tests yet. Write a complete new xUnit test file covering " +
			"its public surface.\n")
	}

	return b.String()
}
