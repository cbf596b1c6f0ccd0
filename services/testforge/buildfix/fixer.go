// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package buildfix

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/testforge/services/llm"
	"github.com/AleutianAI/testforge/services/testforge/generate"
)

// Fixer repairs one broken file. Implementations return the complete
// corrected file content.
type Fixer interface {
	Fix(ctx context.Context, req FixRequest) (string, error)
}

const fixerPreamble = `You are an expert .NET engineer fixing C# compile errors. You receive a file and the MSBuild diagnostics it produced. Fix ONLY the listed errors; do not change working code, rename members, or alter test intent.

Respond with exactly one ` + "```csharp" + ` code fence containing the complete corrected file.`

// OracleFixer sends fix requests to the LLM oracle.
type OracleFixer struct {
	oracle llm.LLMClient
	logger *slog.Logger
}

// NewOracleFixer creates a fixer backed by the given oracle.
func NewOracleFixer(oracle llm.LLMClient) (*OracleFixer, error) {
	if oracle == nil {
		return nil, fmt.Errorf("%w: oracle must not be nil", ErrInvalidInput)
	}
	return &OracleFixer{
		oracle: oracle,
		logger: slog.Default().With("component", "buildfix.OracleFixer"),
	}, nil
}

// Fix implements the Fixer interface.
func (f *OracleFixer) Fix(ctx context.Context, req FixRequest) (string, error) {
	if req.File == "" || len(req.Diagnostics) == 0 {
		return "", fmt.Errorf("%w: fix request needs a file and diagnostics", ErrInvalidInput)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n## File `%s`\n```csharp\n%s\n```\n\n## Compile Errors\n",
		fixerPreamble, req.File, strings.TrimRight(req.Content, "\n"))
	for _, d := range req.Diagnostics {
		fmt.Fprintf(&b, "- line %d, col %d: %s %s: %s\n",
			d.Line, d.Column, d.Severity, d.Code, d.Message)
	}

	reply, err := f.oracle.Generate(ctx, b.String(), llm.DeterministicParams())
	if err != nil {
		return "", fmt.Errorf("oracle fix call for %s: %w", req.File, err)
	}

	fixed, err := generate.ExtractArtifact(reply)
	if err != nil {
		return "", fmt.Errorf("extracting fix for %s: %w", req.File, err)
	}
	f.logger.Debug("fix produced", "file", req.File, "bytes", len(fixed))
	return fixed, nil
}
