// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dotnet

import "time"

// Diagnostic is one MSBuild error or warning line.
type Diagnostic struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// BuildResult is the outcome of one dotnet build invocation.
type BuildResult struct {
	Succeeded bool          `json:"succeeded"`
	Duration  time.Duration `json:"duration"`
	Errors    []Diagnostic  `json:"errors,omitempty"`
	Warnings  []Diagnostic  `json:"warnings,omitempty"`
	TimedOut  bool          `json:"timed_out,omitempty"`

	// Output is the combined stdout and stderr, kept for the fixer
	// prompt when diagnostics alone are not enough.
	Output string `json:"-"`
}

// TestCase is one executed test, extracted from the TRX report.
type TestCase struct {
	Name       string        `json:"name"`
	ClassName  string        `json:"class_name"`
	Outcome    string        `json:"outcome"`
	Duration   time.Duration `json:"duration"`
	ErrorMsg   string        `json:"error_message,omitempty"`
	StackTrace string        `json:"stack_trace,omitempty"`
}

// FullName returns ClassName.Name, or just Name for bare cases.
func (c TestCase) FullName() string {
	if c.ClassName == "" {
		return c.Name
	}
	return c.ClassName + "." + c.Name
}

// Failed reports whether the case failed.
func (c TestCase) Failed() bool { return c.Outcome == "Failed" }

// TestRunResult is the outcome of one dotnet test invocation.
type TestRunResult struct {
	Succeeded bool          `json:"succeeded"`
	Total     int           `json:"total"`
	Passed    int           `json:"passed"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration"`
	Cases     []TestCase    `json:"cases,omitempty"`
	TimedOut  bool          `json:"timed_out,omitempty"`

	Output string `json:"-"`
}

// FailedCases returns the failing cases in report order.
func (r *TestRunResult) FailedCases() []TestCase {
	var out []TestCase
	for _, c := range r.Cases {
		if c.Failed() {
			out = append(out, c)
		}
	}
	return out
}
