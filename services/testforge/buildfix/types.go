// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package buildfix

import (
	"time"

	"github.com/AleutianAI/testforge/services/testforge/dotnet"
)

// State is one node of the build-fix machine.
type State string

const (
	StatePending        State = "pending"
	StateBuilding       State = "building"
	StateBuildFailed    State = "build_failed"
	StateFixing         State = "fixing"
	StateBuildSucceeded State = "build_succeeded"
	StateTestsRunning   State = "tests_running"

	// Terminal states.
	StateTestsPassed State = "tests_passed"
	StateTestsFailed State = "tests_failed"
	StateAborted     State = "aborted"

	// StateBuildFailedMaxIterations means the fix budget ran out
	// with the build still red. Distinct from StateBuildFailed so
	// callers can tell budget exhaustion from an unfixable build.
	StateBuildFailedMaxIterations State = "build_failed_max_iterations"
)

// Terminal reports whether the machine stops in this state.
func (s State) Terminal() bool {
	switch s {
	case StateTestsPassed, StateTestsFailed, StateAborted,
		StateBuildFailed, StateBuildFailedMaxIterations:
		return true
	}
	return false
}

// BuildAttempt is one build invocation in the loop. The attempt log
// is append-only; entries are never rewritten after the fact.
type BuildAttempt struct {
	// Iteration is 0-based and strictly increasing: the first build
	// of a run is attempt 0.
	Iteration int `json:"iteration"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	Succeeded bool `json:"succeeded"`
	TimedOut  bool `json:"timed_out,omitempty"`

	// Errors are the diagnostics of this attempt, (file, line) order.
	Errors []dotnet.Diagnostic `json:"errors,omitempty"`

	// FixedFiles are the files rewritten before the next attempt.
	FixedFiles []string `json:"fixed_files,omitempty"`
}

// Outcome is the final result of one machine run.
type Outcome struct {
	State    State          `json:"state"`
	Attempts []BuildAttempt `json:"attempts"`

	// TestResult is set when the machine reached the test phase.
	TestResult *dotnet.TestRunResult `json:"test_result,omitempty"`
}

// FixRequest is one merged repair task: every diagnostic hitting the
// same file within an iteration travels in a single request.
type FixRequest struct {
	File        string              `json:"file"`
	Content     string              `json:"content"`
	Diagnostics []dotnet.Diagnostic `json:"diagnostics"`
}
