// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package buildfix

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/AleutianAI/testforge/services/testforge/dotnet"
)

// scriptedToolchain replays canned build results in order, repeating
// the last one when the script runs out.
type scriptedToolchain struct {
	builds     []*dotnet.BuildResult
	buildCalls int
	testResult *dotnet.TestRunResult
	testCalls  int
}

func (s *scriptedToolchain) Build(context.Context) (*dotnet.BuildResult, error) {
	i := s.buildCalls
	if i >= len(s.builds) {
		i = len(s.builds) - 1
	}
	s.buildCalls++
	return s.builds[i], nil
}

func (s *scriptedToolchain) RunTests(context.Context) (*dotnet.TestRunResult, error) {
	s.testCalls++
	return s.testResult, nil
}

// recordingFixer returns fixed content and remembers what it saw.
type recordingFixer struct {
	requests []FixRequest
}

func (f *recordingFixer) Fix(_ context.Context, req FixRequest) (string, error) {
	f.requests = append(f.requests, req)
	return "// fixed\n" + req.Content, nil
}

func brokenBuild(file string, lines ...int) *dotnet.BuildResult {
	var diags []dotnet.Diagnostic
	for _, l := range lines {
		diags = append(diags, dotnet.Diagnostic{
			File: file, Line: l, Severity: "error", Code: "CS0001", Message: "boom",
		})
	}
	return &dotnet.BuildResult{Succeeded: false, Errors: diags}
}

func seedRepo(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("public class T { }\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestRunGreenPath(t *testing.T) {
	tc := &scriptedToolchain{
		builds:     []*dotnet.BuildResult{{Succeeded: true}},
		testResult: &dotnet.TestRunResult{Succeeded: true, Total: 4, Passed: 4},
	}
	m, err := NewMachine(tc, &recordingFixer{}, t.TempDir())
	if err != nil {
		t.Fatalf("NewMachine() = %v", err)
	}

	outcome, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if outcome.State != StateTestsPassed {
		t.Errorf("State = %s, want tests_passed", outcome.State)
	}
	if len(outcome.Attempts) != 1 || !outcome.Attempts[0].Succeeded {
		t.Errorf("Attempts = %+v", outcome.Attempts)
	}
	if tc.testCalls != 1 {
		t.Errorf("testCalls = %d, want 1", tc.testCalls)
	}
}

func TestRunFixThenGreen(t *testing.T) {
	root := seedRepo(t, "tests/P.Tests/OrderTests.cs")
	tc := &scriptedToolchain{
		builds: []*dotnet.BuildResult{
			brokenBuild("tests/P.Tests/OrderTests.cs", 12, 30),
			{Succeeded: true},
		},
		testResult: &dotnet.TestRunResult{Succeeded: true},
	}
	fixer := &recordingFixer{}
	m, _ := NewMachine(tc, fixer, root)

	outcome, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if outcome.State != StateTestsPassed {
		t.Fatalf("State = %s", outcome.State)
	}
	if len(outcome.Attempts) != 2 {
		t.Fatalf("Attempts = %d, want 2", len(outcome.Attempts))
	}
	if outcome.Attempts[0].Iteration != 0 || outcome.Attempts[1].Iteration != 1 {
		t.Errorf("iterations = %d, %d", outcome.Attempts[0].Iteration, outcome.Attempts[1].Iteration)
	}

	// Two diagnostics in one file merge into one fix request.
	if len(fixer.requests) != 1 {
		t.Fatalf("fix requests = %d, want 1", len(fixer.requests))
	}
	if len(fixer.requests[0].Diagnostics) != 2 {
		t.Errorf("merged diagnostics = %d, want 2", len(fixer.requests[0].Diagnostics))
	}

	fixed, err := os.ReadFile(filepath.Join(root, "tests/P.Tests/OrderTests.cs"))
	if err != nil {
		t.Fatal(err)
	}
	if string(fixed[:9]) != "// fixed\n" {
		t.Errorf("fixed file not written: %q", fixed[:9])
	}
}

func TestRunBudgetExhaustion(t *testing.T) {
	root := seedRepo(t, "tests/P.Tests/OrderTests.cs")
	tc := &scriptedToolchain{
		builds:     []*dotnet.BuildResult{brokenBuild("tests/P.Tests/OrderTests.cs", 1)},
		testResult: &dotnet.TestRunResult{Succeeded: true},
	}
	m, _ := NewMachine(tc, &recordingFixer{}, root, WithMaxIterations(3))

	outcome, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if outcome.State != StateBuildFailedMaxIterations {
		t.Errorf("State = %s, want build_failed_max_iterations", outcome.State)
	}
	// Initial build plus three fix-rebuild cycles.
	if len(outcome.Attempts) != 4 {
		t.Errorf("Attempts = %d, want maxIterations+1 = 4", len(outcome.Attempts))
	}
	// The first build of a run is attempt 0.
	for i, a := range outcome.Attempts {
		if a.Iteration != i {
			t.Errorf("Attempts[%d].Iteration = %d, want %d", i, a.Iteration, i)
		}
	}
	if tc.testCalls != 0 {
		t.Error("tests ran despite red build")
	}
}

func TestRunTestFailuresAreNeverRepaired(t *testing.T) {
	tc := &scriptedToolchain{
		builds: []*dotnet.BuildResult{{Succeeded: true}},
		testResult: &dotnet.TestRunResult{
			Succeeded: false, Total: 3, Passed: 2, Failed: 1,
		},
	}
	fixer := &recordingFixer{}
	m, _ := NewMachine(tc, fixer, t.TempDir())

	outcome, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if outcome.State != StateTestsFailed {
		t.Errorf("State = %s, want tests_failed", outcome.State)
	}
	if len(fixer.requests) != 0 {
		t.Error("fixer consulted for a test failure")
	}
	if tc.buildCalls != 1 || tc.testCalls != 1 {
		t.Errorf("buildCalls = %d, testCalls = %d, want 1 and 1", tc.buildCalls, tc.testCalls)
	}
}

func TestRunTimeoutConsumesBudget(t *testing.T) {
	root := seedRepo(t, "tests/P.Tests/OrderTests.cs")
	timedOut := brokenBuild("tests/P.Tests/OrderTests.cs", 5)
	timedOut.TimedOut = true
	tc := &scriptedToolchain{
		builds:     []*dotnet.BuildResult{timedOut},
		testResult: &dotnet.TestRunResult{Succeeded: true},
	}
	m, _ := NewMachine(tc, &recordingFixer{}, root, WithMaxIterations(2))

	outcome, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if outcome.State != StateBuildFailedMaxIterations {
		t.Errorf("State = %s", outcome.State)
	}
	if len(outcome.Attempts) != 3 {
		t.Errorf("Attempts = %d, want 3", len(outcome.Attempts))
	}
	if !outcome.Attempts[0].TimedOut {
		t.Error("first attempt not flagged TimedOut")
	}
}

func TestRunAbortsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tc := &scriptedToolchain{builds: []*dotnet.BuildResult{{Succeeded: true}}}
	m, _ := NewMachine(tc, &recordingFixer{}, t.TempDir())

	outcome, err := m.Run(ctx)
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if outcome.State != StateAborted {
		t.Errorf("State = %s, want aborted", outcome.State)
	}
	if tc.buildCalls != 0 {
		t.Error("build invoked after cancellation")
	}
}

func TestRunIsSingleUse(t *testing.T) {
	tc := &scriptedToolchain{
		builds:     []*dotnet.BuildResult{{Succeeded: true}},
		testResult: &dotnet.TestRunResult{Succeeded: true},
	}
	m, _ := NewMachine(tc, &recordingFixer{}, t.TempDir())
	if _, err := m.Run(context.Background()); err != nil {
		t.Fatalf("first Run() = %v", err)
	}
	if _, err := m.Run(context.Background()); err != ErrMachineConsumed {
		t.Errorf("second Run() = %v, want ErrMachineConsumed", err)
	}
}

func TestOutcomeSerializesToJSON(t *testing.T) {
	root := seedRepo(t, "tests/P.Tests/OrderTests.cs")
	tc := &scriptedToolchain{
		builds: []*dotnet.BuildResult{
			brokenBuild("tests/P.Tests/OrderTests.cs", 8),
			{Succeeded: true},
		},
		testResult: &dotnet.TestRunResult{Succeeded: true, Total: 1, Passed: 1},
	}
	m, _ := NewMachine(tc, &recordingFixer{}, root)
	outcome, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}

	data, err := json.Marshal(outcome)
	if err != nil {
		t.Fatalf("Marshal() = %v", err)
	}

	var decoded Outcome
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() = %v", err)
	}
	if decoded.State != StateTestsPassed || len(decoded.Attempts) != 2 {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Attempts[0].Errors[0].Code != "CS0001" {
		t.Errorf("attempt diagnostics lost in serialization")
	}
}

func TestStateTerminal(t *testing.T) {
	terminals := []State{
		StateTestsPassed, StateTestsFailed, StateAborted,
		StateBuildFailed, StateBuildFailedMaxIterations,
	}
	for _, s := range terminals {
		if !s.Terminal() {
			t.Errorf("%s.Terminal() = false", s)
		}
	}
	for _, s := range []State{StatePending, StateBuilding, StateFixing, StateTestsRunning, StateBuildSucceeded} {
		if s.Terminal() {
			t.Errorf("%s.Terminal() = true", s)
		}
	}
}
