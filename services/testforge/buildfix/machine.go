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
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/testforge/services/testforge/dotnet"
)

// DefaultMaxIterations bounds fix-rebuild cycles per run.
const DefaultMaxIterations = 10

// Toolchain is the slice of the dotnet client the machine drives.
type Toolchain interface {
	Build(ctx context.Context) (*dotnet.BuildResult, error)
	RunTests(ctx context.Context) (*dotnet.TestRunResult, error)
}

// Machine runs one build-fix-test loop over a working tree.
//
// # Description
//
// Pending -> Building -> BuildSucceeded -> TestsRunning ->
// {TestsPassed, TestsFailed}, with BuildFailed -> Fixing -> Building
// cycles bounded by the iteration budget. A machine is single-use:
// the attempt log belongs to exactly one run.
//
// # Thread Safety
//
// Not safe for concurrent use. One machine, one goroutine, one run.
type Machine struct {
	toolchain     Toolchain
	fixer         Fixer
	repoPath      string
	maxIterations int
	logger        *slog.Logger
	ran           bool
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithMaxIterations overrides the fix-iteration budget.
func WithMaxIterations(n int) MachineOption {
	return func(m *Machine) {
		if n > 0 {
			m.maxIterations = n
		}
	}
}

// NewMachine creates a machine over the given toolchain and fixer.
func NewMachine(toolchain Toolchain, fixer Fixer, repoPath string, opts ...MachineOption) (*Machine, error) {
	if toolchain == nil {
		return nil, fmt.Errorf("%w: toolchain must not be nil", ErrInvalidInput)
	}
	if fixer == nil {
		return nil, fmt.Errorf("%w: fixer must not be nil", ErrInvalidInput)
	}
	if repoPath == "" {
		return nil, fmt.Errorf("%w: repoPath must not be empty", ErrInvalidInput)
	}
	m := &Machine{
		toolchain:     toolchain,
		fixer:         fixer,
		repoPath:      repoPath,
		maxIterations: DefaultMaxIterations,
		logger:        slog.Default().With("component", "buildfix.Machine"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Run executes the machine to a terminal state.
//
// # Outputs
//
//   - *Outcome: Terminal state plus the full attempt log. Never nil
//     when error is nil; len(Attempts) <= maxIterations+1 always
//     holds.
//   - error: Non-nil only for unusable inputs or a broken toolchain.
//     Red builds and red tests are outcomes, not errors.
func (m *Machine) Run(ctx context.Context) (*Outcome, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: ctx must not be nil", ErrInvalidInput)
	}
	if m.ran {
		return nil, ErrMachineConsumed
	}
	m.ran = true

	if err := initMetrics(); err != nil {
		m.logger.Warn("metrics unavailable", "error", err)
	}

	ctx, span := tracer.Start(ctx, "Machine.Run")
	defer span.End()

	outcome := &Outcome{State: StatePending}
	fixesUsed := 0

	for {
		if ctx.Err() != nil {
			return m.finish(ctx, span, outcome, StateAborted), nil
		}

		outcome.State = StateBuilding
		iteration := len(outcome.Attempts)
		m.logger.Info("building", "iteration", iteration,
			"budget_remaining", m.maxIterations-fixesUsed)

		started := time.Now()
		result, err := m.toolchain.Build(ctx)
		if err != nil {
			return nil, fmt.Errorf("build invocation %d: %w", iteration, err)
		}

		attempt := BuildAttempt{
			Iteration: iteration,
			StartedAt: started,
			Duration:  result.Duration,
			Succeeded: result.Succeeded,
			TimedOut:  result.TimedOut,
			Errors:    result.Errors,
		}
		if buildAttempts != nil {
			buildAttempts.Add(ctx, 1, metric.WithAttributes(
				attribute.Bool("succeeded", result.Succeeded)))
		}
		if buildLatency != nil {
			buildLatency.Record(ctx, result.Duration.Seconds())
		}

		if result.Succeeded {
			outcome.Attempts = append(outcome.Attempts, attempt)
			outcome.State = StateBuildSucceeded
			break
		}

		outcome.State = StateBuildFailed
		if fixesUsed >= m.maxIterations {
			outcome.Attempts = append(outcome.Attempts, attempt)
			m.logger.Warn("fix budget exhausted",
				"iterations", fixesUsed, "errors", len(result.Errors))
			return m.finish(ctx, span, outcome, StateBuildFailedMaxIterations), nil
		}

		requests := m.mergeFixRequests(result.Errors)
		if len(requests) == 0 {
			outcome.Attempts = append(outcome.Attempts, attempt)
			m.logger.Warn("build failed with nothing fixable",
				"timed_out", result.TimedOut)
			return m.finish(ctx, span, outcome, StateBuildFailed), nil
		}

		outcome.State = StateFixing
		fixesUsed++
		attempt.FixedFiles = m.applyFixes(ctx, requests)
		outcome.Attempts = append(outcome.Attempts, attempt)

		if len(attempt.FixedFiles) == 0 {
			m.logger.Warn("no file could be repaired this iteration")
			return m.finish(ctx, span, outcome, StateBuildFailed), nil
		}
	}

	if ctx.Err() != nil {
		return m.finish(ctx, span, outcome, StateAborted), nil
	}

	outcome.State = StateTestsRunning
	m.logger.Info("running tests")
	testResult, err := m.toolchain.RunTests(ctx)
	if err != nil {
		return nil, fmt.Errorf("test invocation: %w", err)
	}
	outcome.TestResult = testResult

	// Failing tests are a verdict on the generated code; the machine
	// never loops back to repair them.
	final := StateTestsFailed
	if testResult.Succeeded {
		final = StateTestsPassed
	}
	return m.finish(ctx, span, outcome, final), nil
}

// mergeFixRequests groups diagnostics by file, one request per file.
// Diagnostics without a file (timeouts, toolchain noise) cannot be
// repaired and are dropped from the requests.
func (m *Machine) mergeFixRequests(diags []dotnet.Diagnostic) []FixRequest {
	files, byFile := dotnet.GroupByFile(diags)
	requests := make([]FixRequest, 0, len(files))
	for _, file := range files {
		if file == "" {
			continue
		}
		content, err := os.ReadFile(filepath.Join(m.repoPath, filepath.FromSlash(file)))
		if err != nil {
			m.logger.Warn("cannot read broken file", "file", file, "error", err)
			continue
		}
		requests = append(requests, FixRequest{
			File:        file,
			Content:     string(content),
			Diagnostics: byFile[file],
		})
	}
	return requests
}

// applyFixes repairs each file, returning the files actually written.
// A fixer failure on one file skips that file only.
func (m *Machine) applyFixes(ctx context.Context, requests []FixRequest) []string {
	var fixed []string
	for _, req := range requests {
		if ctx.Err() != nil {
			break
		}
		if fixRequests != nil {
			fixRequests.Add(ctx, 1)
		}
		m.logger.Info("requesting fix",
			"file", req.File, "diagnostics", len(req.Diagnostics))

		content, err := m.fixer.Fix(ctx, req)
		if err != nil {
			m.logger.Warn("fix failed", "file", req.File, "error", err)
			continue
		}
		target := filepath.Join(m.repoPath, filepath.FromSlash(req.File))
		if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
			m.logger.Warn("cannot write fixed file", "file", req.File, "error", err)
			continue
		}
		fixed = append(fixed, req.File)
	}
	return fixed
}

func (m *Machine) finish(ctx context.Context, span trace.Span, outcome *Outcome, state State) *Outcome {
	outcome.State = state
	recordOutcome(ctx, state)
	span.SetAttributes(
		attribute.String("buildfix.state", string(state)),
		attribute.Int("buildfix.attempts", len(outcome.Attempts)),
	)
	m.logger.Info("build-fix finished",
		"state", state, "attempts", len(outcome.Attempts))
	return outcome
}
