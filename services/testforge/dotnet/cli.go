// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dotnet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("testforge.dotnet")

const (
	DefaultRestoreTimeout = 5 * time.Minute
	DefaultBuildTimeout   = 10 * time.Minute
	DefaultTestTimeout    = 10 * time.Minute
)

// Client runs dotnet CLI operations against one repository root.
//
// # Thread Safety
//
// All methods are safe for concurrent use, though build and test runs
// against the same tree should not overlap.
type Client struct {
	repoPath       string
	resultsDir     string
	restoreTimeout time.Duration
	buildTimeout   time.Duration
	testTimeout    time.Duration
	logger         *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBuildTimeout overrides the build timeout.
func WithBuildTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.buildTimeout = d
		}
	}
}

// WithTestTimeout overrides the test-run timeout.
func WithTestTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.testTimeout = d
		}
	}
}

// NewClient creates a dotnet client rooted at repoPath.
func NewClient(repoPath string, opts ...ClientOption) (*Client, error) {
	if !filepath.IsAbs(repoPath) {
		return nil, fmt.Errorf("%w: repoPath must be absolute: %s", ErrInvalidInput, repoPath)
	}
	c := &Client{
		repoPath:       repoPath,
		resultsDir:     filepath.Join(repoPath, "TestResults"),
		restoreTimeout: DefaultRestoreTimeout,
		buildTimeout:   DefaultBuildTimeout,
		testTimeout:    DefaultTestTimeout,
		logger:         slog.Default().With("component", "dotnet.Client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// run executes dotnet with a timeout and returns the combined output.
func (c *Client) run(ctx context.Context, timeout time.Duration, args ...string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "dotnet", args...)
	cmd.Dir = c.repoPath

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	timedOut := ctx.Err() == context.DeadlineExceeded
	if err != nil && errors.Is(err, exec.ErrNotFound) {
		return buf.String(), false, fmt.Errorf("%w: %v", ErrToolchainMissing, err)
	}
	return buf.String(), timedOut, err
}

// Restore runs dotnet restore for the whole tree.
func (c *Client) Restore(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "dotnet.Restore")
	defer span.End()

	c.logger.Info("restoring packages", "repo", c.repoPath)
	out, timedOut, err := c.run(ctx, c.restoreTimeout, "restore")
	if timedOut {
		return fmt.Errorf("dotnet restore timed out after %v", c.restoreTimeout)
	}
	if err != nil {
		if errors.Is(err, ErrToolchainMissing) {
			return err
		}
		return fmt.Errorf("dotnet restore failed: %w: %s", err, tail(out, 2048))
	}
	return nil
}

// Build builds the tree in Debug configuration.
//
// # Description
//
// Runs `dotnet build -c Debug --no-restore` and parses MSBuild
// diagnostics from the output. A compile failure is reported in the
// result, not the error; a timeout yields a failed result flagged
// TimedOut. Only a broken toolchain produces a non-nil error.
func (c *Client) Build(ctx context.Context) (*BuildResult, error) {
	ctx, span := tracer.Start(ctx, "dotnet.Build")
	defer span.End()

	start := time.Now()
	out, timedOut, runErr := c.run(ctx, c.buildTimeout, "build", "-c", "Debug", "--no-restore")
	duration := time.Since(start)

	if runErr != nil && errors.Is(runErr, ErrToolchainMissing) {
		return nil, runErr
	}

	buildErrors, warnings := ParseDiagnostics(out)
	result := &BuildResult{
		Succeeded: runErr == nil && !timedOut,
		Duration:  duration,
		Errors:    buildErrors,
		Warnings:  warnings,
		TimedOut:  timedOut,
		Output:    out,
	}
	if timedOut {
		result.Errors = append(result.Errors, Diagnostic{
			Severity: "error",
			Code:     "TIMEOUT",
			Message:  fmt.Sprintf("build timed out after %v", c.buildTimeout),
		})
	}

	span.SetAttributes(
		attribute.Bool("dotnet.build.succeeded", result.Succeeded),
		attribute.Int("dotnet.build.errors", len(result.Errors)),
	)
	c.logger.Info("build finished",
		"succeeded", result.Succeeded,
		"errors", len(result.Errors),
		"warnings", len(result.Warnings),
		"duration", duration)
	return result, nil
}

// RunTests executes dotnet test with a TRX logger and parses the
// freshest report.
//
// # Description
//
// Test projects are discovered first; a tree with no xUnit projects
// yields an empty successful result since there is nothing to run.
// Test failures are reported in the result. A timeout yields a failed
// result flagged TimedOut.
func (c *Client) RunTests(ctx context.Context) (*TestRunResult, error) {
	ctx, span := tracer.Start(ctx, "dotnet.RunTests")
	defer span.End()

	projects, err := c.DiscoverTestProjects()
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		c.logger.Warn("no xUnit test projects found, nothing to run")
		return &TestRunResult{Succeeded: true}, nil
	}

	start := time.Now()
	out, timedOut, runErr := c.run(ctx, c.testTimeout,
		"test",
		"--no-build",
		"--logger", "trx",
		"--results-directory", c.resultsDir,
	)
	duration := time.Since(start)

	if runErr != nil && errors.Is(runErr, ErrToolchainMissing) {
		return nil, runErr
	}

	result := &TestRunResult{
		Succeeded: runErr == nil && !timedOut,
		Duration:  duration,
		TimedOut:  timedOut,
		Output:    out,
	}

	if cases, trxErr := c.parseLatestTRX(); trxErr != nil {
		c.logger.Warn("could not parse TRX report", "error", trxErr)
	} else {
		result.Cases = cases
		result.Total, result.Passed, result.Failed, result.Skipped = SummarizeCases(cases)
	}

	span.SetAttributes(
		attribute.Bool("dotnet.test.succeeded", result.Succeeded),
		attribute.Int("dotnet.test.failed", result.Failed),
	)
	c.logger.Info("test run finished",
		"succeeded", result.Succeeded,
		"total", result.Total,
		"passed", result.Passed,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"duration", duration)
	return result, nil
}

// DiscoverTestProjects finds .csproj files that reference xUnit.
// MSTest and NUnit projects are ignored; generated tests target xUnit
// and only those projects can host them.
func (c *Client) DiscoverTestProjects() ([]string, error) {
	var projects []string
	err := filepath.WalkDir(c.repoPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			switch d.Name() {
			case "bin", "obj", ".git", "node_modules":
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(p), ".csproj") {
			return nil
		}
		if !strings.Contains(strings.ToLower(filepath.Base(p)), "test") {
			return nil
		}
		content, readErr := os.ReadFile(p)
		if readErr != nil {
			c.logger.Warn("could not read project file", "path", p, "error", readErr)
			return nil
		}
		if strings.Contains(strings.ToLower(string(content)), "xunit") {
			rel, _ := filepath.Rel(c.repoPath, p)
			projects = append(projects, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovering test projects: %w", err)
	}
	sort.Strings(projects)
	return projects, nil
}

// parseLatestTRX reads the most recently written TRX report.
func (c *Client) parseLatestTRX() ([]TestCase, error) {
	entries, err := os.ReadDir(c.resultsDir)
	if err != nil {
		return nil, fmt.Errorf("reading results directory: %w", err)
	}

	var newest string
	var newestMod time.Time
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".trx") {
			continue
		}
		info, infoErr := e.Info()
		if infoErr != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = e.Name()
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return nil, fmt.Errorf("no TRX report in %s", c.resultsDir)
	}

	data, err := os.ReadFile(filepath.Join(c.resultsDir, newest))
	if err != nil {
		return nil, fmt.Errorf("reading TRX report: %w", err)
	}
	return ParseTRX(data)
}

// tail returns at most n trailing bytes of s, for error messages.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
