// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/testforge/services/testforge/buildfix"
	"github.com/AleutianAI/testforge/services/testforge/devops"
	"github.com/AleutianAI/testforge/services/testforge/generate"
	"github.com/AleutianAI/testforge/services/testforge/index"
	"github.com/AleutianAI/testforge/services/testforge/publish"
	"github.com/AleutianAI/testforge/services/testforge/resolve"
)

var tracer = otel.Tracer("testforge.workflow")

// maxRelatedUnits bounds how many supporting units ride along in one
// generation prompt.
const maxRelatedUnits = 5

// lockFileName marks a working tree as held by a run.
const lockFileName = ".testforge.lock"

// ChangeSource produces the PR's change list and raw diff.
type ChangeSource interface {
	ChangedFiles(ctx context.Context, targetBranch string) ([]resolve.RawChange, error)
	UnifiedDiff(ctx context.Context, targetBranch string) ([]byte, error)
}

// Indexer builds the symbol index for a tree.
type Indexer interface {
	Build(ctx context.Context, root string) (*index.Index, error)
}

// Generator turns generation requests into artifacts.
type Generator interface {
	GenerateAll(ctx context.Context, reqs []*generate.Request) []generate.Result
}

// FixRunner drives one whole-tree build-fix pass.
type FixRunner interface {
	Run(ctx context.Context) (*buildfix.Outcome, error)
}

// Publisher lands the run's mutations and summary.
type Publisher interface {
	Publish(ctx context.Context, mutations []publish.Mutation, summary string) (*publish.Receipt, error)
}

// Deps are the collaborators one orchestrator drives. All required
// except Publisher, which may be nil for dry runs.
type Deps struct {
	Changes   ChangeSource
	Resolver  *resolve.Resolver
	Indexer   Indexer
	Generator Generator
	Fixer     FixRunner
	Publisher Publisher
}

// Orchestrator executes one workflow run end to end.
//
// # Thread Safety
//
// Single-use; one orchestrator owns one run. Concurrent runs need
// their own orchestrators over distinct working trees, enforced by
// the per-tree lock file.
type Orchestrator struct {
	repoPath     string
	targetBranch string
	deps         Deps
	logger       *slog.Logger
	ran          bool
}

// NewOrchestrator creates an orchestrator over an absolute repoPath.
func NewOrchestrator(repoPath, targetBranch string, deps Deps) (*Orchestrator, error) {
	if !filepath.IsAbs(repoPath) {
		return nil, fmt.Errorf("%w: repo path must be absolute, got %q", ErrInvalidInput, repoPath)
	}
	if targetBranch == "" {
		return nil, fmt.Errorf("%w: target branch must not be empty", ErrInvalidInput)
	}
	if deps.Changes == nil || deps.Resolver == nil || deps.Indexer == nil ||
		deps.Generator == nil || deps.Fixer == nil {
		return nil, fmt.Errorf("%w: missing collaborator", ErrInvalidInput)
	}
	return &Orchestrator{
		repoPath:     repoPath,
		targetBranch: targetBranch,
		deps:         deps,
		logger:       slog.Default().With("component", "workflow.Orchestrator"),
	}, nil
}

// Execute runs the workflow to a terminal state.
//
// # Description
//
// Stage order is resolve, index, generate, apply, build-fix, publish.
// Cancellation is observed at stage boundaries only; a stage already
// running finishes or times out on its own. The returned Run is
// always terminal, including on error.
//
// # Outputs
//
//   - *Run: Terminal run record. Never nil.
//   - error: Fatal failure; per-file generation failures are recorded
//     in the run's outcome table instead.
func (o *Orchestrator) Execute(ctx context.Context) (*Run, error) {
	run := NewRun(o.repoPath, o.targetBranch)
	if o.ran {
		run.finish(StateFailed)
		return run, ErrRunConsumed
	}
	o.ran = true

	ctx, span := tracer.Start(ctx, "Orchestrator.Execute")
	defer span.End()
	span.SetAttributes(attribute.String("workflow.run_id", run.ID.String()))

	unlock, err := o.acquireLock(run)
	if err != nil {
		run.finish(StateFailed)
		return o.fail(span, run, err)
	}
	defer unlock()

	o.logger.Info("run started",
		"run_id", run.ID, "repo", o.repoPath, "target", o.targetBranch)

	// Resolve.
	if aborted(ctx, run) {
		return run, ErrRunAborted
	}
	run.State = StateResolving
	changes, err := o.deps.Changes.ChangedFiles(ctx, o.targetBranch)
	if err != nil {
		run.finish(StateFailed)
		return o.fail(span, run, fmt.Errorf("listing changes: %w", err))
	}
	rawDiff, err := o.deps.Changes.UnifiedDiff(ctx, o.targetBranch)
	if err != nil {
		run.finish(StateFailed)
		return o.fail(span, run, fmt.Errorf("reading diff: %w", err))
	}
	set, err := o.deps.Resolver.Resolve(ctx, o.repoPath, changes, rawDiff)
	if err != nil {
		run.finish(StateFailed)
		return o.fail(span, run, fmt.Errorf("resolving changes: %w", err))
	}
	run.ChangeSet = set
	for _, c := range set.Skipped {
		run.Outcomes[c.Path] = OutcomeSkipped
	}
	for _, u := range set.Unmapped {
		run.Outcomes[u.Path] = OutcomeSkipped
		o.logger.Warn("change has no test mapping", "path", u.Path, "reason", u.Reason)
	}

	if set.Empty() {
		run.finish(StateNothingToDo)
		o.publishSummary(ctx, run)
		o.logger.Info("no testable changes", "run_id", run.ID)
		return run, nil
	}

	// Index.
	if aborted(ctx, run) {
		return run, ErrRunAborted
	}
	run.State = StateIndexing
	idx, err := o.deps.Indexer.Build(ctx, o.repoPath)
	if err != nil {
		run.finish(StateFailed)
		return o.fail(span, run, fmt.Errorf("building symbol index: %w", err))
	}

	// Generate.
	if aborted(ctx, run) {
		return run, ErrRunAborted
	}
	run.State = StateGenerating
	reqs := o.buildRequests(set, idx)
	results := o.deps.Generator.GenerateAll(ctx, reqs)
	o.applyResults(run, results)

	mutations := run.Mutations()
	if len(mutations) == 0 {
		run.finish(StateNothingToDo)
		o.publishSummary(ctx, run)
		o.logger.Info("no test mutations produced", "run_id", run.ID)
		return run, nil
	}

	// Build-fix.
	if aborted(ctx, run) {
		return run, ErrRunAborted
	}
	run.State = StateFixing
	fix, err := o.deps.Fixer.Run(ctx)
	if err != nil {
		run.finish(StateFailed)
		return o.fail(span, run, fmt.Errorf("build-fix pass: %w", err))
	}
	run.Fix = fix

	if fix.State != buildfix.StateTestsPassed {
		run.finish(StateFailed)
		run.Err = fmt.Sprintf("build-fix ended in %s", fix.State)
		o.publishSummary(ctx, run)
		o.logger.Error("run failed validation",
			"run_id", run.ID, "fix_state", fix.State)
		return run, fmt.Errorf("validation ended in %s", fix.State)
	}

	// Publish. The run is terminal before the transaction starts.
	if aborted(ctx, run) {
		return run, ErrRunAborted
	}
	run.finish(StateSucceeded)
	if o.deps.Publisher != nil {
		receipt, err := o.deps.Publisher.Publish(ctx, mutations, o.summary(run))
		run.Published = receipt
		if err != nil {
			run.State = StateFailed
			run.Err = err.Error()
			return o.fail(span, run, fmt.Errorf("publishing: %w", err))
		}
	}

	added, updated, deleted, skipped, failed := run.CountOutcomes()
	o.logger.Info("run succeeded",
		"run_id", run.ID,
		"added", added, "updated", updated, "deleted", deleted,
		"skipped", skipped, "failed", failed)
	return run, nil
}

// buildRequests turns change records into generation requests, each
// carrying its source, existing test and bounded related context.
func (o *Orchestrator) buildRequests(set *resolve.ChangeSet, idx *index.Index) []*generate.Request {
	reqs := make([]*generate.Request, 0, len(set.Records))
	for _, rec := range set.Records {
		req := &generate.Request{Record: rec}
		if rec.Kind != resolve.KindDeleted {
			if entry, ok := idx.Get(rec.Path); ok {
				req.Source = entry.Source
			} else if data, err := os.ReadFile(filepath.Join(o.repoPath, rec.Path)); err == nil {
				req.Source = string(data)
			}
			if rec.TestExists {
				if data, err := os.ReadFile(filepath.Join(o.repoPath, rec.TestPath)); err == nil {
					req.ExistingTest = string(data)
				}
			}
			// The bundle carries both directions: units this change
			// references and units that reference its declared types,
			// so revised tests stay consistent with collaborators.
			related := append(idx.Dependencies(rec.Path), idx.Dependents(rec.Path)...)
			seen := make(map[string]bool, len(related))
			for _, unit := range related {
				if len(req.Related) == maxRelatedUnits {
					break
				}
				if unit.Failed || unit.Source == "" || seen[unit.Path] {
					continue
				}
				seen[unit.Path] = true
				req.Related = append(req.Related, generate.ContextUnit{
					Path:    unit.Path,
					Content: unit.Source,
				})
			}
		}
		reqs = append(reqs, req)
	}
	return reqs
}

// applyResults writes artifacts into the working tree and fills the
// outcome table. A failed result marks its file Failed and never
// blocks its siblings.
func (o *Orchestrator) applyResults(run *Run, results []generate.Result) {
	for _, res := range results {
		if res.Failed() {
			path := res.TestPath
			if path == "" {
				path = "(unmapped)"
			}
			run.Outcomes[path] = OutcomeFailed
			o.logger.Warn("generation failed", "test_path", path, "error", res.Err)
			continue
		}
		abs := filepath.Join(o.repoPath, res.TestPath)
		switch res.Action {
		case generate.ActionDelete:
			err := os.Remove(abs)
			switch {
			case err == nil:
				run.Outcomes[res.TestPath] = OutcomeDeleted
			case errors.Is(err, os.ErrNotExist):
				run.Outcomes[res.TestPath] = OutcomeSkipped
			default:
				run.Outcomes[res.TestPath] = OutcomeFailed
				o.logger.Warn("could not delete test", "test_path", res.TestPath, "error", err)
			}
		case generate.ActionCreate, generate.ActionUpdate:
			if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
				run.Outcomes[res.TestPath] = OutcomeFailed
				continue
			}
			if err := os.WriteFile(abs, []byte(res.Content), 0o644); err != nil {
				run.Outcomes[res.TestPath] = OutcomeFailed
				o.logger.Warn("could not write test", "test_path", res.TestPath, "error", err)
				continue
			}
			if res.Action == generate.ActionUpdate {
				run.Outcomes[res.TestPath] = OutcomeUpdated
			} else {
				run.Outcomes[res.TestPath] = OutcomeAdded
			}
		}
	}
}

// summary renders the PR comment for a terminal run.
func (o *Orchestrator) summary(run *Run) string {
	added, updated, deleted, skipped, failed := run.CountOutcomes()
	in := devops.SummaryInput{
		TestsAdded:   added,
		TestsUpdated: updated,
		TestsDeleted: deleted,
		TestsSkipped: skipped,
		TestsFailed:  failed,
		FinalState:   string(run.State),
	}
	if run.ChangeSet != nil {
		for _, u := range run.ChangeSet.Unmapped {
			in.Unmapped = append(in.Unmapped, devops.UnmappedEntry{
				Path:   u.Path,
				Reason: u.Reason,
			})
		}
	}
	if run.Fix != nil && run.Fix.TestResult != nil {
		in.RunTotal = run.Fix.TestResult.Total
		in.RunPassed = run.Fix.TestResult.Passed
		in.RunFailed = run.Fix.TestResult.Failed
		in.RunSkipped = run.Fix.TestResult.Skipped
	}
	return devops.BuildSummaryComment(in)
}

// publishSummary posts the summary for runs that end without a push.
func (o *Orchestrator) publishSummary(ctx context.Context, run *Run) {
	if o.deps.Publisher == nil {
		return
	}
	receipt, err := o.deps.Publisher.Publish(ctx, nil, o.summary(run))
	run.Published = receipt
	if err != nil {
		o.logger.Warn("could not post run summary", "run_id", run.ID, "error", err)
	}
}

// acquireLock takes the working-tree lock, failing fast when another
// run holds it.
func (o *Orchestrator) acquireLock(run *Run) (func(), error) {
	lockPath := filepath.Join(o.repoPath, lockFileName)
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrWorkingTreeBusy, lockPath)
		}
		return nil, fmt.Errorf("acquiring tree lock: %w", err)
	}
	fmt.Fprintln(f, run.ID.String())
	f.Close()
	return func() {
		if err := os.Remove(lockPath); err != nil {
			o.logger.Warn("could not release tree lock", "path", lockPath, "error", err)
		}
	}, nil
}

// aborted finishes the run as Aborted when ctx is already canceled.
func aborted(ctx context.Context, run *Run) bool {
	if ctx.Err() == nil {
		return false
	}
	run.finish(StateAborted)
	run.Err = ctx.Err().Error()
	return true
}

func (o *Orchestrator) fail(span trace.Span, run *Run, err error) (*Run, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	run.Err = err.Error()
	return run, err
}
