// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package workflow

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/testforge/services/testforge/buildfix"
	"github.com/AleutianAI/testforge/services/testforge/publish"
	"github.com/AleutianAI/testforge/services/testforge/resolve"
)

// State is the run lifecycle position.
type State string

const (
	StatePending    State = "pending"
	StateResolving  State = "resolving"
	StateIndexing   State = "indexing"
	StateGenerating State = "generating"
	StateFixing     State = "fixing"

	// StateSucceeded: tests passed and the mutations were published.
	StateSucceeded State = "succeeded"

	// StateNothingToDo: the change set produced no test mutations.
	StateNothingToDo State = "nothing_to_do"

	// StateFailed: generation, build-fix or publish ended red.
	StateFailed State = "failed"

	// StateAborted: cancellation observed at a stage boundary.
	StateAborted State = "aborted"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateNothingToDo, StateFailed, StateAborted:
		return true
	}
	return false
}

// FileOutcome is what happened to one test unit during the run.
type FileOutcome string

const (
	OutcomeAdded   FileOutcome = "added"
	OutcomeUpdated FileOutcome = "updated"
	OutcomeDeleted FileOutcome = "deleted"
	OutcomeSkipped FileOutcome = "skipped"
	OutcomeFailed  FileOutcome = "failed"
)

// Run is the complete record of one workflow execution.
type Run struct {
	// ID identifies the run in logs and artifacts.
	ID uuid.UUID `json:"id"`

	// RepoPath is the working tree this run held exclusively.
	RepoPath string `json:"repo_path"`

	// TargetBranch is the PR target the diff was computed against.
	TargetBranch string `json:"target_branch"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`

	// State is the lifecycle position; Terminal once finished.
	State State `json:"state"`

	// ChangeSet is the resolved change set driving the run.
	ChangeSet *resolve.ChangeSet `json:"change_set,omitempty"`

	// Outcomes maps test unit path (source path for entries that never
	// reached mapping) to what happened to it.
	Outcomes map[string]FileOutcome `json:"outcomes"`

	// Fix is the build-fix audit trail, nil when the stage never ran.
	Fix *buildfix.Outcome `json:"fix,omitempty"`

	// Published reports the publish receipt, nil when skipped.
	Published *publish.Receipt `json:"published,omitempty"`

	// Err holds the fatal failure, empty on success.
	Err string `json:"error,omitempty"`
}

// NewRun creates a pending run for the given working tree.
func NewRun(repoPath, targetBranch string) *Run {
	return &Run{
		ID:           uuid.New(),
		RepoPath:     repoPath,
		TargetBranch: targetBranch,
		StartedAt:    time.Now(),
		State:        StatePending,
		Outcomes:     make(map[string]FileOutcome),
	}
}

// Mutations returns the publishable subset of the outcome table:
// Added, Updated and Deleted entries only. Skipped and Failed files
// never stage.
func (r *Run) Mutations() []publish.Mutation {
	var out []publish.Mutation
	for path, outcome := range r.Outcomes {
		switch outcome {
		case OutcomeAdded:
			out = append(out, publish.Mutation{Path: path, Outcome: publish.OutcomeAdded})
		case OutcomeUpdated:
			out = append(out, publish.Mutation{Path: path, Outcome: publish.OutcomeUpdated})
		case OutcomeDeleted:
			out = append(out, publish.Mutation{Path: path, Outcome: publish.OutcomeDeleted})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// CountOutcomes tallies the outcome table.
func (r *Run) CountOutcomes() (added, updated, deleted, skipped, failed int) {
	for _, o := range r.Outcomes {
		switch o {
		case OutcomeAdded:
			added++
		case OutcomeUpdated:
			updated++
		case OutcomeDeleted:
			deleted++
		case OutcomeSkipped:
			skipped++
		case OutcomeFailed:
			failed++
		}
	}
	return
}

func (r *Run) finish(state State) {
	r.State = state
	r.FinishedAt = time.Now()
}
