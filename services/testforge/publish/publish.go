// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package publish commits and pushes the test mutations of a finished
// workflow run as one transaction.
//
// Stage, commit and push are all-or-nothing: any failure unwinds the
// index and reports the whole transaction failed, so the remote never
// sees a partial set of generated tests. The summary comment comes
// after the push and is strictly best-effort; a push that landed is
// never rolled back because a comment did not.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("testforge.publish")

var (
	// ErrInvalidInput indicates a nil or malformed argument.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPublishFailed indicates the transaction did not land; the
	// remote branch is unchanged.
	ErrPublishFailed = errors.New("failed to publish")
)

// Outcome is what happened to one test unit. Only these three stage.
type Outcome string

const (
	OutcomeAdded   Outcome = "added"
	OutcomeUpdated Outcome = "updated"
	OutcomeDeleted Outcome = "deleted"
)

// Mutation is one staged test unit.
type Mutation struct {
	Path    string  `json:"path"`
	Outcome Outcome `json:"outcome"`
}

// GitClient is the slice of gitops the transaction needs.
type GitClient interface {
	Add(ctx context.Context, paths ...string) error
	ResetIndex(ctx context.Context) error
	Commit(ctx context.Context, message string) error
	Push(ctx context.Context, branch string) error
}

// Commenter posts one markdown comment to the PR thread.
type Commenter interface {
	PostComment(ctx context.Context, content string) error
}

// Receipt reports what the transaction actually did.
type Receipt struct {
	Mutations     []Mutation `json:"mutations"`
	Pushed        bool       `json:"pushed"`
	SummaryPosted bool       `json:"summary_posted"`
}

// Transaction publishes one run's mutations.
//
// # Thread Safety
//
// Not safe for concurrent use; one transaction owns the working tree
// while it runs.
type Transaction struct {
	git       GitClient
	commenter Commenter
	branch    string
	message   string
	logger    *slog.Logger
}

// NewTransaction creates a transaction pushing to branch. commenter
// may be nil when no PR thread is available.
func NewTransaction(git GitClient, commenter Commenter, branch, commitMessage string) (*Transaction, error) {
	if git == nil {
		return nil, fmt.Errorf("%w: git client must not be nil", ErrInvalidInput)
	}
	if branch == "" {
		return nil, fmt.Errorf("%w: branch must not be empty", ErrInvalidInput)
	}
	if commitMessage == "" {
		commitMessage = "Update generated tests"
	}
	return &Transaction{
		git:       git,
		commenter: commenter,
		branch:    branch,
		message:   commitMessage,
		logger:    slog.Default().With("component", "publish.Transaction"),
	}, nil
}

// Publish stages exactly the given mutations, commits, pushes, and
// then posts the summary.
//
// # Description
//
// Paths outside the mutation list are never staged, so a run that
// skipped or failed some files cannot leak them into the commit.
// Stage, commit or push failure unwinds the index and returns
// ErrPublishFailed; the receipt then reports Pushed false. With zero
// mutations the commit and push are skipped and only the summary is
// posted.
//
// # Outputs
//
//   - *Receipt: What landed. Never nil.
//   - error: ErrPublishFailed (wrapped) when the transaction did not
//     land.
func (t *Transaction) Publish(ctx context.Context, mutations []Mutation, summary string) (*Receipt, error) {
	ctx, span := tracer.Start(ctx, "Transaction.Publish")
	defer span.End()
	span.SetAttributes(attribute.Int("publish.mutations", len(mutations)))

	receipt := &Receipt{Mutations: mutations}

	if len(mutations) > 0 {
		paths := make([]string, 0, len(mutations))
		for _, m := range mutations {
			if m.Path == "" {
				return receipt, fmt.Errorf("%w: mutation with empty path", ErrInvalidInput)
			}
			paths = append(paths, m.Path)
		}

		if err := t.git.Add(ctx, paths...); err != nil {
			t.unwind(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return receipt, fmt.Errorf("%w: staging: %v", ErrPublishFailed, err)
		}
		if err := t.git.Commit(ctx, t.message); err != nil {
			t.unwind(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return receipt, fmt.Errorf("%w: committing: %v", ErrPublishFailed, err)
		}
		if err := t.git.Push(ctx, t.branch); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			t.logger.Error("push rejected, transaction failed",
				"branch", t.branch, "error", err)
			return receipt, fmt.Errorf("%w: pushing: %v", ErrPublishFailed, err)
		}
		receipt.Pushed = true
		t.logger.Info("mutations pushed",
			"branch", t.branch, "files", len(paths))
	} else {
		t.logger.Info("no mutations to publish")
	}

	if t.commenter != nil && summary != "" {
		if err := t.commenter.PostComment(ctx, summary); err != nil {
			// The push already landed; a lost comment is logged only.
			t.logger.Warn("could not post summary comment", "error", err)
		} else {
			receipt.SummaryPosted = true
		}
	}
	return receipt, nil
}

// unwind clears the index after a failed transaction, best effort.
func (t *Transaction) unwind(ctx context.Context) {
	if err := t.git.ResetIndex(ctx); err != nil {
		t.logger.Warn("could not unstage after failure", "error", err)
	}
}

// CountByOutcome tallies mutations for summary rendering.
func CountByOutcome(mutations []Mutation) (added, updated, deleted int) {
	for _, m := range mutations {
		switch m.Outcome {
		case OutcomeAdded:
			added++
		case OutcomeUpdated:
			updated++
		case OutcomeDeleted:
			deleted++
		}
	}
	return added, updated, deleted
}
