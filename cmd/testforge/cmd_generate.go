// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/testforge/services/testforge/buildfix"
	"github.com/AleutianAI/testforge/services/testforge/devops"
	"github.com/AleutianAI/testforge/services/testforge/dotnet"
	"github.com/AleutianAI/testforge/services/testforge/generate"
	"github.com/AleutianAI/testforge/services/testforge/gitops"
	"github.com/AleutianAI/testforge/services/testforge/index"
	"github.com/AleutianAI/testforge/services/testforge/publish"
	"github.com/AleutianAI/testforge/services/testforge/resolve"
	"github.com/AleutianAI/testforge/services/testforge/workflow"
)

const gitTimeout = 2 * time.Minute

var (
	genRepoPath   string
	genRepoURL    string
	genBranch     string
	genTarget     string
	genRepository string
	genPR         int
	genDryRun     bool

	generateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Run the full test-synthesis workflow for a pull request",
		Long: `Resolves the changes between the PR source branch and its target,
synthesizes or repairs the matching tests, validates the tree with
dotnet build/test, and pushes the result. Exits 0 only when the
generated tests build and pass.`,
		RunE: runGenerate,
	}
)

func init() {
	generateCmd.Flags().StringVar(&genRepoPath, "repo", ".", "path to an existing checkout")
	generateCmd.Flags().StringVar(&genRepoURL, "repo-url", "", "clone this remote into the work dir instead of using --repo")
	generateCmd.Flags().StringVar(&genBranch, "branch", "", "PR source branch (taken from the PR when --pr is set)")
	generateCmd.Flags().StringVar(&genTarget, "target", "main", "PR target branch")
	generateCmd.Flags().StringVar(&genRepository, "repository", "", "Azure DevOps repository id or name")
	generateCmd.Flags().IntVar(&genPR, "pr", 0, "Azure DevOps pull request id")
	generateCmd.Flags().BoolVar(&genDryRun, "dry-run", false, "generate and validate but never push or comment")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	oracle, err := buildOracle()
	if err != nil {
		return err
	}
	if err := verifyOracle(cmd, oracle); err != nil {
		return err
	}

	// PR metadata decides the branches when a PR id is given.
	var commenter publish.Commenter
	sourceBranch, targetBranch := genBranch, genTarget
	if genPR > 0 {
		dvo, err := devops.NewClient(cfg.DevOps.OrganizationURL, cfg.DevOps.Project, cfg.DevOps.PAT)
		if err != nil {
			return err
		}
		pr, err := dvo.GetPullRequest(ctx, genRepository, genPR)
		if err != nil {
			return fmt.Errorf("fetching PR %d: %w", genPR, err)
		}
		sourceBranch = pr.SourceBranchName()
		targetBranch = pr.TargetBranchName()
		commenter = &prCommenter{client: dvo, repository: genRepository, pullRequest: genPR}
		logger.Info("resolved pull request",
			"pr", genPR, "source", sourceBranch, "target", targetBranch)
	}
	if sourceBranch == "" {
		return fmt.Errorf("no source branch: pass --branch or --pr")
	}

	repoPath, err := prepareCheckout(ctx, sourceBranch)
	if err != nil {
		return err
	}

	git, err := gitops.NewClient(repoPath, gitTimeout)
	if err != nil {
		return err
	}
	if err := git.Fetch(ctx, "origin"); err != nil {
		return err
	}
	if err := git.Checkout(ctx, sourceBranch); err != nil {
		return err
	}

	coordinator, err := generate.NewCoordinator(oracle,
		generate.WithWorkers(cfg.Workflow.MaxGenerateWorkers),
		generate.WithRequestTimeout(cfg.Oracle.Timeout.Std()),
	)
	if err != nil {
		return err
	}

	toolchain, err := dotnet.NewClient(repoPath)
	if err != nil {
		return err
	}
	fixer, err := buildfix.NewOracleFixer(oracle)
	if err != nil {
		return err
	}
	machine, err := buildfix.NewMachine(toolchain, fixer, repoPath,
		buildfix.WithMaxIterations(cfg.Workflow.MaxFixIterations))
	if err != nil {
		return err
	}

	var publisher workflow.Publisher
	if !genDryRun {
		tx, err := publish.NewTransaction(git, commenter, sourceBranch,
			fmt.Sprintf("Update generated tests for %s", sourceBranch))
		if err != nil {
			return err
		}
		publisher = tx
	}

	orch, err := workflow.NewOrchestrator(repoPath, targetBranch, workflow.Deps{
		Changes:   git,
		Resolver:  resolve.NewResolver(nil),
		Indexer:   index.NewBuilder(nil),
		Generator: coordinator,
		Fixer:     &restoreFixRunner{toolchain: toolchain, machine: machine},
		Publisher: publisher,
	})
	if err != nil {
		return err
	}

	run, err := orch.Execute(ctx)
	printRunReport(cmd, run)
	return err
}

// prepareCheckout returns the absolute working tree, cloning first
// when --repo-url was given.
func prepareCheckout(ctx context.Context, branch string) (string, error) {
	if genRepoURL == "" {
		return filepath.Abs(genRepoPath)
	}

	target, err := filepath.Abs(filepath.Join(cfg.Workflow.WorkDir, filepath.Base(genRepoURL)))
	if err != nil {
		return "", err
	}
	if cfg.Workflow.ForceFreshClone {
		if err := os.RemoveAll(target); err != nil {
			return "", fmt.Errorf("removing stale checkout: %w", err)
		}
	}
	if _, err := os.Stat(target); err == nil {
		// Reuse the existing clone; fetch/checkout below refreshes it.
		return target, nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", err
	}

	git, err := gitops.NewClient(target, gitTimeout)
	if err != nil {
		return "", err
	}
	if err := git.Clone(ctx, genRepoURL, branch); err != nil {
		return "", err
	}
	return target, nil
}

func printRunReport(cmd *cobra.Command, run *workflow.Run) {
	if run == nil {
		return
	}
	added, updated, deleted, skipped, failed := run.CountOutcomes()
	cmd.Printf("run %s finished: %s\n", run.ID, run.State)
	cmd.Printf("  tests added %d, updated %d, deleted %d, skipped %d, failed %d\n",
		added, updated, deleted, skipped, failed)
	if run.Fix != nil {
		cmd.Printf("  build attempts: %d, final fix state: %s\n", len(run.Fix.Attempts), run.Fix.State)
		if run.Fix.TestResult != nil {
			r := run.Fix.TestResult
			cmd.Printf("  test run: %d total, %d passed, %d failed, %d skipped\n",
				r.Total, r.Passed, r.Failed, r.Skipped)
		}
	}
	if run.Published != nil && run.Published.Pushed {
		cmd.Printf("  pushed %d file(s)\n", len(run.Published.Mutations))
	}
}

// prCommenter narrows the DevOps client to one PR thread.
type prCommenter struct {
	client      *devops.Client
	repository  string
	pullRequest int
}

func (p *prCommenter) PostComment(ctx context.Context, content string) error {
	return p.client.PostComment(ctx, p.repository, p.pullRequest, content)
}

// restoreFixRunner restores NuGet packages once, then hands the tree
// to the build-fix machine.
type restoreFixRunner struct {
	toolchain *dotnet.Client
	machine   *buildfix.Machine
}

func (r *restoreFixRunner) Run(ctx context.Context) (*buildfix.Outcome, error) {
	if err := r.toolchain.Restore(ctx); err != nil {
		return nil, fmt.Errorf("restoring packages: %w", err)
	}
	return r.machine.Run(ctx)
}
